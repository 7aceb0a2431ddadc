// Package pipeline defines the request/response contract between nodes of
// an augmentation pipeline and provides an in-memory source for serving
// volumes from a backing array.
package pipeline

import (
	"context"
	"fmt"

	"volaug/pkg/volume"
)

// Provider is the contract every pipeline node fulfills: it announces the
// volumes it can serve via Spec and answers batch requests synchronously.
// A filter node implements Provider by rewriting requests, forwarding them
// to its upstream provider, and post-processing the returned batch.
type Provider interface {
	// Setup prepares the provider for serving requests. It is called once
	// before the first RequestBatch and must be forwarded to any nested
	// providers.
	Setup() error

	// Teardown releases resources acquired in Setup.
	Teardown() error

	// Spec returns the metadata of the named volume as offered by this
	// provider, with the Roi describing the full offerable universe. The
	// second return is false if the provider does not serve the type.
	Spec(t volume.Type) (volume.Spec, bool)

	// RequestBatch serves the requested regions. The returned batch is
	// owned by the caller. Every failure is terminal for the request; no
	// retry happens inside the pipeline.
	RequestBatch(ctx context.Context, req volume.Request) (volume.Batch, error)
}

// ArraySource serves sub-regions of in-memory volumes. It is the terminal
// upstream of a test or demo pipeline and doubles as the artifact-source
// collaborator for alpha blending.
type ArraySource struct {
	vols map[volume.Type]*volume.Volume
}

// NewArraySource builds a source over the given backing volumes. Each
// volume's spec Roi is the universe offered for its type.
func NewArraySource(vols map[volume.Type]*volume.Volume) *ArraySource {
	return &ArraySource{vols: vols}
}

func (s *ArraySource) Setup() error    { return nil }
func (s *ArraySource) Teardown() error { return nil }

func (s *ArraySource) Spec(t volume.Type) (volume.Spec, bool) {
	v, ok := s.vols[t]
	if !ok {
		return volume.Spec{}, false
	}
	return v.Spec.Copy(), true
}

func (s *ArraySource) RequestBatch(ctx context.Context, req volume.Request) (volume.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := make(volume.Batch, len(req))
	for t, roi := range req {
		v, ok := s.vols[t]
		if !ok {
			return nil, fmt.Errorf("pipeline: source does not provide %q", t)
		}
		cropped, err := v.Crop(roi)
		if err != nil {
			return nil, fmt.Errorf("pipeline: serving %q: %w", t, err)
		}
		batch[t] = cropped
	}
	return batch, nil
}
