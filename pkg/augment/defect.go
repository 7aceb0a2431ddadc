// Package augment implements the defect augmentation engine: a pipeline
// node that simulates image-acquisition defects (missing sections,
// low-contrast sections, imaging artifacts, and torn slices) in 3d volumes
// flowing through a request/response pipeline. When a slice deformation is
// planned, the node grows the upstream request so the warp has margin to
// pull from and crops the result back before handing it downstream, so the
// caller always receives exactly the region it asked for.
package augment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"volaug/internal/logging"
	"volaug/internal/telemetry"
	"volaug/pkg/geometry"
	"volaug/pkg/pipeline"
	"volaug/pkg/volume"
)

// Config holds the construction-time parameters of the node. It is
// immutable for the node's lifetime.
type Config struct {
	// ProbMissing, ProbLowContrast, ProbArtifact and ProbDeform are the
	// per-slice probabilities of each augmentation. Their sum must not
	// exceed 1.
	ProbMissing     float64
	ProbLowContrast float64
	ProbArtifact    float64
	ProbDeform      float64

	// ContrastScale scales the intensities of a low-contrast section
	// around the section mean. Must lie in (0, 1).
	ContrastScale float64

	// DeformationStrength is the displacement of a deformed slice in
	// voxels, and the per-side padding the upstream request grows by.
	DeformationStrength int

	// Axis is the spatial axis along which sections are cut.
	Axis int

	// Seed initializes the node's random source. Equal seeds yield
	// identical plans and flow fields.
	Seed uint64
}

// DefaultConfig returns the node defaults: 5% missing and low-contrast
// sections, no artifacts or deformations, contrast scale 0.1, deformation
// strength 20 voxels, sections cut along axis 0.
func DefaultConfig() *Config {
	return &Config{
		ProbMissing:         0.05,
		ProbLowContrast:     0.05,
		ContrastScale:       0.1,
		DeformationStrength: 20,
		Axis:                0,
	}
}

// DefectAugment is the augmentation node. It implements pipeline.Provider
// by wrapping an upstream provider; all per-request state (plan,
// transforms, original region) lives on the call stack, so concurrent
// requests are safe.
type DefectAugment struct {
	cfg      Config
	upstream pipeline.Provider
	artifact pipeline.Provider

	// mu serializes draws from the shared random source across
	// concurrent requests.
	mu      sync.Mutex
	rng     *rand.Rand
	uniform distuv.Uniform
}

// New builds a defect augmentation node over the given upstream provider.
// artifactSource may be nil unless ProbArtifact is positive; it must then
// serve both raw and alpha-mask volumes.
func New(upstream pipeline.Provider, artifactSource pipeline.Provider, cfg *Config) (*DefectAugment, error) {
	if upstream == nil {
		return nil, fmt.Errorf("augment: upstream provider is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	probs := []float64{cfg.ProbMissing, cfg.ProbLowContrast, cfg.ProbArtifact, cfg.ProbDeform}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("augment: probability %v outside [0, 1]", p)
		}
		sum += p
	}
	if sum > 1+1e-9 {
		return nil, fmt.Errorf("augment: probabilities sum to %v, must not exceed 1", sum)
	}
	if cfg.ContrastScale <= 0 || cfg.ContrastScale >= 1 {
		return nil, fmt.Errorf("augment: contrast scale %v outside (0, 1)", cfg.ContrastScale)
	}
	if cfg.DeformationStrength < 0 {
		return nil, fmt.Errorf("augment: negative deformation strength %d", cfg.DeformationStrength)
	}
	if cfg.Axis < 0 || cfg.Axis > 2 {
		return nil, fmt.Errorf("augment: axis %d outside [0, 2]", cfg.Axis)
	}
	if cfg.ProbArtifact > 0 && artifactSource == nil {
		return nil, fmt.Errorf("augment: artifact probability is positive but no artifact source given")
	}

	// One source feeds both the classification draws and the line draws,
	// so a seed fully determines plans and flow fields.
	src := rand.NewSource(cfg.Seed)
	return &DefectAugment{
		cfg:      *cfg,
		upstream: upstream,
		artifact: artifactSource,
		rng:      rand.New(src),
		uniform:  distuv.Uniform{Min: 0, Max: 1, Src: src},
	}, nil
}

func (d *DefectAugment) Setup() error {
	if err := d.upstream.Setup(); err != nil {
		return err
	}
	if d.artifact != nil {
		return d.artifact.Setup()
	}
	return nil
}

func (d *DefectAugment) Teardown() error {
	if err := d.upstream.Teardown(); err != nil {
		return err
	}
	if d.artifact != nil {
		return d.artifact.Teardown()
	}
	return nil
}

// Spec forwards to the upstream provider: augmentation changes values,
// never the offerable universe.
func (d *DefectAugment) Spec(t volume.Type) (volume.Spec, bool) {
	return d.upstream.Spec(t)
}

// RequestBatch plans the per-slice augmentations, fetches the (possibly
// expanded) region from upstream, applies the plan in place, and restores
// the originally requested geometry.
func (d *DefectAugment) RequestBatch(ctx context.Context, req volume.Request) (volume.Batch, error) {
	rawRoi, ok := req[volume.Raw]
	if !ok {
		// Nothing to augment; pass the request through unchanged.
		return d.upstream.RequestBatch(ctx, req)
	}
	if rawRoi.Dims() != 3 {
		return nil, fmt.Errorf("augment: raw region %s is %dd, augmentation works on 3d volumes only", rawRoi, rawRoi.Dims())
	}

	rawSpec, ok := d.upstream.Spec(volume.Raw)
	if !ok {
		return nil, fmt.Errorf("augment: upstream does not provide raw volumes")
	}
	if !rawRoi.Shape.Divides(rawSpec.VoxelSize) {
		return nil, fmt.Errorf("augment: region shape %s not aligned to voxel size %s", rawRoi.Shape, rawSpec.VoxelSize)
	}

	pl, err := d.buildPlan(rawRoi, rawSpec.VoxelSize)
	if err != nil {
		return nil, err
	}

	upReq := req.Clone()
	expanded := pl.hasDeform()
	if expanded {
		growth := make(geometry.Coordinate, 3)
		for dim := range growth {
			if dim != d.cfg.Axis {
				growth[dim] = rawSpec.VoxelSize[dim] * int64(d.cfg.DeformationStrength)
			}
		}
		upReq[volume.Raw] = rawRoi.Grow(growth, growth)
		logging.L().Debug("expanding upstream request",
			"downstream", rawRoi.String(), "upstream", upReq[volume.Raw].String())
		telemetry.ExpandedRequests.Inc()
	}

	batch, err := d.upstream.RequestBatch(ctx, upReq)
	if err != nil {
		return nil, err
	}
	if err := d.process(ctx, batch, pl); err != nil {
		return nil, err
	}
	if expanded {
		restored, err := batch[volume.Raw].Crop(rawRoi)
		if err != nil {
			return nil, fmt.Errorf("augment: restoring requested region: %w", err)
		}
		batch[volume.Raw] = restored
	}

	telemetry.RequestsTotal.Inc()
	return batch, nil
}

// process applies the plan to the fetched batch, mutating the raw volume
// one slice at a time.
func (d *DefectAugment) process(ctx context.Context, batch volume.Batch, pl plan) error {
	raw, ok := batch[volume.Raw]
	if !ok {
		return fmt.Errorf("augment: upstream batch is missing the raw volume")
	}
	voxShape := raw.Spec.VoxelShape()
	if len(voxShape) != 3 {
		return fmt.Errorf("augment: raw volume is %dd, augmentation works on 3d volumes only", len(voxShape))
	}
	shape := [3]int{int(voxShape[0]), int(voxShape[1]), int(voxShape[2])}

	// Slices are independent; iterate in index order so logging and
	// nested artifact requests are deterministic for a fixed seed.
	indices := make([]int, 0, len(pl))
	for c := range pl {
		indices = append(indices, c)
	}
	sort.Ints(indices)

	for _, c := range indices {
		entry := pl[c]
		if c < 0 || c >= shape[d.cfg.Axis] {
			return fmt.Errorf("augment: planned slice %d outside volume extent %d", c, shape[d.cfg.Axis])
		}

		var err error
		switch entry.Kind {
		case KindZeroOut:
			zeroSlice(raw.Data, shape, d.cfg.Axis, c)
		case KindLowContrast:
			d.lowerContrast(raw.Data, shape, c)
		case KindArtifact:
			err = d.blendArtifact(ctx, raw, shape, c)
		case KindDeformSlice:
			err = d.deformSlice(raw, shape, c, entry.Transform)
		default:
			err = fmt.Errorf("augment: slice %d has unknown kind %v", c, entry.Kind)
		}
		if err != nil {
			return err
		}

		telemetry.AugmentedSlices.WithLabelValues(entry.Kind.String()).Inc()
		logging.L().Debug("augmented slice", "slice", c, "kind", entry.Kind.String())
	}
	return nil
}

// lowerContrast compresses the slice's dynamic range around its mean: the
// mean is unchanged and the variance scales by ContrastScale squared.
func (d *DefectAugment) lowerContrast(data []float64, shape [3]int, c int) {
	sec := extractSlice(data, shape, d.cfg.Axis, c)
	mean := stat.Mean(sec, nil)
	floats.AddConst(-mean, sec)
	floats.Scale(d.cfg.ContrastScale, sec)
	floats.AddConst(mean, sec)
	writeSlice(data, shape, d.cfg.Axis, c, sec)
}

// blendArtifact issues a nested blocking request to the artifact source
// for a raw volume and an alpha mask matching the section, then composites
// result = section*(1-alpha) + artifact*alpha.
func (d *DefectAugment) blendArtifact(ctx context.Context, raw *volume.Volume, shape [3]int, c int) error {
	if _, ok := d.artifact.Spec(volume.Raw); !ok {
		return fmt.Errorf("augment: artifact source does not provide raw volumes")
	}
	alphaSpec, ok := d.artifact.Spec(volume.AlphaMask)
	if !ok {
		return fmt.Errorf("augment: artifact source does not provide alpha masks")
	}
	if !alphaSpec.VoxelSize.Eq(raw.Spec.VoxelSize) {
		return fmt.Errorf("augment: can only alpha blend raw with an alpha mask of equal voxel size (raw %s, alpha %s)",
			raw.Spec.VoxelSize, alphaSpec.VoxelSize)
	}

	// Request a single-section region shaped like the slice, in world
	// units of the shared voxel size.
	secShape := geometry.Coord(int64(shape[0]), int64(shape[1]), int64(shape[2]))
	secShape[d.cfg.Axis] = 1
	roi := geometry.NewRoi(geometry.Coord(0, 0, 0), secShape.Mul(raw.Spec.VoxelSize))
	logging.L().Debug("requesting artifact batch", "roi", roi.String())

	artBatch, err := d.artifact.RequestBatch(ctx, volume.Request{volume.Raw: roi, volume.AlphaMask: roi})
	if err != nil {
		return fmt.Errorf("augment: artifact request: %w", err)
	}
	artRaw, ok := artBatch[volume.Raw]
	if !ok {
		return fmt.Errorf("augment: artifact batch is missing the raw volume")
	}
	alpha, ok := artBatch[volume.AlphaMask]
	if !ok {
		return fmt.Errorf("augment: artifact batch is missing the alpha mask")
	}

	if artRaw.Spec.Dtype != raw.Spec.Dtype {
		return fmt.Errorf("augment: artifact dtype %s does not match section dtype %s",
			artRaw.Spec.Dtype, raw.Spec.Dtype)
	}
	if alpha.Spec.Dtype != volume.Float32 {
		return fmt.Errorf("augment: alpha mask dtype %s, must be float32", alpha.Spec.Dtype)
	}
	if lo := floats.Min(alpha.Data); lo < 0 {
		return fmt.Errorf("augment: alpha mask minimum %v below 0", lo)
	}
	if hi := floats.Max(alpha.Data); hi > 1 {
		return fmt.Errorf("augment: alpha mask maximum %v above 1", hi)
	}

	sec := extractSlice(raw.Data, shape, d.cfg.Axis, c)
	if len(artRaw.Data) != len(sec) || len(alpha.Data) != len(sec) {
		return fmt.Errorf("augment: artifact sample count %d does not match section sample count %d",
			len(artRaw.Data), len(sec))
	}
	for i := range sec {
		a := alpha.Data[i]
		sec[i] = sec[i]*(1-a) + artRaw.Data[i]*a
	}
	writeSlice(raw.Data, shape, d.cfg.Axis, c, sec)
	return nil
}

// deformSlice resamples the padded section at the transform's precomputed
// coordinates and blacks out the tear seam. Cubic interpolation is used
// when the volume is interpolatable, nearest-neighbor otherwise.
func (d *DefectAugment) deformSlice(raw *volume.Volume, shape [3]int, c int, tr *DeformTransform) error {
	if tr == nil {
		return fmt.Errorf("augment: deformed slice %d has no transform", c)
	}
	sec := extractSlice(raw.Data, shape, d.cfg.Axis, c)
	if len(sec) != tr.PadH*tr.PadW {
		return fmt.Errorf("augment: fetched section has %d samples, transform expects %dx%d",
			len(sec), tr.PadH, tr.PadW)
	}

	warped := mapCoordinates(sec, tr.PadH, tr.PadW, tr.FlowY, tr.FlowX, raw.Spec.Interpolatable)
	for i, torn := range tr.Mask {
		if torn {
			warped[i] = 0
		}
	}
	writeSlice(raw.Data, shape, d.cfg.Axis, c, warped)
	return nil
}

// zeroSlice overwrites one slice along the axis with zero.
func zeroSlice(data []float64, shape [3]int, axis, c int) {
	h, w := slicePlane(geometry.Coord(int64(shape[0]), int64(shape[1]), int64(shape[2])), axis)
	writeSlice(data, shape, axis, c, make([]float64, h*w))
}

// extractSlice copies slice c along the axis out of a row-major 3d array.
func extractSlice(data []float64, shape [3]int, axis, c int) []float64 {
	n0, n1, n2 := shape[0], shape[1], shape[2]
	var out []float64
	switch axis {
	case 0:
		out = make([]float64, n1*n2)
		copy(out, data[c*n1*n2:(c+1)*n1*n2])
	case 1:
		out = make([]float64, 0, n0*n2)
		for i0 := 0; i0 < n0; i0++ {
			base := (i0*n1 + c) * n2
			out = append(out, data[base:base+n2]...)
		}
	default:
		out = make([]float64, n0*n1)
		for i0 := 0; i0 < n0; i0++ {
			for i1 := 0; i1 < n1; i1++ {
				out[i0*n1+i1] = data[(i0*n1+i1)*n2+c]
			}
		}
	}
	return out
}

// writeSlice copies a section back into slice c along the axis.
func writeSlice(data []float64, shape [3]int, axis, c int, sec []float64) {
	n0, n1, n2 := shape[0], shape[1], shape[2]
	switch axis {
	case 0:
		copy(data[c*n1*n2:(c+1)*n1*n2], sec)
	case 1:
		for i0 := 0; i0 < n0; i0++ {
			base := (i0*n1 + c) * n2
			copy(data[base:base+n2], sec[i0*n2:(i0+1)*n2])
		}
	default:
		for i0 := 0; i0 < n0; i0++ {
			for i1 := 0; i1 < n1; i1++ {
				data[(i0*n1+i1)*n2+c] = sec[i0*n1+i1]
			}
		}
	}
}

// sectionStats returns the mean and variance of one slice.
func sectionStats(data []float64, shape [3]int, axis, c int) (mean, variance float64) {
	sec := extractSlice(data, shape, axis, c)
	mean = stat.Mean(sec, nil)
	variance = stat.Variance(sec, nil)
	return mean, variance
}
