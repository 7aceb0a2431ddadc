package augment

import (
	"fmt"

	"volaug/internal/logging"
	"volaug/pkg/geometry"
)

// Kind is the augmentation applied to a single slice.
type Kind int

const (
	// KindNone leaves the slice untouched.
	KindNone Kind = iota

	// KindZeroOut simulates a missing section by overwriting the slice
	// with zero.
	KindZeroOut

	// KindLowContrast compresses the slice's dynamic range around its
	// mean.
	KindLowContrast

	// KindArtifact alpha-blends imaging artifact data into the slice.
	KindArtifact

	// KindDeformSlice warps the slice along a simulated tissue tear.
	KindDeformSlice
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindZeroOut:
		return "zero_out"
	case KindLowContrast:
		return "low_contrast"
	case KindArtifact:
		return "artifact"
	case KindDeformSlice:
		return "deform_slice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// planEntry assigns a kind to one slice. A deformed slice carries the
// transform prepared for it; the payload is nil for every other kind.
type planEntry struct {
	Kind      Kind
	Transform *DeformTransform
}

// plan maps slice indices along the cut axis to their augmentation. It is
// built once per request on the downstream-requested voxel grid and
// discarded after the batch is processed.
type plan map[int]planEntry

func (p plan) hasDeform() bool {
	for _, e := range p {
		if e.Kind == KindDeformSlice {
			return true
		}
	}
	return false
}

// buildPlan assigns an augmentation kind to every slice of the requested
// region. Classification uses a single uniform draw per slice against the
// cumulative probability thresholds; slices chosen for deformation get
// their flow field prepared immediately so the request expansion can rely
// on the transforms existing.
func (d *DefectAugment) buildPlan(roi geometry.Roi, voxelSize geometry.Coordinate) (plan, error) {
	t1 := d.cfg.ProbMissing
	t2 := t1 + d.cfg.ProbLowContrast
	t3 := t2 + d.cfg.ProbArtifact
	t4 := t3 + d.cfg.ProbDeform

	voxShape := roi.Div(voxelSize).Shape
	n := int(voxShape[d.cfg.Axis])
	h, w := slicePlane(voxShape, d.cfg.Axis)

	d.mu.Lock()
	defer d.mu.Unlock()

	p := make(plan)
	for c := 0; c < n; c++ {
		r := d.uniform.Rand()
		switch {
		case r < t1:
			p[c] = planEntry{Kind: KindZeroOut}
		case r < t2:
			p[c] = planEntry{Kind: KindLowContrast}
		case r < t3:
			p[c] = planEntry{Kind: KindArtifact}
		case r < t4:
			tr, err := d.prepareDeformSlice(h, w)
			if err != nil {
				return nil, fmt.Errorf("augment: preparing deformation for slice %d: %w", c, err)
			}
			p[c] = planEntry{Kind: KindDeformSlice, Transform: tr}
		}
		if e, ok := p[c]; ok {
			logging.L().Debug("planned augmentation", "slice", c, "kind", e.Kind.String())
		}
	}
	return p, nil
}

// slicePlane returns the in-slice dimensions of a 3d voxel shape with the
// cut axis removed, in row-major order.
func slicePlane(voxShape geometry.Coordinate, axis int) (h, w int) {
	switch axis {
	case 0:
		return int(voxShape[1]), int(voxShape[2])
	case 1:
		return int(voxShape[0]), int(voxShape[2])
	default:
		return int(voxShape[0]), int(voxShape[1])
	}
}
