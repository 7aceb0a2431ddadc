// Package volume defines the data model exchanged between pipeline nodes:
// volume metadata (Spec), dense samples (Volume), and the request/response
// maps (Request, Batch) keyed by volume type.
package volume

import (
	"fmt"

	"volaug/pkg/geometry"
)

// Type identifies a named volume within a request or batch.
type Type string

const (
	// Raw is the imaging data itself.
	Raw Type = "raw"

	// AlphaMask is a per-voxel opacity mask in [0, 1], used for alpha
	// blending artifact data into raw sections.
	AlphaMask Type = "alpha_mask"
)

// Dtype describes the sample type a volume represents. Data is always
// carried as float64 in memory; Dtype is contract metadata that providers
// must agree on.
type Dtype int

const (
	Uint8 Dtype = iota
	Float32
	Float64
)

func (d Dtype) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Spec holds the metadata of a volume: where it lives in world coordinates,
// the physical size of its voxels, whether its values may be interpolated,
// and its sample type.
//
// A zero Roi is only valid for specs describing a provider's offerable
// universe; a spec attached to concrete data always has its Roi set.
type Spec struct {
	Roi            geometry.Roi
	VoxelSize      geometry.Coordinate
	Interpolatable bool
	Dtype          Dtype
}

// Copy returns a deep copy of the spec. Specs attached to volumes are
// treated as immutable; mutations go through a copy.
func (s Spec) Copy() Spec {
	return Spec{
		Roi:            s.Roi.Clone(),
		VoxelSize:      s.VoxelSize.Clone(),
		Interpolatable: s.Interpolatable,
		Dtype:          s.Dtype,
	}
}

// VoxelShape returns the extent of the spec's Roi in voxel units.
func (s Spec) VoxelShape() geometry.Coordinate {
	return s.Roi.Div(s.VoxelSize).Shape
}

func (s Spec) String() string {
	return fmt.Sprintf("roi: %s, voxel size: %s, interpolatable: %t, dtype: %s",
		s.Roi, s.VoxelSize, s.Interpolatable, s.Dtype)
}

// Volume is a dense sample block plus the spec describing it. Data is laid
// out in row-major order: for a 3D volume with voxel shape (n0, n1, n2),
// index (i0, i1, i2) maps to (i0*n1+i1)*n2 + i2.
type Volume struct {
	Spec Spec
	Data []float64
}

// New builds a Volume and checks that the data length matches the voxel
// shape implied by the spec.
func New(spec Spec, data []float64) (*Volume, error) {
	want := int64(1)
	for _, n := range spec.VoxelShape() {
		want *= n
	}
	if int64(len(data)) != want {
		return nil, fmt.Errorf("volume: data length %d does not match voxel shape %s (%d samples)",
			len(data), spec.VoxelShape(), want)
	}
	return &Volume{Spec: spec, Data: data}, nil
}

// Crop returns a new volume restricted to the given world-unit region,
// which must lie inside the volume and be aligned to its voxel grid.
// The receiver is left untouched.
func (v *Volume) Crop(roi geometry.Roi) (*Volume, error) {
	if roi.Dims() != 3 {
		return nil, fmt.Errorf("volume: crop supports 3d regions, got %dd", roi.Dims())
	}
	if !v.Spec.Roi.Contains(roi) {
		return nil, fmt.Errorf("volume: crop region %s not contained in %s", roi, v.Spec.Roi)
	}
	rel := roi.Offset.Sub(v.Spec.Roi.Offset)
	if !rel.Divides(v.Spec.VoxelSize) || !roi.Shape.Divides(v.Spec.VoxelSize) {
		return nil, fmt.Errorf("volume: crop region %s not aligned to voxel size %s", roi, v.Spec.VoxelSize)
	}

	src := v.Spec.VoxelShape()
	begin := rel.Div(v.Spec.VoxelSize)
	size := roi.Shape.Div(v.Spec.VoxelSize)

	out := make([]float64, size[0]*size[1]*size[2])
	for i0 := int64(0); i0 < size[0]; i0++ {
		for i1 := int64(0); i1 < size[1]; i1++ {
			srcBase := ((begin[0]+i0)*src[1]+(begin[1]+i1))*src[2] + begin[2]
			dstBase := (i0*size[1] + i1) * size[2]
			copy(out[dstBase:dstBase+size[2]], v.Data[srcBase:srcBase+size[2]])
		}
	}

	spec := v.Spec.Copy()
	spec.Roi = roi.Clone()
	return &Volume{Spec: spec, Data: out}, nil
}
