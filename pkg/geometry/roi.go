package geometry

import "fmt"

// Roi is an axis-aligned region of interest in world units, described by
// its offset (the start corner) and its shape (the extent along each axis).
type Roi struct {
	Offset Coordinate
	Shape  Coordinate
}

// NewRoi builds a Roi from an offset and a shape. Offset and shape must
// have the same dimensionality.
func NewRoi(offset, shape Coordinate) Roi {
	if len(offset) != len(shape) {
		panic(fmt.Sprintf("geometry: roi offset dims %d != shape dims %d", len(offset), len(shape)))
	}
	return Roi{Offset: offset.Clone(), Shape: shape.Clone()}
}

// Dims returns the number of dimensions of the region.
func (r Roi) Dims() int { return len(r.Shape) }

// Empty reports whether the region has no extent.
func (r Roi) Empty() bool { return len(r.Shape) == 0 }

// End returns the exclusive end corner, offset + shape.
func (r Roi) End() Coordinate { return r.Offset.Add(r.Shape) }

// Clone returns an independent copy of the region.
func (r Roi) Clone() Roi {
	return Roi{Offset: r.Offset.Clone(), Shape: r.Shape.Clone()}
}

// Grow expands the region by neg before the offset and pos after the end,
// per axis. Negative amounts shrink the region.
func (r Roi) Grow(neg, pos Coordinate) Roi {
	return Roi{
		Offset: r.Offset.Sub(neg),
		Shape:  r.Shape.Add(neg).Add(pos),
	}
}

// Div scales the region from world units to grid units by dividing both
// offset and shape by the given voxel size.
func (r Roi) Div(voxelSize Coordinate) Roi {
	return Roi{
		Offset: r.Offset.Div(voxelSize),
		Shape:  r.Shape.Div(voxelSize),
	}
}

// Contains reports whether o lies entirely within r.
func (r Roi) Contains(o Roi) bool {
	if r.Dims() != o.Dims() {
		return false
	}
	rEnd, oEnd := r.End(), o.End()
	for d := range r.Shape {
		if o.Offset[d] < r.Offset[d] || oEnd[d] > rEnd[d] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of the two regions and whether it is
// non-empty along every axis.
func (r Roi) Intersect(o Roi) (Roi, bool) {
	if r.Dims() != o.Dims() {
		return Roi{}, false
	}
	offset := make(Coordinate, r.Dims())
	shape := make(Coordinate, r.Dims())
	rEnd, oEnd := r.End(), o.End()
	for d := range offset {
		offset[d] = max64(r.Offset[d], o.Offset[d])
		end := min64(rEnd[d], oEnd[d])
		if end <= offset[d] {
			return Roi{}, false
		}
		shape[d] = end - offset[d]
	}
	return Roi{Offset: offset, Shape: shape}, true
}

// Eq reports whether the two regions are identical.
func (r Roi) Eq(o Roi) bool {
	return r.Offset.Eq(o.Offset) && r.Shape.Eq(o.Shape)
}

func (r Roi) String() string {
	return fmt.Sprintf("%s+%s", r.Offset, r.Shape)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
