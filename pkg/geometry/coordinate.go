// Package geometry provides the integer coordinate and region-of-interest
// arithmetic used throughout the augmentation pipeline. All values are in
// world units; conversion to voxel units happens by dividing by a voxel size.
package geometry

import (
	"fmt"
	"strings"
)

// Coordinate is an N-dimensional integer vector in world units.
// It is used both for points (ROI offsets) and for extents (ROI shapes,
// voxel sizes).
type Coordinate []int64

// Coord builds a Coordinate from its components.
func Coord(vals ...int64) Coordinate {
	c := make(Coordinate, len(vals))
	copy(c, vals)
	return c
}

// Dims returns the number of dimensions.
func (c Coordinate) Dims() int { return len(c) }

// Clone returns an independent copy of the coordinate.
func (c Coordinate) Clone() Coordinate {
	out := make(Coordinate, len(c))
	copy(out, c)
	return out
}

// Add returns the elementwise sum c + o.
func (c Coordinate) Add(o Coordinate) Coordinate {
	out := make(Coordinate, len(c))
	for i := range c {
		out[i] = c[i] + o[i]
	}
	return out
}

// Sub returns the elementwise difference c - o.
func (c Coordinate) Sub(o Coordinate) Coordinate {
	out := make(Coordinate, len(c))
	for i := range c {
		out[i] = c[i] - o[i]
	}
	return out
}

// Mul returns the elementwise product c * o.
func (c Coordinate) Mul(o Coordinate) Coordinate {
	out := make(Coordinate, len(c))
	for i := range c {
		out[i] = c[i] * o[i]
	}
	return out
}

// Div returns the elementwise quotient c / o. Division truncates toward
// zero; callers that need exact voxel grids should check Divides first.
func (c Coordinate) Div(o Coordinate) Coordinate {
	out := make(Coordinate, len(c))
	for i := range c {
		out[i] = c[i] / o[i]
	}
	return out
}

// Divides reports whether every component of c is an integer multiple of
// the corresponding component of o.
func (c Coordinate) Divides(o Coordinate) bool {
	for i := range c {
		if o[i] == 0 || c[i]%o[i] != 0 {
			return false
		}
	}
	return true
}

// Eq reports elementwise equality.
func (c Coordinate) Eq(o Coordinate) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

func (c Coordinate) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
