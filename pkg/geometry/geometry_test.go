package geometry

import "testing"

// TestCoordinateArithmetic verifies the elementwise vector operations
// that the request expansion and cropping logic depend on.
func TestCoordinateArithmetic(t *testing.T) {
	a := Coord(10, 20, 30)
	b := Coord(1, 2, 3)

	if got := a.Add(b); !got.Eq(Coord(11, 22, 33)) {
		t.Errorf("Add: expected (11, 22, 33), got %s", got)
	}
	if got := a.Sub(b); !got.Eq(Coord(9, 18, 27)) {
		t.Errorf("Sub: expected (9, 18, 27), got %s", got)
	}
	if got := a.Mul(b); !got.Eq(Coord(10, 40, 90)) {
		t.Errorf("Mul: expected (10, 40, 90), got %s", got)
	}
	if got := a.Div(b); !got.Eq(Coord(10, 10, 10)) {
		t.Errorf("Div: expected (10, 10, 10), got %s", got)
	}
}

func TestCoordinateDivides(t *testing.T) {
	if !Coord(10, 20).Divides(Coord(5, 4)) {
		t.Errorf("expected (10, 20) to divide by (5, 4)")
	}
	if Coord(10, 21).Divides(Coord(5, 4)) {
		t.Errorf("expected (10, 21) not to divide by (5, 4)")
	}
	if Coord(10).Divides(Coord(0)) {
		t.Errorf("division by zero voxel size must not report divisible")
	}
}

func TestCoordinateCloneIsIndependent(t *testing.T) {
	a := Coord(1, 2, 3)
	b := a.Clone()
	b[0] = 99
	if a[0] != 1 {
		t.Errorf("clone mutation leaked into original: %s", a)
	}
}

// TestRoiGrow verifies symmetric growth, the operation used to expand the
// upstream request when a slice deformation is planned.
func TestRoiGrow(t *testing.T) {
	r := NewRoi(Coord(0, 100, 100), Coord(10, 50, 50))
	g := Coord(0, 20, 20)

	grown := r.Grow(g, g)
	if !grown.Offset.Eq(Coord(0, 80, 80)) {
		t.Errorf("grown offset: expected (0, 80, 80), got %s", grown.Offset)
	}
	if !grown.Shape.Eq(Coord(10, 90, 90)) {
		t.Errorf("grown shape: expected (10, 90, 90), got %s", grown.Shape)
	}

	// Shrinking back must round-trip to the original region.
	back := grown.Grow(Coord(0, -20, -20), Coord(0, -20, -20))
	if !back.Eq(r) {
		t.Errorf("grow/shrink round trip: expected %s, got %s", r, back)
	}
}

func TestRoiDiv(t *testing.T) {
	r := NewRoi(Coord(40, 8, 8), Coord(40, 200, 200))
	vs := Coord(40, 4, 4)

	voxels := r.Div(vs)
	if !voxels.Offset.Eq(Coord(1, 2, 2)) {
		t.Errorf("voxel offset: expected (1, 2, 2), got %s", voxels.Offset)
	}
	if !voxels.Shape.Eq(Coord(1, 50, 50)) {
		t.Errorf("voxel shape: expected (1, 50, 50), got %s", voxels.Shape)
	}
}

func TestRoiContains(t *testing.T) {
	outer := NewRoi(Coord(0, 0, 0), Coord(100, 100, 100))
	inner := NewRoi(Coord(10, 10, 10), Coord(50, 50, 50))

	if !outer.Contains(inner) {
		t.Errorf("expected %s to contain %s", outer, inner)
	}
	if inner.Contains(outer) {
		t.Errorf("expected %s not to contain %s", inner, outer)
	}

	touching := NewRoi(Coord(50, 0, 0), Coord(50, 100, 100))
	if !outer.Contains(touching) {
		t.Errorf("region touching the boundary should be contained")
	}
	overflow := NewRoi(Coord(60, 0, 0), Coord(50, 100, 100))
	if outer.Contains(overflow) {
		t.Errorf("region past the boundary should not be contained")
	}
}

func TestRoiIntersect(t *testing.T) {
	a := NewRoi(Coord(0, 0), Coord(10, 10))
	b := NewRoi(Coord(5, 5), Coord(10, 10))

	got, ok := a.Intersect(b)
	if !ok {
		t.Fatalf("expected non-empty intersection")
	}
	want := NewRoi(Coord(5, 5), Coord(5, 5))
	if !got.Eq(want) {
		t.Errorf("intersection: expected %s, got %s", want, got)
	}

	c := NewRoi(Coord(20, 20), Coord(5, 5))
	if _, ok := a.Intersect(c); ok {
		t.Errorf("disjoint regions must report an empty intersection")
	}
}
