package augment

import (
	"math"
	"testing"
)

// TestRasterLine verifies the discrete line covers both endpoints and is
// deterministic for straight and diagonal cases.
func TestRasterLine(t *testing.T) {
	collect := func(r0, c0, r1, c1 int) map[[2]int]bool {
		seen := make(map[[2]int]bool)
		rasterLine(r0, c0, r1, c1, func(r, c int) {
			seen[[2]int{r, c}] = true
		})
		return seen
	}

	horiz := collect(2, 0, 2, 4)
	if len(horiz) != 5 {
		t.Errorf("horizontal line: expected 5 pixels, got %d", len(horiz))
	}
	for c := 0; c <= 4; c++ {
		if !horiz[[2]int{2, c}] {
			t.Errorf("horizontal line missing pixel (2,%d)", c)
		}
	}

	diag := collect(0, 0, 3, 3)
	if len(diag) != 4 {
		t.Errorf("diagonal line: expected 4 pixels, got %d", len(diag))
	}
	for i := 0; i <= 3; i++ {
		if !diag[[2]int{i, i}] {
			t.Errorf("diagonal line missing pixel (%d,%d)", i, i)
		}
	}

	// Reversed endpoints cover the same pixels.
	rev := collect(3, 3, 0, 0)
	for p := range diag {
		if !rev[p] {
			t.Errorf("reversed line missing pixel %v", p)
		}
	}
}

func TestLabelComplement(t *testing.T) {
	// A full-height vertical line splits an 8x8 grid into two regions.
	h, w := 8, 8
	mask := make([]bool, h*w)
	for r := 0; r < h; r++ {
		mask[r*w+4] = true
	}

	labels, count := labelComplement(mask, h, w)
	if count != 2 {
		t.Fatalf("expected 2 components, got %d", count)
	}
	if labels[0] == labels[7] {
		t.Errorf("pixels on opposite sides of the line share label %d", labels[0])
	}
	if labels[4] != 0 {
		t.Errorf("line pixel should be unlabelled, got %d", labels[4])
	}

	// A line stopping short of the border leaves one region.
	open := make([]bool, h*w)
	for r := 0; r < h-2; r++ {
		open[r*w+4] = true
	}
	if _, count := labelComplement(open, h, w); count != 1 {
		t.Errorf("open line: expected 1 component, got %d", count)
	}
}

func TestDilate(t *testing.T) {
	h, w := 7, 7
	mask := make([]bool, h*w)
	mask[3*w+3] = true

	once := dilate(mask, h, w, 1)
	onCount := 0
	for _, v := range once {
		if v {
			onCount++
		}
	}
	// One 8-connected pass turns a point into a 3x3 block.
	if onCount != 9 {
		t.Errorf("expected 9 pixels after one dilation, got %d", onCount)
	}
	for r := 2; r <= 4; r++ {
		for c := 2; c <= 4; c++ {
			if !once[r*w+c] {
				t.Errorf("expected pixel (%d,%d) set after dilation", r, c)
			}
		}
	}
}

// TestDeformFixedXConvention pins the positive-side convention for a
// fixed-x tear line: the component holding the far corner moves along
// +normal.
func TestDeformFixedXConvention(t *testing.T) {
	padH, padW, s := 64, 64, 2

	// Vertical line at column 31, fixed-x endpoints.
	tr, err := deformFromLine(padH, padW, s, true, 0, 31, padH-1, 31)
	if err != nil {
		t.Fatalf("deformFromLine: %v", err)
	}

	// Line vector is (1,0), normal (0,1): displacement is purely along
	// columns. The far-corner side (c > 31) moves by +s, the origin side
	// by -s.
	farCorner := (padH-1)*padW + (padW - 1)
	if got, want := tr.FlowX[farCorner], float64(padW-1+s); got != want {
		t.Errorf("far corner column coordinate: expected %v, got %v", want, got)
	}
	if got, want := tr.FlowX[0], float64(-s); got != want {
		t.Errorf("origin column coordinate: expected %v, got %v", want, got)
	}
	// Row coordinates keep the identity.
	if got := tr.FlowY[farCorner]; got != float64(padH-1) {
		t.Errorf("far corner row coordinate: expected %v, got %v", float64(padH-1), got)
	}

	// The dilated seam spans 10 pixels each side of the line.
	mid := (padH / 2) * padW
	if !tr.Mask[mid+31] {
		t.Errorf("line pixel should be masked")
	}
	if !tr.Mask[mid+41] || !tr.Mask[mid+21] {
		t.Errorf("pixels within 10 columns of the line should be masked")
	}
	if tr.Mask[mid+42] || tr.Mask[mid+20] {
		t.Errorf("pixels beyond the dilated band should not be masked")
	}
}

// TestDeformFixedYConvention pins the opposite convention for a fixed-y
// line: the component holding the origin corner moves along +normal.
func TestDeformFixedYConvention(t *testing.T) {
	padH, padW, s := 64, 64, 3

	// Horizontal line at row 31, fixed-y endpoints.
	tr, err := deformFromLine(padH, padW, s, false, 31, 0, 31, padW-1)
	if err != nil {
		t.Fatalf("deformFromLine: %v", err)
	}

	// Line vector is (0,1), normal (-1,0): displacement is purely along
	// rows. The origin side (r < 31) is positive and moves by -s rows.
	if got, want := tr.FlowY[0], float64(-s); got != want {
		t.Errorf("origin row coordinate: expected %v, got %v", want, got)
	}
	farCorner := (padH-1)*padW + (padW - 1)
	if got, want := tr.FlowY[farCorner], float64(padH-1+s); got != want {
		t.Errorf("far corner row coordinate: expected %v, got %v", want, got)
	}
	if got := tr.FlowX[farCorner]; got != float64(padW-1) {
		t.Errorf("column coordinates should keep the identity, got %v", got)
	}
}

// TestDeformZeroStrength checks the degenerate case: no displacement and a
// zero-width seam covering only the line pixels.
func TestDeformZeroStrength(t *testing.T) {
	padH, padW := 32, 32
	tr, err := deformFromLine(padH, padW, 0, true, 0, 15, padH-1, 15)
	if err != nil {
		t.Fatalf("deformFromLine: %v", err)
	}

	for r := 0; r < padH; r++ {
		for c := 0; c < padW; c++ {
			i := r*padW + c
			if tr.FlowY[i] != float64(r) || tr.FlowX[i] != float64(c) {
				t.Fatalf("pixel (%d,%d): expected identity coordinates, got (%v,%v)",
					r, c, tr.FlowY[i], tr.FlowX[i])
			}
		}
	}

	masked := 0
	for _, v := range tr.Mask {
		if v {
			masked++
		}
	}
	if masked != padH {
		t.Errorf("zero-width seam: expected %d masked pixels, got %d", padH, masked)
	}
}

// TestDeformDegenerateLine checks that a line failing to split the slice
// is a fatal error carrying the component count.
func TestDeformDegenerateLine(t *testing.T) {
	// A line along the top border leaves a single region.
	_, err := deformFromLine(8, 8, 1, true, 0, 1, 0, 6)
	if err == nil {
		t.Fatalf("expected error for a non-separating line")
	}
}

func TestMapCoordinatesIdentity(t *testing.T) {
	h, w := 5, 7
	src := make([]float64, h*w)
	for i := range src {
		src[i] = float64(i) * 0.5
	}
	rows := make([]float64, h*w)
	cols := make([]float64, h*w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			rows[r*w+c] = float64(r)
			cols[r*w+c] = float64(c)
		}
	}

	for _, cubic := range []bool{false, true} {
		got := mapCoordinates(src, h, w, rows, cols, cubic)
		for i := range src {
			if math.Abs(got[i]-src[i]) > 1e-12 {
				t.Fatalf("cubic=%t: sample %d expected %v, got %v", cubic, i, src[i], got[i])
			}
		}
	}
}

func TestMapCoordinatesConstantFill(t *testing.T) {
	h, w := 4, 4
	src := make([]float64, h*w)
	for i := range src {
		src[i] = 9
	}

	rows := []float64{-3, 0, 10}
	cols := []float64{0, -5, 10}
	for _, cubic := range []bool{false, true} {
		got := mapCoordinates(src, h, w, rows, cols, cubic)
		for i, v := range got {
			if v != 0 {
				t.Errorf("cubic=%t: out-of-bounds sample %d expected 0, got %v", cubic, i, v)
			}
		}
	}
}

func TestMapCoordinatesNearestRounds(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	got := mapCoordinates(src, 2, 2, []float64{0.4, 0.6}, []float64{0.4, 0.6}, false)
	if got[0] != 1 {
		t.Errorf("(0.4,0.4) should round to sample 1, got %v", got[0])
	}
	if got[1] != 4 {
		t.Errorf("(0.6,0.6) should round to sample 4, got %v", got[1])
	}
}
