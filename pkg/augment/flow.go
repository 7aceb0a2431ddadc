package augment

import (
	"fmt"
	"math"
)

// DeformTransform holds the precomputed warp for one deformed slice: the
// absolute sampling coordinates (identity meshgrid plus displacement) and
// the dilated tear-line mask, all over the padded slice of PadH x PadW
// pixels. FlowY carries row coordinates, FlowX column coordinates, both
// flattened row-major.
type DeformTransform struct {
	FlowX []float64
	FlowY []float64
	Mask  []bool
	PadH  int
	PadW  int
}

// dilateIterations is the number of binary dilation passes applied to the
// tear line so the blacked-out seam has visible width.
const dilateIterations = 10

// prepareDeformSlice builds the transform for a slice of h x w voxels.
// The slice is padded by the deformation strength on each side; a random
// tear line is drawn across the padded slice and every pixel is displaced
// by the strength along the line normal, away from the line on one side
// and toward it on the other. Callers must hold d.mu.
func (d *DefectAugment) prepareDeformSlice(h, w int) (*DeformTransform, error) {
	s := d.cfg.DeformationStrength
	padH := h + 2*s
	padW := w + 2*s
	if padH < 4 || padW < 4 {
		return nil, fmt.Errorf("padded slice %dx%d too small for a tear line", padH, padW)
	}

	// The line runs border to border along one dimension; the endpoint
	// coordinates in the other dimension stay off the border.
	fixedX := d.rng.Float64() < 0.5
	var r0, c0, r1, c1 int
	if fixedX {
		r0, c0 = 0, 1+d.rng.Intn(padW-3)
		r1, c1 = padH-1, 1+d.rng.Intn(padW-3)
	} else {
		r0, c0 = 1+d.rng.Intn(padH-3), 0
		r1, c1 = 1+d.rng.Intn(padH-3), padW-1
	}

	return deformFromLine(padH, padW, s, fixedX, r0, c0, r1, c1)
}

// deformFromLine computes the flow fields and tear mask for a fixed line.
// Split out of prepareDeformSlice so the side conventions can be pinned in
// tests without going through the random draws.
func deformFromLine(padH, padW, strength int, fixedX bool, r0, c0, r1, c1 int) (*DeformTransform, error) {
	mask := make([]bool, padH*padW)
	rasterLine(r0, c0, r1, c1, func(r, c int) {
		mask[r*padW+c] = true
	})

	// Unit line vector and its normal.
	lr := float64(r1 - r0)
	lc := float64(c1 - c0)
	norm := math.Hypot(lr, lc)
	lr, lc = lr/norm, lc/norm
	normalR, normalC := -lc, lr

	// The line must split the slice into exactly two regions; anything
	// else means the raster degenerated and is a defect, not an input
	// condition.
	labels, count := labelComplement(mask, padH, padW)
	if count != 2 {
		return nil, fmt.Errorf("tear line split slice into %d regions, expected 2", count)
	}

	// Corner convention for which side moves along +normal: with a
	// fixed-x line the positive side holds the far corner, with a
	// fixed-y line it holds the origin corner.
	var posLabel, negLabel int32
	if fixedX {
		negLabel = labels[0]
		posLabel = labels[(padH-1)*padW+(padW-1)]
	} else {
		posLabel = labels[0]
		negLabel = labels[(padH-1)*padW+(padW-1)]
	}

	flowX := make([]float64, padH*padW)
	flowY := make([]float64, padH*padW)
	fs := float64(strength)
	for r := 0; r < padH; r++ {
		for c := 0; c < padW; c++ {
			i := r*padW + c
			var dr, dc float64
			switch labels[i] {
			case posLabel:
				dr, dc = fs*normalR, fs*normalC
			case negLabel:
				dr, dc = -fs*normalR, -fs*normalC
			}
			flowY[i] = float64(r) + dr
			flowX[i] = float64(c) + dc
		}
	}

	// A zero-strength deformation leaves a zero-width seam: only the
	// line pixels themselves are masked.
	if strength > 0 {
		mask = dilate(mask, padH, padW, dilateIterations)
	}

	return &DeformTransform{
		FlowX: flowX,
		FlowY: flowY,
		Mask:  mask,
		PadH:  padH,
		PadW:  padW,
	}, nil
}

// rasterLine walks the discrete line from (r0,c0) to (r1,c1) with the
// Bresenham midpoint rule and reports every pixel, endpoints included.
func rasterLine(r0, c0, r1, c1 int, visit func(r, c int)) {
	dr := abs(r1 - r0)
	dc := abs(c1 - c0)
	sr, sc := 1, 1
	if r0 > r1 {
		sr = -1
	}
	if c0 > c1 {
		sc = -1
	}
	e := dr - dc
	r, c := r0, c0
	for {
		visit(r, c)
		if r == r1 && c == c1 {
			return
		}
		e2 := 2 * e
		if e2 > -dc {
			e -= dc
			r += sr
		}
		if e2 < dr {
			e += dr
			c += sc
		}
	}
}

// labelComplement labels the 4-connected components of the mask's
// complement, returning a label per pixel (0 for line pixels) and the
// component count.
func labelComplement(mask []bool, h, w int) ([]int32, int) {
	labels := make([]int32, h*w)
	queue := make([]int, 0, h*w)
	var next int32

	for start := range labels {
		if mask[start] || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			r, c := i/w, i%w
			for _, nb := range [4][2]int{{r - 1, c}, {r + 1, c}, {r, c - 1}, {r, c + 1}} {
				nr, nc := nb[0], nb[1]
				if nr < 0 || nr >= h || nc < 0 || nc >= w {
					continue
				}
				j := nr*w + nc
				if mask[j] || labels[j] != 0 {
					continue
				}
				labels[j] = next
				queue = append(queue, j)
			}
		}
	}
	return labels, int(next)
}

// dilate grows the mask by the given number of 8-connected dilation
// passes.
func dilate(mask []bool, h, w int, iterations int) []bool {
	cur := mask
	for it := 0; it < iterations; it++ {
		out := make([]bool, len(cur))
		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				i := r*w + c
				if cur[i] {
					out[i] = true
					continue
				}
			neighbors:
				for nr := r - 1; nr <= r+1; nr++ {
					for nc := c - 1; nc <= c+1; nc++ {
						if nr < 0 || nr >= h || nc < 0 || nc >= w {
							continue
						}
						if cur[nr*w+nc] {
							out[i] = true
							break neighbors
						}
					}
				}
			}
		}
		cur = out
	}
	return cur
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
