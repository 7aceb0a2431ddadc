package augment

import "math"

// mapCoordinates resamples a h x w image at the given absolute coordinates
// (rowCoords[i], colCoords[i]) and returns one sample per coordinate pair.
// Samples outside the image are filled with the constant 0. With cubic set,
// sampling uses Catmull-Rom convolution (smooth and interpolating, so
// integer coordinates reproduce the source exactly); otherwise it uses
// nearest-neighbor.
func mapCoordinates(src []float64, h, w int, rowCoords, colCoords []float64, cubic bool) []float64 {
	out := make([]float64, len(rowCoords))
	for i := range rowCoords {
		if cubic {
			out[i] = sampleCubic(src, h, w, rowCoords[i], colCoords[i])
		} else {
			out[i] = sampleNearest(src, h, w, rowCoords[i], colCoords[i])
		}
	}
	return out
}

func sampleNearest(src []float64, h, w int, row, col float64) float64 {
	r := int(math.Round(row))
	c := int(math.Round(col))
	if r < 0 || r >= h || c < 0 || c >= w {
		return 0
	}
	return src[r*w+c]
}

func sampleCubic(src []float64, h, w int, row, col float64) float64 {
	rBase := math.Floor(row)
	cBase := math.Floor(col)
	tr := row - rBase
	tc := col - cBase

	var wr, wc [4]float64
	catmullRomWeights(tr, &wr)
	catmullRomWeights(tc, &wc)

	var sum float64
	for i := 0; i < 4; i++ {
		r := int(rBase) + i - 1
		if r < 0 || r >= h || wr[i] == 0 {
			continue
		}
		var rowSum float64
		for j := 0; j < 4; j++ {
			c := int(cBase) + j - 1
			if c < 0 || c >= w {
				continue
			}
			rowSum += wc[j] * src[r*w+c]
		}
		sum += wr[i] * rowSum
	}
	return sum
}

// catmullRomWeights fills the four tap weights for fractional offset t in
// [0, 1). At t = 0 the weights are (0, 1, 0, 0), giving exact
// reproduction on the sample grid.
func catmullRomWeights(t float64, w *[4]float64) {
	t2 := t * t
	t3 := t2 * t
	w[0] = -0.5*t3 + t2 - 0.5*t
	w[1] = 1.5*t3 - 2.5*t2 + 1
	w[2] = -1.5*t3 + 2*t2 + 0.5*t
	w[3] = 0.5*t3 - 0.5*t2
}
