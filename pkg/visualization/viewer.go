// Package visualization renders sections of augmented volumes as
// grayscale images, mainly for eyeballing augmentation output.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"volaug/pkg/volume"
)

// Viewer renders 2d sections of a 3d volume. Intensities are normalized
// to the volume's value range once at construction so all sections share
// a common gray scale.
type Viewer struct {
	vol *volume.Volume

	n0, n1, n2 int

	lo, span float64
}

// NewViewer wraps a volume for section rendering.
func NewViewer(v *volume.Volume) (*Viewer, error) {
	shape := v.Spec.VoxelShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("visualization: volume is %dd, rendering needs 3d", len(shape))
	}
	if len(v.Data) == 0 {
		return nil, fmt.Errorf("visualization: volume has no samples")
	}

	lo := floats.Min(v.Data)
	span := floats.Max(v.Data) - lo
	if span == 0 {
		span = 1
	}
	return &Viewer{
		vol:  v,
		n0:   int(shape[0]),
		n1:   int(shape[1]),
		n2:   int(shape[2]),
		lo:   lo,
		span: span,
	}, nil
}

func (v *Viewer) extent(axis int) (int, error) {
	switch axis {
	case 0:
		return v.n0, nil
	case 1:
		return v.n1, nil
	case 2:
		return v.n2, nil
	}
	return 0, fmt.Errorf("visualization: axis %d outside [0, 2]", axis)
}

// Section renders the slice at the given position along the axis as a
// 16-bit grayscale image.
func (v *Viewer) Section(axis, position int) (image.Image, error) {
	max, err := v.extent(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= max {
		return nil, fmt.Errorf("visualization: position %d outside axis extent %d", position, max)
	}

	var img *image.Gray16
	switch axis {
	case 0:
		img = image.NewGray16(image.Rect(0, 0, v.n2, v.n1))
		for i1 := 0; i1 < v.n1; i1++ {
			for i2 := 0; i2 < v.n2; i2++ {
				img.SetGray16(i2, i1, v.gray(position, i1, i2))
			}
		}
	case 1:
		img = image.NewGray16(image.Rect(0, 0, v.n2, v.n0))
		for i0 := 0; i0 < v.n0; i0++ {
			for i2 := 0; i2 < v.n2; i2++ {
				img.SetGray16(i2, i0, v.gray(i0, position, i2))
			}
		}
	default:
		img = image.NewGray16(image.Rect(0, 0, v.n1, v.n0))
		for i0 := 0; i0 < v.n0; i0++ {
			for i1 := 0; i1 < v.n1; i1++ {
				img.SetGray16(i1, i0, v.gray(i0, i1, position))
			}
		}
	}
	return img, nil
}

func (v *Viewer) gray(i0, i1, i2 int) color.Gray16 {
	val := v.vol.Data[(i0*v.n1+i1)*v.n2+i2]
	scaled := (val - v.lo) / v.span * 65535
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 65535 {
		scaled = 65535
	}
	return color.Gray16{Y: uint16(scaled)}
}

// SaveSection renders one section and writes it as a JPEG file.
func (v *Viewer) SaveSection(axis, position int, filename string) error {
	img, err := v.Section(axis, position)
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSectionSequence writes every section along the axis into outputDir
// as section_<axis>_<position>.jpg.
func (v *Viewer) SaveSectionSequence(axis int, outputDir string) error {
	max, err := v.extent(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for pos := 0; pos < max; pos++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("section_%d_%03d.jpg", axis, pos))
		if err := v.SaveSection(axis, pos, filename); err != nil {
			return err
		}
	}
	return nil
}
