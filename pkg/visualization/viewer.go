// Package visualization renders projections and sinograms of a volume as
// grayscale images so the operator can inspect each correction stage.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"corscan/internal/models"
)

// Axis selects the plane cut out of a volume
type Axis string

const (
	// Projection is the rows x cols detector image at one angle
	Projection Axis = "projection"

	// Sinogram is the angles x cols plane at one detector row
	Sinogram Axis = "sinogram"
)

// Viewer extracts and saves 2-D views of a volume
type Viewer struct {
	vol *models.Volume
}

// NewViewer creates a viewer over vol. The volume is read, never modified.
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol}
}

// ExtractSlice cuts the plane at position along axis and scales it from its
// own [min, max] to 16-bit gray
func (v *Viewer) ExtractSlice(axis Axis, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var data []float64
	var width, height int
	switch axis {
	case Projection:
		if position >= v.vol.Angles {
			return nil, fmt.Errorf("position %d exceeds angles %d", position, v.vol.Angles)
		}
		data, width, height = v.vol.Projection(position), v.vol.Cols, v.vol.Rows
	case Sinogram:
		if position >= v.vol.Rows {
			return nil, fmt.Errorf("position %d exceeds rows %d", position, v.vol.Rows)
		}
		data, width, height = v.vol.Sinogram(position), v.vol.Cols, v.vol.Angles
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be %s or %s)", axis, Projection, Sinogram)
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	lo, hi := floats.Min(data), floats.Max(data)
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := uint16(math.Max(0, math.Min(65535, (data[y*width+x]-lo)*scale)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return err
	}
	return file.Close()
}

// SaveStage writes the first projection and the first sinogram of the volume
// as <dir>/<stage>_projection.png and <dir>/<stage>_sinogram.png
func (v *Viewer) SaveStage(dir, stage string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, axis := range []Axis{Projection, Sinogram} {
		img, err := v.ExtractSlice(axis, 0)
		if err != nil {
			return err
		}
		filename := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stage, axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("failed to save %s preview: %w", stage, err)
		}
	}
	return nil
}
