// Package normalize applies flat/dark field correction and rescales each
// projection so its air region reads a constant intensity.
package normalize

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"corscan/internal/models"
)

// minDenominator floors flat - dark so dead flat pixels do not divide by zero
const minDenominator = 1e-6

// Normalizer corrects radiographs against reference frames
type Normalizer struct {
	// AirWidth is the number of columns at each edge of a row treated as air
	AirWidth int

	// AirLevel is the intensity the air columns read after rescaling
	AirLevel float64
}

// NewNormalizer creates a normalizer with the given air region and target
func NewNormalizer(airWidth int, airLevel float64) *Normalizer {
	return &Normalizer{AirWidth: airWidth, AirLevel: airLevel}
}

// Apply takes ownership of vol and returns it flat-field corrected,
// background rescaled and with row 0 replaced by row 1.
// flat and dark are read only.
func (n *Normalizer) Apply(vol, flat, dark *models.Volume) (*models.Volume, error) {
	if err := n.check(vol, flat, dark); err != nil {
		return nil, err
	}

	FlatField(vol, flat, dark)
	n.Background(vol)
	PatchFirstRow(vol)
	return vol, nil
}

func (n *Normalizer) check(vol, flat, dark *models.Volume) error {
	if !vol.SameDetector(flat) || !vol.SameDetector(dark) {
		return fmt.Errorf("%w: radiograph %s, flat %s and dark %s differ in detector shape",
			models.ErrRange, vol, flat, dark)
	}
	if flat.Angles < 1 || dark.Angles < 1 {
		return fmt.Errorf("%w: reference frames need at least one exposure", models.ErrRange)
	}
	if vol.Rows < 2 {
		return fmt.Errorf("%w: %d rows loaded, row patching needs at least 2", models.ErrRange, vol.Rows)
	}
	if n.AirWidth < 1 || 2*n.AirWidth > vol.Cols {
		return fmt.Errorf("%w: air width %d does not fit %d columns", models.ErrConfiguration, n.AirWidth, vol.Cols)
	}
	if n.AirLevel <= 0 {
		return fmt.Errorf("%w: air level must be positive, got %g", models.ErrConfiguration, n.AirLevel)
	}
	return nil
}

// FlatField replaces every projection p with (p - dark) / (flat - dark),
// where flat and dark are averaged over their exposures
func FlatField(vol, flat, dark *models.Volume) {
	flatMean := meanProjection(flat)
	darkMean := meanProjection(dark)

	denom := make([]float64, len(flatMean))
	floats.SubTo(denom, flatMean, darkMean)
	for i, d := range denom {
		if d < minDenominator {
			denom[i] = minDenominator
		}
	}

	for a := 0; a < vol.Angles; a++ {
		proj := vol.Projection(a)
		floats.Sub(proj, darkMean)
		floats.Div(proj, denom)
	}
}

// meanProjection averages a reference volume over its exposures
func meanProjection(ref *models.Volume) []float64 {
	mean := make([]float64, ref.Rows*ref.Cols)
	for a := 0; a < ref.Angles; a++ {
		floats.Add(mean, ref.Projection(a))
	}
	floats.Scale(1/float64(ref.Angles), mean)
	return mean
}

// Background compensates beam drift. For every row the means of the air
// columns at both edges define a linear ramp; the row is divided by the
// ramp and scaled to AirLevel.
func (n *Normalizer) Background(vol *models.Volume) {
	w := n.AirWidth
	// The ramp passes through each air mean at the center of its columns
	cLeft := float64(w-1) / 2
	cRight := float64(vol.Cols-1) - cLeft
	span := cRight - cLeft

	for a := 0; a < vol.Angles; a++ {
		for r := 0; r < vol.Rows; r++ {
			start := vol.Index(a, r, 0)
			row := vol.Data[start : start+vol.Cols]

			left := stat.Mean(row[:w], nil)
			right := stat.Mean(row[vol.Cols-w:], nil)

			for c := range row {
				t := 0.0
				if span > 0 {
					t = (float64(c) - cLeft) / span
				}
				ramp := left + (right-left)*t
				if ramp < minDenominator && ramp > -minDenominator {
					continue
				}
				row[c] *= n.AirLevel / ramp
			}
		}
	}
}

// PatchFirstRow copies row 1 over row 0 in every projection. The first
// detector row is corrupted by the edge handling of the correction.
func PatchFirstRow(vol *models.Volume) {
	for a := 0; a < vol.Angles; a++ {
		proj := vol.Projection(a)
		copy(proj[:vol.Cols], proj[vol.Cols:2*vol.Cols])
	}
}
