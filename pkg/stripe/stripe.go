// Package stripe suppresses vertical stripe artifacts caused by defective or
// miscalibrated detector columns, using the combined wavelet-Fourier filter
// of Münch et al. (Optics Express, 2009).
package stripe

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"corscan/internal/models"
)

// Remover filters every sinogram of a volume
type Remover struct {
	// Level is the decomposition depth; values <= 0 use the deepest usable level
	Level int

	// Wavelet is the family tag (see Wavelets)
	Wavelet string

	// Sigma is the damping width of the Fourier filter
	Sigma float64

	// Pad extends each sinogram by an eighth of its width before filtering
	Pad bool

	// Cores bounds the number of sinograms filtered concurrently
	Cores int
}

// Apply takes ownership of vol and returns it with stripes removed.
// Each detector row is an independent sinogram.
func (s *Remover) Apply(ctx context.Context, vol *models.Volume) (*models.Volume, error) {
	bank, err := newFilterBank(s.Wavelet)
	if err != nil {
		return nil, err
	}
	if s.Sigma <= 0 {
		return nil, fmt.Errorf("%w: stripe sigma must be positive, got %g", models.ErrConfiguration, s.Sigma)
	}
	if s.Cores < 1 {
		return nil, fmt.Errorf("%w: stripe removal needs at least one core, got %d", models.ErrConfiguration, s.Cores)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Cores)
	for r := 0; r < vol.Rows; r++ {
		r := r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sino := vol.Sinogram(r)
			vol.SetSinogram(r, s.filterSinogram(bank, sino, vol.Angles, vol.Cols))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vol, nil
}

// filterSinogram returns the filtered copy of an angles x cols sinogram
func (s *Remover) filterSinogram(bank *filterBank, sino []float64, angles, cols int) []float64 {
	padCols := 0
	if s.Pad {
		padCols = cols / 16 // each side, an eighth in total
	}
	level := s.level(len(bank.lo), angles, cols+2*padCols)
	if level < 1 {
		return sino
	}

	block := 1 << level
	rows := roundUp(angles, block)
	width := roundUp(cols+2*padCols, block)
	x := extend(sino, angles, cols, rows, width, padCols)

	// decompose, keeping the details of every level
	levels := make([]*subbands, level)
	approx := x
	r, c := rows, width
	for l := 0; l < level; l++ {
		levels[l] = bank.dwt2(approx, r, c)
		approx = levels[l].aa
		r, c = r/2, c/2
	}

	for _, band := range levels {
		dampVertical(band.ad, band.rows, band.cols, s.Sigma)
	}

	// rebuild from the coarsest level up
	for l := level - 1; l >= 0; l-- {
		levels[l].aa = approx
		approx = bank.idwt2(levels[l])
	}

	out := make([]float64, angles*cols)
	for a := 0; a < angles; a++ {
		copy(out[a*cols:(a+1)*cols], approx[a*width+padCols:a*width+padCols+cols])
	}
	return out
}

// level bounds the requested depth so the coarsest band is no shorter than
// the wavelet filter along either axis
func (s *Remover) level(filterLen, rows, cols int) int {
	short := rows
	if cols < short {
		short = cols
	}
	deepest := 0
	for short>>(deepest+1) >= filterLen {
		deepest++
	}
	if s.Level <= 0 || s.Level > deepest {
		return deepest
	}
	return s.Level
}

// dampVertical removes the low angular frequencies of every column of a
// rows x cols detail band: each column is scaled in Fourier space by
// 1 - exp(-f^2 / (2 sigma^2)), which zeroes the constant component that a
// stripe contributes
func dampVertical(band []float64, rows, cols int, sigma float64) {
	fft := fourier.NewCmplxFFT(rows)
	damp := make([]float64, rows)
	for k := range damp {
		f := float64(k)
		if k >= rows-rows/2 {
			f = float64(k - rows)
		}
		damp[k] = -math.Expm1(-f * f / (2 * sigma * sigma))
	}

	seq := make([]complex128, rows)
	coeff := make([]complex128, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			seq[r] = complex(band[r*cols+c], 0)
		}
		fft.Coefficients(coeff, seq)
		for k := range coeff {
			coeff[k] *= complex(damp[k], 0)
		}
		fft.Sequence(seq, coeff)
		for r := 0; r < rows; r++ {
			band[r*cols+c] = real(seq[r]) / float64(rows)
		}
	}
}

// extend copies an angles x cols sinogram into a rows x width array,
// offset by padCols columns, replicating edge values into the margins
func extend(sino []float64, angles, cols, rows, width, padCols int) []float64 {
	x := make([]float64, rows*width)
	for r := 0; r < rows; r++ {
		src := r
		if src >= angles {
			src = angles - 1
		}
		line := sino[src*cols : (src+1)*cols]
		dst := x[r*width : (r+1)*width]
		for c := range dst {
			sc := c - padCols
			if sc < 0 {
				sc = 0
			} else if sc >= cols {
				sc = cols - 1
			}
			dst[c] = line[sc]
		}
	}
	return x
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}
