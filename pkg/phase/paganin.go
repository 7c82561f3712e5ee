// Package phase recovers phase contrast from propagation-based intensity
// measurements with the single-material method of Paganin et al.
// (J. Microscopy, 2002).
package phase

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"corscan/internal/models"
)

// Physical constants in the units the parameters use
const (
	planckReduced = 6.58211928e-19 // keV * s
	speedOfLight  = 299792458e2    // cm / s
)

// Params are the acquisition physics of one experimental session.
// They are fixed once and passed unchanged to every retrieval.
type Params struct {
	// PixelSize is the detector pixel size in cm
	PixelSize float64

	// Distance is the sample-to-detector propagation distance in cm
	Distance float64

	// Energy is the beam energy in keV
	Energy float64

	// Alpha is the regularization ratio
	Alpha float64
}

// Validate checks that every parameter is positive
func (p Params) Validate() error {
	if p.PixelSize <= 0 || p.Distance <= 0 || p.Energy <= 0 || p.Alpha <= 0 {
		return fmt.Errorf("%w: phase parameters must be positive: %+v", models.ErrConfiguration, p)
	}
	return nil
}

// Wavelength returns the X-ray wavelength in cm
func (p Params) Wavelength() float64 {
	return 2 * math.Pi * planckReduced * speedOfLight / p.Energy
}

// Retriever applies the Paganin filter to every projection of a volume
type Retriever struct {
	Params Params

	// Pad extends each projection to a power of two with edge values so the
	// filter does not wrap across opposite edges
	Pad bool

	// Cores bounds the number of projections filtered concurrently
	Cores int
}

// NewRetriever creates a retriever for the session parameters
func NewRetriever(params Params, pad bool, cores int) *Retriever {
	return &Retriever{Params: params, Pad: pad, Cores: cores}
}

// Apply takes ownership of vol and returns it phase retrieved
func (r *Retriever) Apply(ctx context.Context, vol *models.Volume) (*models.Volume, error) {
	if err := r.Params.Validate(); err != nil {
		return nil, err
	}
	if r.Cores < 1 {
		return nil, fmt.Errorf("%w: phase retrieval needs at least one core, got %d", models.ErrConfiguration, r.Cores)
	}

	padRows, padCols := 0, 0
	if r.Pad {
		padRows = r.padWidth(vol.Rows)
		padCols = r.padWidth(vol.Cols)
	}
	rows, cols := vol.Rows+2*padRows, vol.Cols+2*padCols
	filter := r.filter(rows, cols)

	g, ctx := errgroup.WithContext(ctx)
	perWorker := (vol.Angles + r.Cores - 1) / r.Cores
	for start := 0; start < vol.Angles; start += perWorker {
		start := start
		end := start + perWorker
		if end > vol.Angles {
			end = vol.Angles
		}
		g.Go(func() error {
			plane := newPlane2D(rows, cols)
			buf := make([]complex128, rows*cols)
			for a := start; a < end; a++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				proj := vol.Projection(a)
				load(buf, proj, vol.Rows, vol.Cols, padRows, padCols)
				plane.forward(buf)
				for i := range buf {
					buf[i] *= complex(filter[i], 0)
				}
				plane.inverse(buf)
				for y := 0; y < vol.Rows; y++ {
					for x := 0; x < vol.Cols; x++ {
						proj[y*vol.Cols+x] = real(buf[(y+padRows)*cols+x+padCols])
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vol, nil
}

// filter returns the Paganin filter on the unshifted FFT grid, normalized so
// the zero frequency passes unchanged
func (r *Retriever) filter(rows, cols int) []float64 {
	p := r.Params
	coeff := p.Wavelength() * p.Distance / (4 * math.Pi)
	ky := frequencies(rows, p.PixelSize)
	kx := frequencies(cols, p.PixelSize)

	filter := make([]float64, rows*cols)
	for i, y := range ky {
		for j, x := range kx {
			filter[i*cols+j] = p.Alpha / (coeff*(x*x+y*y) + p.Alpha)
		}
	}
	return filter
}

// frequencies returns the angular spatial frequencies (rad/cm) of an
// n-point FFT with the given sample spacing
func frequencies(n int, spacing float64) []float64 {
	k := make([]float64, n)
	for i := range k {
		f := i
		if i >= n-n/2 {
			f = i - n
		}
		k[i] = 2 * math.Pi * float64(f) / (float64(n) * spacing)
	}
	return k
}

// padWidth is the margin on each side that extends dim past the Fresnel
// blur length to the next power of two
func (r *Retriever) padWidth(dim int) int {
	p := r.Params
	blur := math.Ceil(math.Pi * p.Wavelength() * p.Distance / (p.PixelSize * p.PixelSize))
	target := math.Pow(2, math.Ceil(math.Log2(float64(dim)+blur)))
	return int((target - float64(dim)) / 2)
}

// load copies a projection into the centre of buf, replicating edge values
// into the margins
func load(buf []complex128, proj []float64, rows, cols, padRows, padCols int) {
	width := cols + 2*padCols
	height := rows + 2*padRows
	for y := 0; y < height; y++ {
		sy := clamp(y-padRows, rows)
		for x := 0; x < width; x++ {
			sx := clamp(x-padCols, cols)
			buf[y*width+x] = complex(proj[sy*cols+sx], 0)
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
