// Package reconstruction implements filtered back-projection of a single
// parallel-beam sinogram for a chosen center of rotation.
package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"corscan/internal/models"
)

// Filters lists the supported ramp-filter windows
var Filters = []string{"ramp", "shepp", "hann", "parzen"}

// minTransmission floors the data before taking the logarithm
const minTransmission = 1e-6

// Image is a reconstructed square slice stored in row-major order
type Image struct {
	Data []float64
	Size int
}

// At returns the pixel at row y and column x
func (img *Image) At(y, x int) float64 {
	return img.Data[y*img.Size+x]
}

// Slice reconstructs one prepared sinogram at any center
type Slice interface {
	Reconstruct(center float64) (*Image, error)
}

// FBP is the filtered back-projection algorithm
type FBP struct {
	// Filter is the window applied to the ramp filter
	Filter string

	// MinusLog converts transmission data to line integrals before filtering
	MinusLog bool

	// MaskRatio zeroes pixels outside this fraction of the inscribed circle;
	// 0 disables the mask
	MaskRatio float64
}

// NewFBP creates the algorithm with the given window
func NewFBP(filter string, minusLog bool, maskRatio float64) *FBP {
	return &FBP{Filter: filter, MinusLog: minusLog, MaskRatio: maskRatio}
}

// Prepare filters an angles x cols sinogram once so that it can be
// back-projected at many centers
func (f *FBP) Prepare(sino, theta []float64, cols int) (Slice, error) {
	window, err := windowFunc(f.Filter)
	if err != nil {
		return nil, err
	}
	if cols < 1 || len(theta) == 0 || len(sino) != len(theta)*cols {
		return nil, fmt.Errorf("%w: sinogram of %d values does not match %d angles x %d columns",
			models.ErrRange, len(sino), len(theta), cols)
	}
	if f.MaskRatio < 0 || f.MaskRatio > 1 {
		return nil, fmt.Errorf("%w: mask ratio %g outside [0, 1]", models.ErrConfiguration, f.MaskRatio)
	}

	p := &prepared{
		angles:    len(theta),
		cols:      cols,
		cos:       make([]float64, len(theta)),
		sin:       make([]float64, len(theta)),
		maskRatio: f.MaskRatio,
	}
	for i, t := range theta {
		p.cos[i] = math.Cos(t)
		p.sin[i] = math.Sin(t)
	}

	data := make([]float64, len(sino))
	copy(data, sino)
	if f.MinusLog {
		for i, v := range data {
			data[i] = -math.Log(math.Max(v, minTransmission))
		}
	}
	p.filtered = rampFilter(data, len(theta), cols, window)
	return p, nil
}

// rampFilter convolves every projection with the windowed ramp filter.
// Projections are zero padded to a power of two at least twice their length
// so the circular convolution does not wrap.
func rampFilter(sino []float64, angles, cols int, window func(float64) float64) []float64 {
	n := 1
	for n < 2*cols {
		n <<= 1
	}
	fft := fourier.NewFFT(n)

	response := make([]float64, n/2+1)
	for k := range response {
		w := float64(k) / float64(n/2)
		response[k] = float64(k) / float64(n) * window(w)
	}

	out := make([]float64, len(sino))
	seq := make([]float64, n)
	coeff := make([]complex128, n/2+1)
	for a := 0; a < angles; a++ {
		for i := range seq {
			seq[i] = 0
		}
		copy(seq, sino[a*cols:(a+1)*cols])
		fft.Coefficients(coeff, seq)
		for k := range coeff {
			coeff[k] *= complex(response[k], 0)
		}
		fft.Sequence(seq, coeff)
		for i := 0; i < cols; i++ {
			out[a*cols+i] = seq[i] / float64(n)
		}
	}
	return out
}

// windowFunc returns the window for a normalized frequency w in [0, 1]
func windowFunc(name string) (func(float64) float64, error) {
	switch name {
	case "ramp", "":
		return func(float64) float64 { return 1 }, nil
	case "shepp":
		return func(w float64) float64 {
			if w == 0 {
				return 1
			}
			x := math.Pi * w / 2
			return math.Sin(x) / x
		}, nil
	case "hann":
		return func(w float64) float64 { return 0.5 * (1 + math.Cos(math.Pi*w)) }, nil
	case "parzen":
		return func(w float64) float64 {
			if w <= 0.5 {
				return 1 - 6*w*w*(1-w)
			}
			return 2 * math.Pow(1-w, 3)
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown filter %q (supported: %v)", models.ErrConfiguration, name, Filters)
}

// prepared is a filtered sinogram ready for back-projection
type prepared struct {
	angles, cols int
	filtered     []float64
	cos, sin     []float64
	maskRatio    float64
}

// Reconstruct back-projects onto a cols x cols grid whose centre maps to
// detector coordinate center
func (p *prepared) Reconstruct(center float64) (*Image, error) {
	if math.IsNaN(center) || math.IsInf(center, 0) {
		return nil, fmt.Errorf("%w: center %v is not finite", models.ErrRange, center)
	}

	n := p.cols
	img := &Image{Data: make([]float64, n*n), Size: n}
	mid := float64(n-1) / 2
	scale := math.Pi / float64(p.angles)
	radius := p.maskRatio * float64(n) / 2

	for i := 0; i < n; i++ {
		y := mid - float64(i)
		for j := 0; j < n; j++ {
			x := float64(j) - mid
			if p.maskRatio > 0 && x*x+y*y > radius*radius {
				continue
			}

			sum := 0.0
			for a := 0; a < p.angles; a++ {
				t := x*p.cos[a] + y*p.sin[a] + center
				t0 := math.Floor(t)
				k := int(t0)
				if k < 0 || k >= n-1 {
					continue
				}
				frac := t - t0
				row := p.filtered[a*n:]
				sum += (1-frac)*row[k] + frac*row[k+1]
			}
			img.Data[i*n+j] = sum * scale
		}
	}
	return img, nil
}
