package stripe

import (
	"fmt"
	"math"
	"sort"

	"corscan/internal/models"
)

// wavelets maps a family tag to its orthonormal scaling filter
var wavelets = map[string][]float64{
	"haar": {math.Sqrt2 / 2, math.Sqrt2 / 2},
	"db1":  {math.Sqrt2 / 2, math.Sqrt2 / 2},
	"db2": {
		0.48296291314453416, 0.8365163037378079,
		0.2241438680420134, -0.12940952255126037,
	},
	"db3": {
		0.3326705529500826, 0.8068915093110925, 0.4598775021184915,
		-0.13501102001025458, -0.08544127388202666, 0.03522629188570953,
	},
	"db4": {
		0.23037781330889650, 0.71484657055291540, 0.63088076792985890, -0.02798376941685985,
		-0.18703481171909308, 0.03084138183556076, 0.03288301166688520, -0.01059740178506903,
	},
}

// Wavelets returns the supported family tags in sorted order
func Wavelets() []string {
	names := make([]string, 0, len(wavelets))
	for name := range wavelets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// filterBank holds the low and high pass filters of an orthonormal wavelet
type filterBank struct {
	lo, hi []float64
}

func newFilterBank(name string) (*filterBank, error) {
	lo, ok := wavelets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown wavelet %q (supported: %v)", models.ErrConfiguration, name, Wavelets())
	}
	// Quadrature mirror: hi[n] = (-1)^n lo[L-1-n]
	n := len(lo)
	hi := make([]float64, n)
	for i := range hi {
		hi[i] = lo[n-1-i]
		if i%2 == 1 {
			hi[i] = -hi[i]
		}
	}
	return &filterBank{lo: lo, hi: hi}, nil
}

// analyze splits x (even length) into approximation and detail halves
// using periodic extension. x is read with stride, output written densely.
func (f *filterBank) analyze(x []float64, n, stride int, approx, detail []float64) {
	half := n / 2
	for k := 0; k < half; k++ {
		var a, d float64
		for t := range f.lo {
			v := x[((2*k+t)%n)*stride]
			a += f.lo[t] * v
			d += f.hi[t] * v
		}
		approx[k] = a
		detail[k] = d
	}
}

// synthesize is the transpose of analyze; it writes n values into x with stride
func (f *filterBank) synthesize(approx, detail []float64, n, stride int, x []float64) {
	for i := 0; i < n; i++ {
		x[i*stride] = 0
	}
	half := n / 2
	for k := 0; k < half; k++ {
		a, d := approx[k], detail[k]
		for t := range f.lo {
			x[((2*k+t)%n)*stride] += f.lo[t]*a + f.hi[t]*d
		}
	}
}

// subbands is one level of a 2-D decomposition of a rows x cols array.
// The first letter names the filter along rows (axis 0, angles), the second
// along columns. ad holds the vertical details where stripes live.
type subbands struct {
	rows, cols     int // size of each band
	aa, ad, da, dd []float64
}

// dwt2 decomposes a rows x cols array (both even) by one level
func (f *filterBank) dwt2(x []float64, rows, cols int) *subbands {
	hr, hc := rows/2, cols/2

	// along columns: every row splits into low and high halves
	lo := make([]float64, rows*hc)
	hi := make([]float64, rows*hc)
	for r := 0; r < rows; r++ {
		f.analyze(x[r*cols:], cols, 1, lo[r*hc:(r+1)*hc], hi[r*hc:(r+1)*hc])
	}

	s := &subbands{
		rows: hr, cols: hc,
		aa: make([]float64, hr*hc), ad: make([]float64, hr*hc),
		da: make([]float64, hr*hc), dd: make([]float64, hr*hc),
	}
	colA := make([]float64, hr)
	colD := make([]float64, hr)
	for c := 0; c < hc; c++ {
		f.analyze(lo[c:], rows, hc, colA, colD)
		for r := 0; r < hr; r++ {
			s.aa[r*hc+c] = colA[r]
			s.da[r*hc+c] = colD[r]
		}
		f.analyze(hi[c:], rows, hc, colA, colD)
		for r := 0; r < hr; r++ {
			s.ad[r*hc+c] = colA[r]
			s.dd[r*hc+c] = colD[r]
		}
	}
	return s
}

// idwt2 rebuilds the 2*rows x 2*cols array from one level of subbands
func (f *filterBank) idwt2(s *subbands) []float64 {
	hr, hc := s.rows, s.cols
	rows, cols := 2*hr, 2*hc

	lo := make([]float64, rows*hc)
	hi := make([]float64, rows*hc)
	colA := make([]float64, hr)
	colD := make([]float64, hr)
	for c := 0; c < hc; c++ {
		for r := 0; r < hr; r++ {
			colA[r] = s.aa[r*hc+c]
			colD[r] = s.da[r*hc+c]
		}
		f.synthesize(colA, colD, rows, hc, lo[c:])
		for r := 0; r < hr; r++ {
			colA[r] = s.ad[r*hc+c]
			colD[r] = s.dd[r*hc+c]
		}
		f.synthesize(colA, colD, rows, hc, hi[c:])
	}

	x := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		f.synthesize(lo[r*hc:(r+1)*hc], hi[r*hc:(r+1)*hc], cols, 1, x[r*cols:])
	}
	return x
}
