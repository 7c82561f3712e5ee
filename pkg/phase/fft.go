package phase

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// plane2D performs 2D Fourier transforms of rows x cols arrays stored in
// row-major order. Row and column transforms are reused between calls.
type plane2D struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT
	rowBuf     []complex128
	colBuf     []complex128
	colOut     []complex128
}

func newPlane2D(rows, cols int) *plane2D {
	return &plane2D{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		rowBuf: make([]complex128, cols),
		colBuf: make([]complex128, rows),
		colOut: make([]complex128, rows),
	}
}

// forward replaces data with its 2D spectrum
func (p *plane2D) forward(data []complex128) {
	p.apply(data, false)
}

// inverse replaces a spectrum with its normalized 2D inverse
func (p *plane2D) inverse(data []complex128) {
	p.apply(data, true)
	scale := complex(1/float64(p.rows*p.cols), 0)
	for i := range data {
		data[i] *= scale
	}
}

func (p *plane2D) apply(data []complex128, inverse bool) {
	// Row-wise transform
	for i := 0; i < p.rows; i++ {
		row := data[i*p.cols : (i+1)*p.cols]
		if inverse {
			p.rowFFT.Sequence(p.rowBuf, row)
		} else {
			p.rowFFT.Coefficients(p.rowBuf, row)
		}
		copy(row, p.rowBuf)
	}

	// Column-wise transform
	for j := 0; j < p.cols; j++ {
		for i := 0; i < p.rows; i++ {
			p.colBuf[i] = data[i*p.cols+j]
		}
		if inverse {
			p.colFFT.Sequence(p.colOut, p.colBuf)
		} else {
			p.colFFT.Coefficients(p.colOut, p.colBuf)
		}
		for i := 0; i < p.rows; i++ {
			data[i*p.cols+j] = p.colOut[i]
		}
	}
}
