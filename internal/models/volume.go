package models

import (
	"fmt"
)

// Volume represents a stack of radiographs indexed [angle][row][col]
type Volume struct {
	// Data is the volume data as a 1D array in row-major order
	Data []float64

	// Angles is the number of projections (leading dimension)
	Angles int

	// Rows is the number of detector rows in each projection
	Rows int

	// Cols is the number of detector columns in each projection
	Cols int
}

// NewVolume allocates a zeroed volume with the given extents
func NewVolume(angles, rows, cols int) *Volume {
	return &Volume{
		Data:   make([]float64, angles*rows*cols),
		Angles: angles,
		Rows:   rows,
		Cols:   cols,
	}
}

// Index returns the offset of element (a, r, c) in Data
func (v *Volume) Index(a, r, c int) int {
	return (a*v.Rows+r)*v.Cols + c
}

// At returns the value at (a, r, c)
func (v *Volume) At(a, r, c int) float64 {
	return v.Data[v.Index(a, r, c)]
}

// Set stores val at (a, r, c)
func (v *Volume) Set(a, r, c int, val float64) {
	v.Data[v.Index(a, r, c)] = val
}

// Projection returns the backing slice of one projection (rows*cols values).
// Writes through the returned slice modify the volume.
func (v *Volume) Projection(a int) []float64 {
	size := v.Rows * v.Cols
	return v.Data[a*size : (a+1)*size]
}

// Sinogram copies detector row r across all angles into an
// Angles x Cols array in row-major order
func (v *Volume) Sinogram(r int) []float64 {
	sino := make([]float64, v.Angles*v.Cols)
	for a := 0; a < v.Angles; a++ {
		copy(sino[a*v.Cols:(a+1)*v.Cols], v.Data[v.Index(a, r, 0):v.Index(a, r, 0)+v.Cols])
	}
	return sino
}

// SetSinogram writes an Angles x Cols array back into detector row r
func (v *Volume) SetSinogram(r int, sino []float64) {
	for a := 0; a < v.Angles; a++ {
		copy(v.Data[v.Index(a, r, 0):v.Index(a, r, 0)+v.Cols], sino[a*v.Cols:(a+1)*v.Cols])
	}
}

// RowRange returns a new volume holding only rows [start, stop) of every projection
func (v *Volume) RowRange(start, stop int) (*Volume, error) {
	if start < 0 || stop > v.Rows || start >= stop {
		return nil, fmt.Errorf("%w: rows [%d, %d) outside volume with %d rows", ErrRange, start, stop, v.Rows)
	}
	out := NewVolume(v.Angles, stop-start, v.Cols)
	for a := 0; a < v.Angles; a++ {
		for r := start; r < stop; r++ {
			copy(out.Data[out.Index(a, r-start, 0):out.Index(a, r-start, 0)+v.Cols],
				v.Data[v.Index(a, r, 0):v.Index(a, r, 0)+v.Cols])
		}
	}
	return out, nil
}

// SameDetector reports whether two volumes share row and column extents
func (v *Volume) SameDetector(o *Volume) bool {
	return v.Rows == o.Rows && v.Cols == o.Cols
}

// Shape returns the extents as a slice, matching the HDF5 dataset dims order
func (v *Volume) Shape() []int {
	return []int{v.Angles, v.Rows, v.Cols}
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	out := &Volume{Angles: v.Angles, Rows: v.Rows, Cols: v.Cols}
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return out
}

func (v *Volume) String() string {
	return fmt.Sprintf("%dx%dx%d", v.Angles, v.Rows, v.Cols)
}
