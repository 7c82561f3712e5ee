// Package loader reads rectangular sub-volumes of radiograph datasets from
// HDF5 files and persists filtered volumes as checkpoints.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/hdf5"

	"corscan/internal/models"
)

// Span is a half-open index interval [Start, Stop).
// The zero Span selects the whole axis.
type Span struct {
	Start, Stop int
}

// IsZero reports whether s selects the whole axis
func (s Span) IsZero() bool {
	return s.Start == 0 && s.Stop == 0
}

// Len returns the number of indices in s
func (s Span) Len() int {
	return s.Stop - s.Start
}

func (s Span) String() string {
	if s.IsZero() {
		return "[:]"
	}
	return fmt.Sprintf("[%d:%d]", s.Start, s.Stop)
}

// Segment selects segment index of a file holding contiguous segments of
// length frames each. A non-positive length selects every frame.
func Segment(index, length int) Span {
	if length <= 0 {
		return Span{}
	}
	return Span{Start: index * length, Stop: (index + 1) * length}
}

// resolve bounds s against an on-disk extent
func (s Span) resolve(extent int) (Span, error) {
	if s.IsZero() {
		return Span{0, extent}, nil
	}
	if s.Start < 0 || s.Stop <= s.Start || s.Stop > extent {
		return Span{}, fmt.Errorf("%w: slice %v outside extent %d", models.ErrRange, s, extent)
	}
	return s, nil
}

// Source reads sub-volumes of a 3-D [angle][row][col] dataset
type Source interface {
	Load(path, dataset string, angles, rows Span) (*models.Volume, error)
}

// HDF5Source reads datasets through the HDF5 C library
type HDF5Source struct{}

// Load reads angles x rows x all columns of dataset in the file at path.
// Integer detector counts are converted to float64 by the library.
func (HDF5Source) Load(path, dataset string, angles, rows Span) (*models.Volume, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file %s", models.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if !datasetExists(f, dataset) {
		return nil, fmt.Errorf("%w: dataset %s in %s", models.ErrNotFound, dataset, path)
	}

	ds, err := f.OpenDataset(dataset)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s in %s: %w", dataset, path, err)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("read extent of %s in %s: %w", dataset, path, err)
	}
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: dataset %s in %s has rank %d, want 3", models.ErrRange, dataset, path, len(dims))
	}

	a, err := angles.resolve(int(dims[0]))
	if err != nil {
		return nil, fmt.Errorf("%s %s angles: %w", path, dataset, err)
	}
	r, err := rows.resolve(int(dims[1]))
	if err != nil {
		return nil, fmt.Errorf("%s %s rows: %w", path, dataset, err)
	}
	cols := int(dims[2])

	offset := []uint{uint(a.Start), uint(r.Start), 0}
	count := []uint{uint(a.Len()), uint(r.Len()), uint(cols)}
	if err := space.SelectHyperslab(offset, nil, count, nil); err != nil {
		return nil, fmt.Errorf("select %v %v in %s %s: %w", a, r, path, dataset, err)
	}

	mem, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return nil, fmt.Errorf("create memory space: %w", err)
	}
	defer mem.Close()

	vol := models.NewVolume(a.Len(), r.Len(), cols)
	if err := ds.ReadSubset(&vol.Data, mem, space); err != nil {
		return nil, fmt.Errorf("read %v %v from %s %s: %w", a, r, path, dataset, err)
	}

	return vol, nil
}

// datasetExists walks the path one link at a time because the library
// reports an error rather than false for a missing intermediate group
func datasetExists(f *hdf5.File, dataset string) bool {
	parts := strings.Split(strings.Trim(dataset, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return false
	}
	prefix := ""
	for _, p := range parts {
		prefix += "/" + p
		if !f.LinkExists(prefix) {
			return false
		}
	}
	return true
}
