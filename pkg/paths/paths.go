// Package paths builds the input and output locations of a session from the
// configured directory and file names. It performs no I/O.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"corscan/internal/models"
)

// Layout holds every path a session reads from or writes to
type Layout struct {
	// Radiograph, Flat and Dark are absolute input file paths
	Radiograph string
	Flat       string
	Dark       string

	// Stem is the radiograph file name with two extensions removed
	Stem string

	// OutputDir is <output>/<stem>, the root of everything the session writes
	OutputDir string

	// CenterDir holds the per-candidate reconstructions
	CenterDir string

	// PreviewDir holds the optional per-stage preview images
	PreviewDir string
}

// Resolve joins dir with the three file names and derives the output layout
// under outputDir. Every argument is required.
func Resolve(dir, radiograph, flat, dark, outputDir string) (*Layout, error) {
	required := []struct{ name, value string }{
		{"input directory", dir},
		{"radiograph filename", radiograph},
		{"flat filename", flat},
		{"dark filename", dark},
		{"output directory", outputDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: %s is empty", models.ErrConfiguration, r.name)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", models.ErrConfiguration, dir, err)
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", models.ErrConfiguration, outputDir, err)
	}

	stem := Stem(radiograph)
	if stem == "" {
		return nil, fmt.Errorf("%w: radiograph filename %q has no stem", models.ErrConfiguration, radiograph)
	}
	out := filepath.Join(absOut, stem)

	return &Layout{
		Radiograph: filepath.Join(absDir, radiograph),
		Flat:       filepath.Join(absDir, flat),
		Dark:       filepath.Join(absDir, dark),
		Stem:       stem,
		OutputDir:  out,
		CenterDir:  filepath.Join(out, "center"),
		PreviewDir: filepath.Join(out, "preview"),
	}, nil
}

// Stem strips the directory and up to two extensions from name, so
// "scan.001.h5" becomes "scan". Re-resolving a stem is a no-op only when the
// original name had at most two dots: Stem("a.b.c.h5") is "a.b", whose own
// stem is "a".
func Stem(name string) string {
	base := filepath.Base(name)
	for i := 0; i < 2; i++ {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// CenterFile returns the image path for one candidate center. The stem is
// carried by the directory; the fixed-width value keeps files sorted by center.
func (l *Layout) CenterFile(center float64, ext string) string {
	return filepath.Join(l.CenterDir, CenterName(center, ext))
}

// CenterName is the file name of one candidate reconstruction
func CenterName(center float64, ext string) string {
	return "cor_" + CenterLabel(center) + "." + ext
}

// CenterLabel is the fixed-width rendering of a center used in file names.
// Centers closer than 0.005 can share a label.
func CenterLabel(center float64) string {
	return fmt.Sprintf("%08.2f", center)
}

// CheckpointFile returns the HDF5 file holding the outlier-filtered volumes
// for the input selection identified by key
func (l *Layout) CheckpointFile(key string) string {
	return filepath.Join(l.OutputDir, "checkpoint_"+key+".h5")
}
