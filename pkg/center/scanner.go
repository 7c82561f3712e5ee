package center

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"corscan/internal/models"
	"corscan/pkg/angles"
	"corscan/pkg/paths"
	"corscan/pkg/reconstruction"
)

// Algorithm turns one sinogram into a slice that can be reconstructed at
// any center
type Algorithm interface {
	Prepare(sino, theta []float64, cols int) (reconstruction.Slice, error)
}

// Candidate is one successfully written reconstruction
type Candidate struct {
	Center  float64 `yaml:"center"`
	Path    string  `yaml:"path"`
	Entropy float64 `yaml:"entropy"`
}

// Failure records why one candidate produced no file
type Failure struct {
	Center float64
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("center %.2f: %v", f.Center, f.Err)
}

// Report is the outcome of one scan. Written and Failed are sorted by center.
type Report struct {
	Run     string
	Row     int
	Range   Range
	Written []Candidate
	Failed  []Failure
}

// Scanner reconstructs one detector row at every candidate center
type Scanner struct {
	Algorithm Algorithm
	Writer    ImageWriter

	// Layout places the candidate files, manifest and plot in its CenterDir
	Layout *paths.Layout

	// Ext is the candidate file extension
	Ext string

	// Row is the detector row (within the volume) to reconstruct
	Row int

	// Workers bounds the number of candidates processed at once
	Workers int

	Logger *log.Logger
}

// NewScanner creates a scanner writing FileWriter images into the layout's
// center directory
func NewScanner(alg Algorithm, layout *paths.Layout, format string, row, workers int) *Scanner {
	w := FileWriter{Format: format}
	return &Scanner{
		Algorithm: alg,
		Writer:    w,
		Layout:    layout,
		Ext:       w.Ext(),
		Row:       row,
		Workers:   workers,
		Logger:    log.Default(),
	}
}

// Scan reconstructs every candidate in rng. A failing candidate is recorded
// in the report and never stops the others. The returned error is non-nil
// only when the scan could not start, was cancelled, or its manifest could
// not be written.
func (s *Scanner) Scan(ctx context.Context, vol *models.Volume, theta []float64, rng Range) (*Report, error) {
	centers, err := rng.Values()
	if err != nil {
		return nil, err
	}
	if err := angles.Check(theta, vol); err != nil {
		return nil, err
	}
	if s.Row < 0 || s.Row >= vol.Rows {
		return nil, fmt.Errorf("%w: scan row %d outside volume %s", models.ErrRange, s.Row, vol)
	}
	if s.Algorithm == nil || s.Writer == nil || s.Layout == nil {
		return nil, fmt.Errorf("%w: scanner needs an algorithm, a writer and a layout", models.ErrConfiguration)
	}

	slice, err := s.Algorithm.Prepare(vol.Sinogram(s.Row), theta, vol.Cols)
	if err != nil {
		return nil, fmt.Errorf("preparing sinogram of row %d: %w", s.Row, err)
	}

	report := &Report{Run: uuid.NewString(), Row: s.Row, Range: rng}
	s.logf("Scanning %d centers %v on row %d (run %s)", len(centers), rng, s.Row, report.Run)

	type result struct {
		candidate Candidate
		err       error
	}
	jobs := make(chan float64)
	results := make(chan result)

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(centers) {
		workers = len(centers)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for c := range jobs {
				cand, err := s.reconstruct(ctx, slice, c)
				results <- result{candidate: cand, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range centers {
			jobs <- c
		}
	}()

	for range centers {
		res := <-results
		if res.err != nil {
			s.logf("Center %.2f failed: %v", res.candidate.Center, res.err)
			report.Failed = append(report.Failed, Failure{Center: res.candidate.Center, Err: res.err})
			continue
		}
		report.Written = append(report.Written, res.candidate)
	}

	sort.Slice(report.Written, func(i, j int) bool { return report.Written[i].Center < report.Written[j].Center })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Center < report.Failed[j].Center })
	s.logf("Scan complete: %d written, %d failed", len(report.Written), len(report.Failed))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scan interrupted: %w", err)
	}
	if err := report.save(s.Layout.CenterDir); err != nil {
		return report, err
	}
	return report, nil
}

// reconstruct produces and writes the image for one center. A panic in the
// algorithm or the writer fails this candidate only.
func (s *Scanner) reconstruct(ctx context.Context, slice reconstruction.Slice, c float64) (cand Candidate, err error) {
	cand = Candidate{Center: c}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return cand, err
	}
	img, err := slice.Reconstruct(c)
	if err != nil {
		return cand, err
	}
	cand.Path = s.Layout.CenterFile(c, s.Ext)
	if err := s.Writer.Write(cand.Path, img); err != nil {
		return cand, err
	}
	cand.Entropy = img.Entropy()
	return cand, nil
}

func (s *Scanner) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
