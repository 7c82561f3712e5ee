package center

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"corscan/pkg/paths"
)

const (
	// ManifestName is the scan manifest written next to the candidate images
	ManifestName = "manifest.yaml"

	// PlotName is the entropy-versus-center overview
	PlotName = "entropy.png"
)

type manifest struct {
	Run        string      `yaml:"run"`
	Row        int         `yaml:"row"`
	Range      Range       `yaml:"range"`
	Candidates []Candidate `yaml:"candidates"`
	Failures   []failure   `yaml:"failures,omitempty"`
}

type failure struct {
	Center float64 `yaml:"center"`
	Error  string  `yaml:"error"`
}

// save writes the manifest and, when any candidate succeeded, the plot
func (r *Report) save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	m := manifest{Run: r.Run, Row: r.Row, Range: r.Range, Candidates: r.Written}
	for _, f := range r.Failed {
		m.Failures = append(m.Failures, failure{Center: f.Center, Error: f.Err.Error()})
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}

	if len(r.Written) == 0 {
		return nil
	}
	return r.plotEntropy(filepath.Join(dir, PlotName))
}

// plotEntropy draws image entropy against the candidate center. It is an aid
// for the operator; no center is picked from it.
func (r *Report) plotEntropy(path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Row %d - Entropy by Center", r.Row)
	p.X.Label.Text = "Center (px)"
	p.Y.Label.Text = "Entropy (bits)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(r.Written))
	for i, c := range r.Written {
		pts[i] = plotter.XY{X: c.Center, Y: c.Entropy}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	marks.GlyphStyle.Radius = vg.Points(2)
	p.Add(line, marks)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save entropy plot: %w", err)
	}
	return nil
}

// ManifestFile is where a scan over layout records its manifest
func ManifestFile(layout *paths.Layout) string {
	return filepath.Join(layout.CenterDir, ManifestName)
}

// LoadManifest reads a manifest written by a previous scan
func LoadManifest(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	r := &Report{Run: m.Run, Row: m.Row, Range: m.Range, Written: m.Candidates}
	for _, f := range m.Failures {
		r.Failed = append(r.Failed, Failure{Center: f.Center, Err: errors.New(f.Error)})
	}
	return r, nil
}
