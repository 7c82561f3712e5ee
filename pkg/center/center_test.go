package center

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"corscan/internal/models"
	"corscan/pkg/angles"
	"corscan/pkg/paths"
	"corscan/pkg/reconstruction"
)

// stubAlgorithm reconstructs a tiny gradient image and fails on chosen centers
type stubAlgorithm struct {
	fail  map[float64]bool
	calls atomic.Int32
}

func (a *stubAlgorithm) Prepare(sino, theta []float64, cols int) (reconstruction.Slice, error) {
	return a, nil
}

func (a *stubAlgorithm) Reconstruct(center float64) (*reconstruction.Image, error) {
	a.calls.Add(1)
	if a.fail[center] {
		return nil, fmt.Errorf("reconstruction diverged at %g", center)
	}
	img := &reconstruction.Image{Data: make([]float64, 16), Size: 4}
	for i := range img.Data {
		img.Data[i] = float64(i) * center
	}
	return img, nil
}

func thinVolume() (*models.Volume, []float64) {
	vol := models.NewVolume(12, 2, 8)
	for i := range vol.Data {
		vol.Data[i] = 1
	}
	return vol, angles.Linspace(vol.Angles)
}

func layoutAt(dir string) *paths.Layout {
	return &paths.Layout{CenterDir: dir}
}

func listExt(t *testing.T, dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "."+ext) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestRangeValues(t *testing.T) {
	values, err := Range{Start: 2000, Stop: 2500, Step: 10}.Values()
	require.NoError(t, err)
	require.Len(t, values, 50)
	assert.Equal(t, 2000.0, values[0])
	assert.Equal(t, 2490.0, values[49])

	values, err = Range{Start: 0, Stop: 1, Step: 0.1}.Values()
	require.NoError(t, err)
	assert.Len(t, values, 10)

	values, err = Range{Start: 10, Stop: 11, Step: 5}.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, values)
}

func TestRangeRejectsInvalid(t *testing.T) {
	for _, r := range []Range{
		{Start: 10, Stop: 10, Step: 1},
		{Start: 10, Stop: 5, Step: 1},
		{Start: 0, Stop: 10, Step: 0},
		{Start: 0, Stop: 10, Step: -1},
		{Start: 0, Stop: 10, Step: 0.001},
		{Start: 0.005, Stop: 0.045, Step: 0.01},
	} {
		_, err := r.Values()
		assert.True(t, errors.Is(err, models.ErrConfiguration), "%v", r)
	}
}

func TestRangeLabelsAreDistinct(t *testing.T) {
	for _, r := range []Range{
		{Start: 2000, Stop: 2500, Step: 10},
		{Start: 1020.25, Stop: 1021, Step: 0.01},
		{Start: 0.01, Stop: 0.2, Step: 0.01},
	} {
		values, err := r.Values()
		require.NoError(t, err, "%v", r)
		seen := map[string]bool{}
		for _, v := range values {
			name := paths.CenterName(v, "tiff")
			assert.False(t, seen[name], "%v repeats %s", r, name)
			seen[name] = true
		}
	}
}

func TestScanRejectsCollidingNames(t *testing.T) {
	dir := t.TempDir()
	vol, theta := thinVolume()
	alg := &stubAlgorithm{}

	_, err := NewScanner(alg, layoutAt(dir), "tiff", 0, 2).Scan(context.Background(), vol, theta, Range{Start: 0.005, Stop: 0.045, Step: 0.01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
	assert.Zero(t, alg.calls.Load())
	assert.Empty(t, listExt(t, dir, "tiff"))
}

func TestScanWritesOneFilePerCandidate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scan", "center")
	vol, theta := thinVolume()

	s := NewScanner(&stubAlgorithm{}, layoutAt(dir), "tiff", 0, 4)
	report, err := s.Scan(context.Background(), vol, theta, Range{Start: 2000, Stop: 2500, Step: 10})
	require.NoError(t, err)

	assert.Len(t, report.Written, 50)
	assert.Empty(t, report.Failed)
	assert.Len(t, listExt(t, dir, "tiff"), 50)
	assert.FileExists(t, filepath.Join(dir, ManifestName))
	assert.FileExists(t, filepath.Join(dir, PlotName))

	for i, c := range report.Written {
		assert.Equal(t, 2000+10*float64(i), c.Center)
		assert.Equal(t, filepath.Join(dir, paths.CenterName(c.Center, "tiff")), c.Path)
	}
}

func TestScanIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	vol, theta := thinVolume()
	alg := &stubAlgorithm{fail: map[float64]bool{2030: true}}

	s := NewScanner(alg, layoutAt(dir), "tiff", 1, 3)
	report, err := s.Scan(context.Background(), vol, theta, Range{Start: 2000, Stop: 2500, Step: 10})
	require.NoError(t, err)

	assert.EqualValues(t, 50, alg.calls.Load())
	assert.Len(t, report.Written, 49)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 2030.0, report.Failed[0].Center)
	assert.Contains(t, report.Failed[0].Error(), "diverged")

	files := listExt(t, dir, "tiff")
	assert.Len(t, files, 49)
	assert.NotContains(t, files, paths.CenterName(2030, "tiff"))

	loaded, err := LoadManifest(ManifestFile(layoutAt(dir)))
	require.NoError(t, err)
	assert.Equal(t, report.Run, loaded.Run)
	assert.Len(t, loaded.Written, 49)
	require.Len(t, loaded.Failed, 1)
	assert.Equal(t, 2030.0, loaded.Failed[0].Center)
}

// panickyAlgorithm panics on one center and reconstructs the others
type panickyAlgorithm struct {
	stubAlgorithm
	at float64
}

func (a *panickyAlgorithm) Prepare(sino, theta []float64, cols int) (reconstruction.Slice, error) {
	return a, nil
}

func (a *panickyAlgorithm) Reconstruct(center float64) (*reconstruction.Image, error) {
	if center == a.at {
		panic("detector index out of range")
	}
	return a.stubAlgorithm.Reconstruct(center)
}

func TestScanRecoversFromPanickingCandidate(t *testing.T) {
	dir := t.TempDir()
	vol, theta := thinVolume()

	report, err := NewScanner(&panickyAlgorithm{at: 2040}, layoutAt(dir), "tiff", 0, 4).
		Scan(context.Background(), vol, theta, Range{Start: 2000, Stop: 2100, Step: 10})
	require.NoError(t, err)

	assert.Len(t, report.Written, 9)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 2040.0, report.Failed[0].Center)
	assert.Contains(t, report.Failed[0].Error(), "panic")
	assert.Len(t, listExt(t, dir, "tiff"), 9)
}

func TestScanRejectsBadInputs(t *testing.T) {
	vol, theta := thinVolume()
	rng := Range{Start: 0, Stop: 4, Step: 1}
	ctx := context.Background()

	_, err := NewScanner(&stubAlgorithm{}, layoutAt(t.TempDir()), "tiff", 0, 1).Scan(ctx, vol, theta, Range{Start: 4, Stop: 4, Step: 1})
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	_, err = NewScanner(&stubAlgorithm{}, layoutAt(t.TempDir()), "tiff", 0, 1).Scan(ctx, vol, theta[:5], rng)
	assert.True(t, errors.Is(err, models.ErrRange))

	_, err = NewScanner(&stubAlgorithm{}, layoutAt(t.TempDir()), "tiff", 2, 1).Scan(ctx, vol, theta, rng)
	assert.True(t, errors.Is(err, models.ErrRange))
}

func TestScanCancelled(t *testing.T) {
	vol, theta := thinVolume()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewScanner(&stubAlgorithm{}, layoutAt(t.TempDir()), "png", 0, 2).Scan(ctx, vol, theta, Range{Start: 0, Stop: 5, Step: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Failed, 5)
}

func TestScanWithFBPWritesReadableTIFF(t *testing.T) {
	dir := t.TempDir()
	vol, theta := thinVolume()

	s := NewScanner(reconstruction.NewFBP("shepp", false, 0.9), layoutAt(dir), "tiff", 0, 2)
	report, err := s.Scan(context.Background(), vol, theta, Range{Start: 3, Stop: 5, Step: 0.5})
	require.NoError(t, err)
	require.Len(t, report.Written, 4)

	f, err := os.Open(report.Written[1].Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, vol.Cols, img.Bounds().Dx())
	assert.Equal(t, vol.Cols, img.Bounds().Dy())
	assert.Equal(t, "cor_00003.50.tiff", filepath.Base(report.Written[1].Path))
}
