package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"corscan/internal/models"
)

// rampVolume fills each voxel with its column index plus ten times its angle
func rampVolume(angles, rows, cols int) *models.Volume {
	vol := models.NewVolume(angles, rows, cols)
	for a := 0; a < angles; a++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				vol.Set(a, r, c, float64(c+10*a))
			}
		}
	}
	return vol
}

// TestExtractSlice verifies the shape and scaling of both planes
func TestExtractSlice(t *testing.T) {
	vol := rampVolume(4, 3, 5)
	viewer := NewViewer(vol)

	proj, err := viewer.ExtractSlice(Projection, 2)
	if err != nil {
		t.Fatalf("Failed to extract projection: %v", err)
	}
	if proj.Bounds().Dx() != 5 || proj.Bounds().Dy() != 3 {
		t.Errorf("Expected 5x3 projection, got %v", proj.Bounds())
	}
	if proj.Gray16At(0, 1).Y != 0 || proj.Gray16At(4, 1).Y != 65535 {
		t.Errorf("Projection not scaled to full range: %d..%d", proj.Gray16At(0, 1).Y, proj.Gray16At(4, 1).Y)
	}

	sino, err := viewer.ExtractSlice(Sinogram, 1)
	if err != nil {
		t.Fatalf("Failed to extract sinogram: %v", err)
	}
	if sino.Bounds().Dx() != 5 || sino.Bounds().Dy() != 4 {
		t.Errorf("Expected 5x4 sinogram, got %v", sino.Bounds())
	}
	if sino.Gray16At(0, 0).Y != 0 || sino.Gray16At(4, 3).Y != 65535 {
		t.Errorf("Sinogram not scaled to full range")
	}
	if sino.Gray16At(0, 1).Y <= sino.Gray16At(4, 0).Y {
		t.Errorf("Expected later angles to be brighter")
	}
}

// TestExtractSliceErrors verifies position and axis validation
func TestExtractSliceErrors(t *testing.T) {
	viewer := NewViewer(rampVolume(2, 2, 2))

	if _, err := viewer.ExtractSlice(Projection, -1); err == nil {
		t.Error("Expected error for negative position")
	}
	if _, err := viewer.ExtractSlice(Projection, 2); err == nil {
		t.Error("Expected error for position beyond angles")
	}
	if _, err := viewer.ExtractSlice(Sinogram, 2); err == nil {
		t.Error("Expected error for position beyond rows")
	}
	if _, err := viewer.ExtractSlice("volume", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
}

// TestFlatVolumeIsBlack verifies a constant plane does not divide by zero
func TestFlatVolumeIsBlack(t *testing.T) {
	vol := models.NewVolume(2, 2, 3)
	img, err := NewViewer(vol).ExtractSlice(Projection, 0)
	if err != nil {
		t.Fatalf("Failed to extract projection: %v", err)
	}
	for _, p := range img.Pix {
		if p != 0 {
			t.Fatal("Expected a black image for a constant plane")
		}
	}
}

// TestSaveStage verifies both preview files are written and decodable
func TestSaveStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "preview")
	viewer := NewViewer(rampVolume(3, 2, 6))

	if err := viewer.SaveStage(dir, "02_normalized"); err != nil {
		t.Fatalf("Failed to save stage: %v", err)
	}

	for _, name := range []string{"02_normalized_projection.png", "02_normalized_sinogram.png"} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Preview %s not written: %v", name, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("Preview %s not a PNG: %v", name, err)
		}
		if img.Bounds().Dx() != 6 {
			t.Errorf("Expected width 6 for %s, got %d", name, img.Bounds().Dx())
		}
	}
}
