package center

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"corscan/pkg/reconstruction"
)

// ImageWriter stores one reconstructed slice
type ImageWriter interface {
	Write(path string, img *reconstruction.Image) error
}

// FileWriter encodes slices as 16-bit grayscale TIFF or PNG files
type FileWriter struct {
	Format string
}

// Ext is the file extension matching the writer's format
func (w FileWriter) Ext() string {
	if w.Format == "png" {
		return "png"
	}
	return "tiff"
}

// Write creates the parent directory and encodes img at path
func (w FileWriter) Write(path string, img *reconstruction.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	gray := img.Gray16()
	if w.Ext() == "png" {
		err = png.Encode(f, gray)
	} else {
		err = tiff.Encode(f, gray, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
