// Package outlier suppresses dead pixels, hot pixels and cosmic-ray hits by
// comparing each pixel against the median of its neighborhood.
package outlier

import (
	"context"
	"fmt"

	"corscan/internal/models"
)

// Default filter parameters
const (
	DefaultThreshold = 200
	DefaultSize      = 15
)

// Device runs the despeckle kernel over every projection of a volume
type Device interface {
	// Name identifies the device in log output
	Name() string

	// Despeckle filters vol in place. A device that cannot hold the work
	// returns an error wrapping models.ErrResource.
	Despeckle(ctx context.Context, vol *models.Volume, threshold float64, size int) error
}

// Filter replaces a pixel by its neighborhood median when the two differ by
// more than Threshold. The neighborhood is a Size x Size window within the
// projection, clipped at the detector edges.
type Filter struct {
	Threshold float64
	Size      int
	Device    Device
}

// NewFilter creates a filter with the given parameters running on device
func NewFilter(threshold float64, size int, device Device) *Filter {
	return &Filter{
		Threshold: threshold,
		Size:      size,
		Device:    device,
	}
}

// Apply takes ownership of vol, filters it and returns it
func (f *Filter) Apply(ctx context.Context, vol *models.Volume) (*models.Volume, error) {
	if f.Size < 1 {
		return nil, fmt.Errorf("%w: outlier size must be at least 1, got %d", models.ErrConfiguration, f.Size)
	}
	if f.Threshold < 0 {
		return nil, fmt.Errorf("%w: outlier threshold must be non-negative, got %g", models.ErrConfiguration, f.Threshold)
	}
	if f.Device == nil {
		return nil, fmt.Errorf("%w: no outlier device configured", models.ErrResource)
	}
	if err := f.Device.Despeckle(ctx, vol, f.Threshold, f.Size); err != nil {
		return nil, fmt.Errorf("despeckle %s on %s: %w", vol, f.Device.Name(), err)
	}
	return vol, nil
}
