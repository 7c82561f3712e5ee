// Package angles generates the projection angles of a half-turn scan.
package angles

import (
	"fmt"
	"math"

	"corscan/internal/models"
)

// Linspace returns n evenly spaced angles over the closed interval [0, π].
// A single angle is 0; n < 1 yields an empty slice.
func Linspace(n int) []float64 {
	if n < 1 {
		return []float64{}
	}
	theta := make([]float64, n)
	if n == 1 {
		return theta
	}
	step := math.Pi / float64(n-1)
	for i := range theta {
		theta[i] = float64(i) * step
	}
	// Pin the endpoint so it is exactly π regardless of rounding
	theta[n-1] = math.Pi
	return theta
}

// Check reports a range error when theta does not have one angle per projection
func Check(theta []float64, vol *models.Volume) error {
	if len(theta) != vol.Angles {
		return fmt.Errorf("%w: %d angles for a volume of %d projections", models.ErrRange, len(theta), vol.Angles)
	}
	return nil
}
