// Package center scans candidate rotation centers. Every candidate is
// reconstructed independently and written as one image for inspection.
package center

import (
	"fmt"
	"math"

	"corscan/internal/models"
	"corscan/pkg/paths"
)

// minStep is the finest spacing the fixed two-decimal file names can tell apart
const minStep = 0.01

// Range is the half-open arithmetic sequence Start, Start+Step, ... < Stop
type Range struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Validate rejects empty, inverted and non-positive-step ranges
func (r Range) Validate() error {
	for _, v := range []float64{r.Start, r.Stop, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: center range %v is not finite", models.ErrConfiguration, r)
		}
	}
	if r.Step < minStep {
		return fmt.Errorf("%w: center step %g must be at least %g", models.ErrConfiguration, r.Step, minStep)
	}
	if r.Stop <= r.Start {
		return fmt.Errorf("%w: center range %v is empty", models.ErrConfiguration, r)
	}
	return nil
}

// Values lists the candidates. Each value is computed as Start + i*Step so
// rounding does not accumulate along the range. A range whose neighboring
// candidates would be written to the same file is rejected.
func (r Range) Values() ([]float64, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	n := int(math.Ceil((r.Stop - r.Start) / r.Step))
	for n > 0 && r.Start+float64(n-1)*r.Step >= r.Stop {
		n--
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = r.Start + float64(i)*r.Step
		if i > 0 && paths.CenterLabel(values[i]) == paths.CenterLabel(values[i-1]) {
			return nil, fmt.Errorf("%w: centers %v and %v of range %v share the file label %s",
				models.ErrConfiguration, values[i-1], values[i], r, paths.CenterLabel(values[i]))
		}
	}
	return values, nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%g:%g:%g]", r.Start, r.Stop, r.Step)
}
