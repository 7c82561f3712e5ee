package reconstruction

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corscan/internal/models"
	"corscan/pkg/angles"
)

// pointSinogram is the sinogram of a single point on the rotation axis,
// which projects onto column axis at every angle
func pointSinogram(nAngles, cols, axis int) ([]float64, []float64) {
	theta := angles.Linspace(nAngles)
	sino := make([]float64, nAngles*cols)
	for a := range theta {
		sino[a*cols+axis] = 1
	}
	return sino, theta
}

func argmax(data []float64) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

func TestPointOnAxisPeaksAtImageCenter(t *testing.T) {
	const cols = 65
	sino, theta := pointSinogram(90, cols, 40)

	for _, filter := range Filters {
		t.Run(filter, func(t *testing.T) {
			slice, err := NewFBP(filter, false, 0).Prepare(sino, theta, cols)
			require.NoError(t, err)

			img, err := slice.Reconstruct(40)
			require.NoError(t, err)
			require.Equal(t, cols, img.Size)

			mid := cols / 2
			assert.Equal(t, mid*cols+mid, argmax(img.Data))
		})
	}
}

func TestWrongCenterBlursPeak(t *testing.T) {
	const cols = 65
	sino, theta := pointSinogram(90, cols, 32)
	slice, err := NewFBP("ramp", false, 0).Prepare(sino, theta, cols)
	require.NoError(t, err)

	sharp, err := slice.Reconstruct(32)
	require.NoError(t, err)
	blurred, err := slice.Reconstruct(37)
	require.NoError(t, err)

	_, sharpPeak := sharp.Range()
	_, blurredPeak := blurred.Range()
	assert.Greater(t, sharpPeak, 2*blurredPeak)
}

func TestMaskZeroesCorners(t *testing.T) {
	const cols = 33
	sino := make([]float64, 30*cols)
	for i := range sino {
		sino[i] = 1
	}
	slice, err := NewFBP("hann", false, 0.8).Prepare(sino, angles.Linspace(30), cols)
	require.NoError(t, err)

	img, err := slice.Reconstruct(16)
	require.NoError(t, err)
	assert.Zero(t, img.At(0, 0))
	assert.Zero(t, img.At(cols-1, cols-1))
	assert.NotZero(t, img.At(16, 16))
}

func TestMinusLogOfFullTransmissionIsZero(t *testing.T) {
	const cols = 16
	sino := make([]float64, 8*cols)
	for i := range sino {
		sino[i] = 1
	}
	slice, err := NewFBP("ramp", true, 0).Prepare(sino, angles.Linspace(8), cols)
	require.NoError(t, err)

	img, err := slice.Reconstruct(7.5)
	require.NoError(t, err)
	for _, v := range img.Data {
		require.InDelta(t, 0, v, 1e-12)
	}
}

func TestPrepareRejectsBadInput(t *testing.T) {
	theta := angles.Linspace(4)

	_, err := NewFBP("gaussian", false, 0).Prepare(make([]float64, 16), theta, 4)
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	_, err = NewFBP("ramp", false, 0).Prepare(make([]float64, 15), theta, 4)
	assert.True(t, errors.Is(err, models.ErrRange))

	_, err = NewFBP("ramp", false, 1.5).Prepare(make([]float64, 16), theta, 4)
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	slice, err := NewFBP("ramp", false, 0).Prepare(make([]float64, 16), theta, 4)
	require.NoError(t, err)
	_, err = slice.Reconstruct(math.NaN())
	assert.True(t, errors.Is(err, models.ErrRange))
}

func TestEntropy(t *testing.T) {
	flat := &Image{Data: []float64{3, 3, 3, 3}, Size: 2}
	assert.Zero(t, flat.Entropy())

	split := &Image{Data: []float64{0, 0, 1, 1}, Size: 2}
	assert.InDelta(t, 1.0, split.Entropy(), 1e-12)
}

func TestGray16Scaling(t *testing.T) {
	img := &Image{Data: []float64{-1, 0, 1, 3}, Size: 2}
	g := img.Gray16()
	assert.Equal(t, uint16(0), g.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), g.Gray16At(1, 1).Y)
	assert.Equal(t, uint16(32768), g.Gray16At(0, 1).Y)
}
