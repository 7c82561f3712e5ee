package phase

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corscan/internal/models"
)

func sessionParams() Params {
	return Params{PixelSize: 0.65e-4, Distance: 5, Energy: 25, Alpha: 1e-3}
}

func TestWavelength(t *testing.T) {
	// 12.398 keV corresponds to 1 Angstrom
	p := Params{Energy: 12.398419}
	assert.InDelta(t, 1e-8, p.Wavelength(), 1e-12)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sessionParams().Validate())

	p := sessionParams()
	p.Alpha = 0
	assert.True(t, errors.Is(p.Validate(), models.ErrConfiguration))
	p = sessionParams()
	p.Energy = -1
	assert.True(t, errors.Is(p.Validate(), models.ErrConfiguration))
}

func TestPlane2DRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	rows, cols := 6, 10
	data := make([]complex128, rows*cols)
	want := make([]complex128, rows*cols)
	for i := range data {
		data[i] = complex(rng.NormFloat64(), 0)
		want[i] = data[i]
	}

	p := newPlane2D(rows, cols)
	p.forward(data)

	var sum complex128
	for _, v := range want {
		sum += v
	}
	assert.InDelta(t, 0, cmplx.Abs(data[0]-sum), 1e-9, "DC term is the sum")

	p.inverse(data)
	for i := range data {
		require.InDelta(t, real(want[i]), real(data[i]), 1e-9)
		require.InDelta(t, 0, imag(data[i]), 1e-9)
	}
}

func TestFilterPassesZeroFrequency(t *testing.T) {
	r := NewRetriever(sessionParams(), false, 1)
	f := r.filter(4, 8)
	assert.Equal(t, 1.0, f[0])
	for _, v := range f {
		assert.Greater(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	// higher spatial frequency is damped more
	assert.Less(t, f[2], f[1])
}

func TestUniformFieldUnchanged(t *testing.T) {
	for _, pad := range []bool{false, true} {
		vol := models.NewVolume(3, 4, 16)
		for i := range vol.Data {
			vol.Data[i] = 10
		}
		params := sessionParams()
		params.Distance = 0.05 // keeps the padded plane small

		out, err := NewRetriever(params, pad, 2).Apply(context.Background(), vol)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 4, 16}, out.Shape())
		for _, v := range out.Data {
			require.InDelta(t, 10, v, 1e-9, "pad=%v", pad)
		}
	}
}

func TestRetrievalSmoothsAndPreservesMean(t *testing.T) {
	vol := models.NewVolume(1, 8, 32)
	for i := range vol.Data {
		vol.Data[i] = 10
	}
	vol.Set(0, 4, 16, 20)
	mean := 0.0
	for _, v := range vol.Data {
		mean += v
	}

	out, err := NewRetriever(sessionParams(), false, 1).Apply(context.Background(), vol)
	require.NoError(t, err)

	got := 0.0
	for _, v := range out.Data {
		got += v
	}
	assert.InDelta(t, mean, got, 1e-6)
	assert.Less(t, out.At(0, 4, 16), 20.0)
	assert.Greater(t, out.At(0, 4, 17), 10.0)
}

func TestPadWidthReachesPowerOfTwo(t *testing.T) {
	r := NewRetriever(sessionParams(), true, 1)
	for _, dim := range []int{2, 100, 2048} {
		w := r.padWidth(dim)
		total := dim + 2*w
		assert.GreaterOrEqual(t, w, 0)
		// total is within one pixel of a power of two
		pow := math.Pow(2, math.Round(math.Log2(float64(total))))
		assert.InDelta(t, pow, float64(total), 1, "dim=%d", dim)
	}
}

func TestApplyRejectsBadSession(t *testing.T) {
	p := sessionParams()
	p.PixelSize = 0
	_, err := NewRetriever(p, false, 1).Apply(context.Background(), models.NewVolume(1, 2, 2))
	assert.True(t, errors.Is(err, models.ErrConfiguration))

	_, err = NewRetriever(sessionParams(), false, 0).Apply(context.Background(), models.NewVolume(1, 2, 2))
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}
