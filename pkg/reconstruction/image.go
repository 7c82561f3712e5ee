package reconstruction

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// entropyBins is the histogram resolution used by Entropy
const entropyBins = 256

// Range returns the smallest and largest pixel values
func (img *Image) Range() (lo, hi float64) {
	if len(img.Data) == 0 {
		return 0, 0
	}
	return floats.Min(img.Data), floats.Max(img.Data)
}

// Entropy is the Shannon entropy in bits of a 256-bin histogram of the
// pixel values. A flat image has entropy 0.
func (img *Image) Entropy() float64 {
	n := len(img.Data)
	if n == 0 {
		return 0
	}
	lo, hi := img.Range()
	if hi <= lo {
		return 0
	}

	hist := make([]float64, entropyBins)
	width := (hi - lo) / entropyBins
	for _, v := range img.Data {
		bin := int((v - lo) / width)
		if bin >= entropyBins {
			bin = entropyBins - 1
		} else if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// Gray16 scales the slice linearly from its own [min, max] to the full
// 16-bit range
func (img *Image) Gray16() *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Size, img.Size))
	lo, hi := img.Range()
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}
	for y := 0; y < img.Size; y++ {
		for x := 0; x < img.Size; x++ {
			v := (img.At(y, x) - lo) * scale
			out.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v))})
		}
	}
	return out
}
