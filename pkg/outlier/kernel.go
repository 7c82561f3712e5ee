package outlier

import "math"

// kernel holds the scratch buffers for one worker
type kernel struct {
	rows, cols int
	half       int
	src        []float64
	window     []float64
}

func newKernel(rows, cols, size int) *kernel {
	return &kernel{
		rows:   rows,
		cols:   cols,
		half:   size / 2,
		src:    make([]float64, rows*cols),
		window: make([]float64, 0, size*size),
	}
}

// apply filters one projection in place. Medians are taken over the
// unfiltered copy so replacements never feed into their neighbors.
func (k *kernel) apply(proj []float64, threshold float64) {
	copy(k.src, proj)

	for r := 0; r < k.rows; r++ {
		r0, r1 := clamp(r-k.half, k.rows), clamp(r+k.half, k.rows)
		for c := 0; c < k.cols; c++ {
			c0, c1 := clamp(c-k.half, k.cols), clamp(c+k.half, k.cols)

			k.window = k.window[:0]
			for wr := r0; wr <= r1; wr++ {
				k.window = append(k.window, k.src[wr*k.cols+c0:wr*k.cols+c1+1]...)
			}

			med := median(k.window)
			idx := r*k.cols + c
			if math.Abs(k.src[idx]-med) > threshold {
				proj[idx] = med
			}
		}
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// median reorders values and returns their median
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	hi := selectKth(values, n/2)
	if n%2 == 1 {
		return hi
	}
	// After selection every element left of n/2 is <= hi
	lo := values[0]
	for _, v := range values[1 : n/2] {
		if v > lo {
			lo = v
		}
	}
	return (lo + hi) / 2
}

// selectKth partially orders values so values[k] holds the k-th smallest
func selectKth(values []float64, k int) float64 {
	left, right := 0, len(values)-1
	for left < right {
		pivot := values[(left+right)/2]
		i, j := left, right
		for i <= j {
			for values[i] < pivot {
				i++
			}
			for values[j] > pivot {
				j--
			}
			if i <= j {
				values[i], values[j] = values[j], values[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			right = j
		case k >= i:
			left = i
		default:
			return values[k]
		}
	}
	return values[k]
}
