package outlier

import (
	"context"
	"fmt"
	"sync"

	"corscan/internal/models"
)

// CPUDevice runs the kernel on a pool of goroutines. MemoryBytes models the
// device memory: projections are uploaded in batches that fit in it, and a
// device that cannot hold a single projection is out of memory.
type CPUDevice struct {
	// Workers is the number of goroutines per batch
	Workers int

	// MemoryBytes bounds the batch size; 0 means unlimited
	MemoryBytes int
}

// NewCPUDevice creates a device with the given worker count and memory budget in MiB
func NewCPUDevice(workers, memoryMB int) *CPUDevice {
	return &CPUDevice{
		Workers:     workers,
		MemoryBytes: memoryMB << 20,
	}
}

// Name implements Device
func (d *CPUDevice) Name() string {
	return fmt.Sprintf("cpu(%d workers)", d.Workers)
}

// batchSize returns how many projections fit on the device at once.
// Each projection needs an input copy and the output buffer.
func (d *CPUDevice) batchSize(vol *models.Volume) (int, error) {
	if d.Workers < 1 {
		return 0, fmt.Errorf("%w: device has no workers", models.ErrResource)
	}
	if d.MemoryBytes <= 0 {
		return vol.Angles, nil
	}
	perProjection := 2 * vol.Rows * vol.Cols * 8
	n := d.MemoryBytes / perProjection
	if n < 1 {
		return 0, fmt.Errorf("%w: device memory %d bytes cannot hold one %dx%d projection (%d bytes)",
			models.ErrResource, d.MemoryBytes, vol.Rows, vol.Cols, perProjection)
	}
	return n, nil
}

// Despeckle implements Device
func (d *CPUDevice) Despeckle(ctx context.Context, vol *models.Volume, threshold float64, size int) error {
	batch, err := d.batchSize(vol)
	if err != nil {
		return err
	}

	for start := 0; start < vol.Angles; start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batch
		if end > vol.Angles {
			end = vol.Angles
		}
		d.runBatch(vol, start, end, threshold, size)
	}
	return nil
}

// runBatch divides projections [start, end) among the workers
func (d *CPUDevice) runBatch(vol *models.Volume, start, end int, threshold float64, size int) {
	var wg sync.WaitGroup
	count := end - start
	perWorker := (count + d.Workers - 1) / d.Workers

	for w := 0; w < d.Workers; w++ {
		lo := start + w*perWorker
		hi := lo + perWorker
		if hi > end {
			hi = end
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			k := newKernel(vol.Rows, vol.Cols, size)
			for a := lo; a < hi; a++ {
				k.apply(vol.Projection(a), threshold)
			}
		}(lo, hi)
	}
	wg.Wait()
}
