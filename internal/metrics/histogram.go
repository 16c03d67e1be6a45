// Package metrics records pipeline and query metrics: Prometheus collectors
// for scraping and an in-process duration histogram for run summaries.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Histogram keeps a bounded window of duration samples and answers
// percentile queries over it.
type Histogram struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// NewHistogram creates a histogram keeping at most maxSize samples. When the
// window is full the oldest fifth is dropped.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{
		samples: make([]time.Duration, 0, 64),
		maxSize: maxSize,
	}
}

// Record adds a sample.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, d)
	if len(h.samples) > h.maxSize {
		drop := h.maxSize / 5
		if drop == 0 {
			drop = 1
		}
		h.samples = append(h.samples[:0:0], h.samples[drop:]...)
	}
}

// Count returns the number of samples.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Mean returns the average sample.
func (h *Histogram) Mean() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range h.samples {
		sum += d
	}
	return sum / time.Duration(len(h.samples))
}

// Percentile returns the p-th percentile (0-100), linearly interpolated
// between neighbouring samples.
func (h *Histogram) Percentile(p float64) time.Duration {
	h.mu.RLock()
	sorted := make([]time.Duration, len(h.samples))
	copy(sorted, h.samples)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p = math.Max(0, math.Min(100, p))
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return time.Duration(math.Round(float64(sorted[lower])*(1-fraction) + float64(sorted[upper])*fraction))
}

// Max returns the largest sample.
func (h *Histogram) Max() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var max time.Duration
	for _, d := range h.samples {
		if d > max {
			max = d
		}
	}
	return max
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}
