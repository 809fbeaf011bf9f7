package kernel

import (
	"math"
	"sync"
)

// SigmaDivisor is C in sigma = (kernelSize-1)/C. With taps out to
// kernelSize the table covers four standard deviations.
const SigmaDivisor = 4

// DegenerateSize is the largest kernel size with no blur radius.
const DegenerateSize = 1

// Tap is one sample of a symmetric 1D kernel.
type Tap struct {
	Offset int
	Weight float32
}

// Weights is a one-sided Gaussian table: Weights[i] holds offset i for
// i = 0..kernelSize. The sampled kernel uses the centre tap once and every
// other tap on both sides.
type Weights []Tap

// Size returns the kernel size (taps on one side).
func (w Weights) Size() int {
	return max(len(w)-1, 0)
}

// Sum returns w(0) + 2*sum(w(i)), the total weight of the sampled kernel.
func (w Weights) Sum() float32 {
	if len(w) == 0 {
		return 0
	}
	sum := float64(w[0].Weight)
	for _, t := range w[1:] {
		sum += 2 * float64(t.Weight)
	}
	return float32(sum)
}

// Floats returns the weights in offset order, for upload to the GPU.
func (w Weights) Floats() []float32 {
	out := make([]float32, len(w))
	for i, t := range w {
		out[i] = t.Weight
	}
	return out
}

// Sigma returns the standard deviation used for a kernel size.
func Sigma(kernelSize int) float64 {
	return float64(kernelSize-1) / SigmaDivisor
}

// Weight evaluates the Gaussian probability density at offset i.
func Weight(i int, sigma float64) float64 {
	x := float64(i)
	return math.Exp(-(x*x)/(2*sigma*sigma)) / (sigma * math.Sqrt(2*math.Pi))
}

// Gaussian builds the normalized one-sided table for kernelSize.
// It returns nil for kernelSize <= DegenerateSize: such kernels are a
// pass-through and build no table.
func Gaussian(kernelSize int) Weights {
	if kernelSize <= DegenerateSize {
		return nil
	}

	sigma := Sigma(kernelSize)
	raw := make([]float64, kernelSize+1)
	sum := 0.0
	for i := range raw {
		raw[i] = Weight(i, sigma)
		if i == 0 {
			sum += raw[i]
		} else {
			sum += 2 * raw[i]
		}
	}

	w := make(Weights, kernelSize+1)
	for i, v := range raw {
		w[i] = Tap{Offset: i, Weight: float32(v / sum)}
	}
	return w
}

// cache holds computed Gaussian tables keyed by kernel size.
type cache struct {
	mu     sync.RWMutex
	tables map[int]Weights
}

var defaultCache = &cache{tables: make(map[int]Weights)}

func (c *cache) get(kernelSize int) Weights {
	c.mu.RLock()
	if w, ok := c.tables[kernelSize]; ok {
		c.mu.RUnlock()
		return w
	}
	c.mu.RUnlock()

	w := Gaussian(kernelSize)

	c.mu.Lock()
	c.tables[kernelSize] = w
	c.mu.Unlock()
	return w
}

// Cached returns the Gaussian table for kernelSize, computing it once.
// Callers must not modify the returned table.
func Cached(kernelSize int) Weights {
	return defaultCache.get(kernelSize)
}
