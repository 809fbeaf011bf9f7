package frost

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Algorithm selects the blur variant.
type Algorithm uint8

const (
	// AlgorithmGaussian is the separable sampled-Gaussian blur: a
	// horizontal pass followed by a vertical pass at full resolution.
	AlgorithmGaussian Algorithm = iota

	// AlgorithmKawase is the Kawase-derived dual filter: a ladder of
	// half-resolution downsample passes mirrored by upsample passes.
	AlgorithmKawase
)

// String returns the algorithm name as accepted by ParseAlgorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmGaussian:
		return "gaussian"
	case AlgorithmKawase:
		return "kawase"
	default:
		return fmt.Sprintf("Algorithm(%d)", a)
	}
}

// ParseAlgorithm parses "gaussian" or "kawase" (case-insensitive).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "gaussian", "gauss":
		return AlgorithmGaussian, nil
	case "kawase", "dual":
		return AlgorithmKawase, nil
	default:
		return AlgorithmKawase, fmt.Errorf("frost: unknown algorithm %q", s)
	}
}

// Configuration limits and step sizes.
const (
	MaxKernelSize = 63
	KernelStep    = 2

	// DegenerateKernelSize is the largest kernel size that produces no
	// blur. Configurations at or below it pass the source through.
	DegenerateKernelSize = 1

	MaxRadius  = 32
	RadiusStep = 0.1

	// MaxLayers bounds the Kawase ladder at 1/64 of the source resolution.
	MaxLayers = 6
)

// Config is the live tunable state of the effect. It is plain data:
// mutate it between frames, never during one.
type Config struct {
	Algorithm Algorithm

	// KernelSize is the number of Gaussian taps on each side of the
	// centre. Normalized to an odd value.
	KernelSize int

	// Radius scales sampling offsets. For the Gaussian it is the tap
	// spacing in texels, for the Kawase filter the distance parameter.
	Radius float32

	// Layers is the Kawase ladder depth, or the number of Gaussian
	// horizontal+vertical iterations.
	Layers int

	// Dither enables the final dithering pass.
	Dither bool

	// Diagonal rotates the Gaussian sampling axes by 45 degrees.
	Diagonal bool
}

// DefaultConfig returns the startup configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmKawase,
		KernelSize: 17,
		Radius:     1,
		Layers:     1,
	}
}

// Normalize clamps every field to its valid range. Out-of-range values
// are never an error.
func (c Config) Normalize() Config {
	if c.Algorithm != AlgorithmGaussian && c.Algorithm != AlgorithmKawase {
		c.Algorithm = AlgorithmKawase
	}

	c.KernelSize = clampInt(c.KernelSize, 0, MaxKernelSize)
	if c.KernelSize > 0 && c.KernelSize%2 == 0 {
		c.KernelSize++
	}

	r := float64(c.Radius)
	switch {
	case math.IsNaN(r) || r < 0:
		r = 0
	case r > MaxRadius:
		r = MaxRadius
	}
	c.Radius = float32(r)

	c.Layers = clampInt(c.Layers, 0, MaxLayers)
	return c
}

// Degenerate reports whether the configuration produces no blur at all.
// A degenerate configuration passes the source through unchanged.
func (c Config) Degenerate() bool {
	return c.KernelSize <= DegenerateKernelSize || c.Layers == 0 || c.Radius == 0
}

// String formats the configuration for status lines.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s k=%d r=%.2f l=%d", c.Algorithm, c.KernelSize, c.Radius, c.Layers)
	if c.Diagonal {
		b.WriteString(" diagonal")
	}
	if c.Dither {
		b.WriteString(" dithering")
	}
	return b.String()
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("algorithm", c.Algorithm.String()),
		slog.Int("kernel", c.KernelSize),
		slog.Float64("radius", float64(c.Radius)),
		slog.Int("layers", c.Layers),
		slog.Bool("dither", c.Dither),
		slog.Bool("diagonal", c.Diagonal),
	)
}
