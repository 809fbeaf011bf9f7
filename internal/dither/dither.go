// Package dither adds amplitude-bounded noise to a color before it is
// quantized, hiding the banding of 8-bit render targets.
//
// The noise is a pure function of the pixel coordinate and a seed: no
// state, no time dependence, and the same constants run in the WGSL
// dither program. Changing any constant here changes every fixture.
package dither

import "github.com/gogpu/frost"

// DefaultSeed is the seed used by the effect unless overridden.
const DefaultSeed uint32 = 0x2545F491

// PCG3D constants (Jarzynski and Olano, "Hash Functions for GPU
// Rendering", 2020).
const (
	pcgMultiplier uint32 = 1664525
	pcgIncrement  uint32 = 1013904223
)

// Quantization step of an 8-bit channel.
const Step = 1.0 / 255

// Per-channel amplitude targets in quantization steps. Alpha tolerates
// more noise than color before it becomes visible.
var Target = [4]float32{1, 1, 1, 2}

// Hash returns three independent 32-bit hashes of (x, y, seed).
func Hash(x, y, seed uint32) (uint32, uint32, uint32) {
	vx := x*pcgMultiplier + pcgIncrement
	vy := y*pcgMultiplier + pcgIncrement
	vz := seed*pcgMultiplier + pcgIncrement

	vx += vy * vz
	vy += vz * vx
	vz += vx * vy

	vx ^= vx >> 16
	vy ^= vy >> 16
	vz ^= vz >> 16

	vx += vy * vz
	vy += vz * vx
	vz += vx * vy

	return vx, vy, vz
}

// unit maps a hash to [0, 1) using its top 24 bits.
func unit(h uint32) float32 {
	return float32(h>>8) * (1.0 / 16777216.0)
}

// Noise returns the zero-mean noise samples for a pixel: triangular-PDF
// noise in (-1, 1) shared by the color channels, and rectangular-PDF noise
// in [-1, 1) for alpha.
func Noise(x, y int, seed uint32) (tri, rect float32) {
	h0, h1, h2 := Hash(uint32(x), uint32(y), seed) //nolint:gosec // coordinates wrap intentionally
	tri = unit(h0) + unit(h1) - 1
	rect = unit(h2)*2 - 1
	return tri, rect
}

// Amplitude bounds the noise of one channel: at most target steps, and
// never more than the distance to 0 or 1, so a saturated channel is
// left untouched. The target scales only the step cap, not the distance
// bound.
func Amplitude(v, target float32) float32 {
	return max(0, min(target*Step, v, 1-v))
}

// Apply dithers a straight-alpha color at pixel (x, y).
func Apply(c frost.Color, x, y int, seed uint32) frost.Color {
	tri, rect := Noise(x, y, seed)
	out := frost.Color{
		R: c.R + tri*Amplitude(c.R, Target[0]),
		G: c.G + tri*Amplitude(c.G, Target[1]),
		B: c.B + tri*Amplitude(c.B, Target[2]),
		A: c.A + rect*Amplitude(c.A, Target[3]),
	}
	return out.Clamp()
}
