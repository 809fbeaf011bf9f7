package frost

import "math"

// AddressMode selects what a sampler returns for coordinates outside
// the image.
type AddressMode uint8

const (
	// ClampToEdge repeats the nearest edge texel.
	ClampToEdge AddressMode = iota

	// ClampToBorder returns transparent black outside the image.
	ClampToBorder
)

// String returns the address mode name.
func (m AddressMode) String() string {
	switch m {
	case ClampToEdge:
		return "ClampToEdge"
	case ClampToBorder:
		return "ClampToBorder"
	default:
		return "Unknown"
	}
}

// Texel returns the premultiplied texel at integer coordinates, resolving
// out-of-range coordinates with mode.
func (p *Pixmap) Texel(x, y int, mode AddressMode) Color {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		if mode == ClampToBorder {
			return Transparent
		}
		x = clampInt(x, 0, p.width-1)
		y = clampInt(y, 0, p.height-1)
	}
	i := (y*p.width + x) * 4
	a := p.data[i+3]
	return Color{R: p.data[i] * a, G: p.data[i+1] * a, B: p.data[i+2] * a, A: a}
}

// SamplePremultiplied bilinearly filters the image at normalized
// coordinates (u, v), where texel centres sit at (i+0.5)/size. Texels are
// premultiplied before interpolation so that transparent neighbours do not
// bleed their color.
func (p *Pixmap) SamplePremultiplied(u, v float32, mode AddressMode) Color {
	if p.width == 0 || p.height == 0 {
		return Transparent
	}
	x := u*float32(p.width) - 0.5
	y := v*float32(p.height) - 0.5
	fx0 := float32(math.Floor(float64(x)))
	fy0 := float32(math.Floor(float64(y)))
	tx := x - fx0
	ty := y - fy0
	x0, y0 := int(fx0), int(fy0)

	c00 := p.Texel(x0, y0, mode)
	c10 := p.Texel(x0+1, y0, mode)
	c01 := p.Texel(x0, y0+1, mode)
	c11 := p.Texel(x0+1, y0+1, mode)

	top := c00.Lerp(c10, tx)
	bottom := c01.Lerp(c11, tx)
	return top.Lerp(bottom, ty)
}

// Sample is SamplePremultiplied converted back to straight alpha.
func (p *Pixmap) Sample(u, v float32, mode AddressMode) Color {
	return p.SamplePremultiplied(u, v, mode).Unpremultiply()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
