package frost

import (
	"image/color"
	"math"
)

// Color represents a straight-alpha color with red, green, blue and alpha
// components. Each component is in the range [0, 1].
type Color struct {
	R, G, B, A float32
}

// RGB creates an opaque color from RGB components.
func RGB(r, g, b float32) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// Gray creates an opaque gray level.
func Gray(v float32) Color {
	return Color{R: v, G: v, B: v, A: 1}
}

// FromColor converts a standard color.Color to a straight-alpha Color.
func FromColor(c color.Color) Color {
	n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return Color{
		R: float32(n.R) / 65535,
		G: float32(n.G) / 65535,
		B: float32(n.B) / 65535,
		A: float32(n.A) / 65535,
	}
}

// ColorModel converts any color.Color to a Color. It is the model of
// every Pixmap.
var ColorModel = color.ModelFunc(func(c color.Color) color.Color {
	if fc, ok := c.(Color); ok {
		return fc
	}
	return FromColor(c)
})

// NRGBA converts to an 8-bit straight-alpha color, rounding to nearest.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: to8(c.A),
	}
}

// RGBA implements color.Color. It returns alpha-premultiplied 16-bit values.
func (c Color) RGBA() (r, g, b, a uint32) {
	p := c.Clamp().Premultiply()
	return uint32(p.R*65535 + 0.5), uint32(p.G*65535 + 0.5), uint32(p.B*65535 + 0.5), uint32(p.A*65535 + 0.5)
}

// Hex creates a color from a hex string.
// Supports formats: "RGB", "RGBA", "RRGGBB", "RRGGBBAA", with or without '#'.
// Malformed input yields opaque black.
func Hex(hex string) Color {
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b uint32
	a := uint32(255)
	ok := true

	switch len(hex) {
	case 3:
		ok = parseHex(hex[0:1], &r) && parseHex(hex[1:2], &g) && parseHex(hex[2:3], &b)
		r, g, b = r*17, g*17, b*17
	case 4:
		ok = parseHex(hex[0:1], &r) && parseHex(hex[1:2], &g) && parseHex(hex[2:3], &b) && parseHex(hex[3:4], &a)
		r, g, b, a = r*17, g*17, b*17, a*17
	case 6:
		ok = parseHex(hex[0:2], &r) && parseHex(hex[2:4], &g) && parseHex(hex[4:6], &b)
	case 8:
		ok = parseHex(hex[0:2], &r) && parseHex(hex[2:4], &g) && parseHex(hex[4:6], &b) && parseHex(hex[6:8], &a)
	default:
		ok = false
	}
	if !ok {
		return Black
	}

	return Color{
		R: float32(r) / 255,
		G: float32(g) / 255,
		B: float32(b) / 255,
		A: float32(a) / 255,
	}
}

func parseHex(s string, val *uint32) bool {
	*val = 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		*val *= 16
		switch {
		case '0' <= c && c <= '9':
			*val += uint32(c - '0')
		case 'a' <= c && c <= 'f':
			*val += uint32(c - 'a' + 10)
		case 'A' <= c && c <= 'F':
			*val += uint32(c - 'A' + 10)
		default:
			return false
		}
	}
	return true
}

// Premultiply scales RGB by alpha.
func (c Color) Premultiply() Color {
	return Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// Unpremultiply divides RGB by alpha. Zero (or negative) alpha yields
// transparent black instead of NaN or Inf.
func (c Color) Unpremultiply() Color {
	if c.A <= 0 {
		return Transparent
	}
	inv := 1 / c.A
	return Color{R: c.R * inv, G: c.G * inv, B: c.B * inv, A: c.A}
}

// Add returns the component-wise sum.
func (c Color) Add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B, A: c.A + o.A}
}

// Scale multiplies every component by s.
func (c Color) Scale(s float32) Color {
	return Color{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A * s}
}

// Lerp performs linear interpolation between two colors.
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

// Clamp restricts every component to [0, 1].
func (c Color) Clamp() Color {
	return Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B), A: clamp01(c.A)}
}

// Quantize8 rounds every component to the nearest multiple of 1/255,
// as an 8-bit unorm render target would store it.
func (c Color) Quantize8() Color {
	return Color{
		R: float32(to8(c.R)) / 255,
		G: float32(to8(c.G)) / 255,
		B: float32(to8(c.B)) / 255,
		A: float32(to8(c.A)) / 255,
	}
}

// Over composites c over dst, both straight alpha.
func (c Color) Over(dst Color) Color {
	s := c.Premultiply()
	d := dst.Premultiply()
	k := 1 - s.A
	return Color{
		R: s.R + d.R*k,
		G: s.G + d.G*k,
		B: s.B + d.B*k,
		A: s.A + d.A*k,
	}.Unpremultiply()
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to8(x float32) uint8 {
	return uint8(math.Round(float64(clamp01(x)) * 255))
}

// Common colors
var (
	Black       = RGB(0, 0, 0)
	White       = RGB(1, 1, 1)
	Transparent = Color{}
)
