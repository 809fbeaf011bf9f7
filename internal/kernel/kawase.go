package kernel

// StencilTap is one tap of a Kawase stencil. Offset is in half-pixel
// units: the sample position is uv + Offset*halfpixel.
type StencilTap struct {
	Offset [2]float32
	Weight float32
}

// Stencil is a fixed set of weighted taps.
type Stencil []StencilTap

// Total returns the sum of the tap weights, the stencil's normalizer.
func (s Stencil) Total() float32 {
	var sum float32
	for _, t := range s {
		sum += t.Weight
	}
	return sum
}

// KawaseDown is the 5-tap downsample stencil: the centre at weight 4 and
// four diagonal taps at one half-pixel. Normalized by 8.
var KawaseDown = Stencil{
	{Offset: [2]float32{0, 0}, Weight: 4},
	{Offset: [2]float32{-1, -1}, Weight: 1},
	{Offset: [2]float32{1, 1}, Weight: 1},
	{Offset: [2]float32{1, -1}, Weight: 1},
	{Offset: [2]float32{-1, 1}, Weight: 1},
}

// KawaseUp is the 8-tap upsample stencil: cardinal taps at two half-pixels
// with weight 1 and diagonal taps at one half-pixel with weight 2.
// Normalized by 12.
var KawaseUp = Stencil{
	{Offset: [2]float32{-2, 0}, Weight: 1},
	{Offset: [2]float32{-1, 1}, Weight: 2},
	{Offset: [2]float32{0, 2}, Weight: 1},
	{Offset: [2]float32{1, 1}, Weight: 2},
	{Offset: [2]float32{2, 0}, Weight: 1},
	{Offset: [2]float32{1, -1}, Weight: 2},
	{Offset: [2]float32{0, -2}, Weight: 1},
	{Offset: [2]float32{-1, -1}, Weight: 2},
}

// HalfPixel returns distance / sourceResolution, the uv offset of one
// half-pixel step for a source of the given size.
func HalfPixel(distance float32, srcWidth, srcHeight int) [2]float32 {
	if srcWidth <= 0 || srcHeight <= 0 {
		return [2]float32{}
	}
	return [2]float32{distance / float32(srcWidth), distance / float32(srcHeight)}
}
