package frost

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Pixmap is a rectangular buffer of straight-alpha float32 RGBA pixels.
// It is both the source image handed to the pipeline and the storage of
// every render target.
type Pixmap struct {
	width  int
	height int
	data   []float32 // RGBA, 4 floats per pixel, row-major
}

// NewPixmap creates a transparent pixmap with the given dimensions.
// Negative dimensions are treated as zero.
func NewPixmap(width, height int) *Pixmap {
	width = max(width, 0)
	height = max(height, 0)
	return &Pixmap{
		width:  width,
		height: height,
		data:   make([]float32, width*height*4),
	}
}

// Width returns the width of the pixmap.
func (p *Pixmap) Width() int {
	return p.width
}

// Height returns the height of the pixmap.
func (p *Pixmap) Height() int {
	return p.height
}

// Data returns the raw pixel data (RGBA, 4 floats per pixel).
func (p *Pixmap) Data() []float32 {
	return p.data
}

// Pixel returns the color at (x, y). Out-of-bounds reads return Transparent.
func (p *Pixmap) Pixel(x, y int) Color {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return Transparent
	}
	i := (y*p.width + x) * 4
	return Color{R: p.data[i], G: p.data[i+1], B: p.data[i+2], A: p.data[i+3]}
}

// SetPixel sets the color at (x, y). Out-of-bounds writes are ignored.
func (p *Pixmap) SetPixel(x, y int, c Color) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	i := (y*p.width + x) * 4
	p.data[i+0] = c.R
	p.data[i+1] = c.G
	p.data[i+2] = c.B
	p.data[i+3] = c.A
}

// Fill sets every pixel to c.
func (p *Pixmap) Fill(c Color) {
	for i := 0; i < len(p.data); i += 4 {
		p.data[i+0] = c.R
		p.data[i+1] = c.G
		p.data[i+2] = c.B
		p.data[i+3] = c.A
	}
}

// Clone returns a deep copy of the pixmap.
func (p *Pixmap) Clone() *Pixmap {
	c := &Pixmap{width: p.width, height: p.height, data: make([]float32, len(p.data))}
	copy(c.data, p.data)
	return c
}

// Mean returns the per-channel average over all pixels.
func (p *Pixmap) Mean() Color {
	n := p.width * p.height
	if n == 0 {
		return Transparent
	}
	var r, g, b, a float64
	for i := 0; i < len(p.data); i += 4 {
		r += float64(p.data[i])
		g += float64(p.data[i+1])
		b += float64(p.data[i+2])
		a += float64(p.data[i+3])
	}
	inv := 1 / float64(n)
	return Color{R: float32(r * inv), G: float32(g * inv), B: float32(b * inv), A: float32(a * inv)}
}

// Over returns a new pixmap with p composited over a solid background.
func (p *Pixmap) Over(bg Color) *Pixmap {
	out := NewPixmap(p.width, p.height)
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			out.SetPixel(x, y, p.Pixel(x, y).Over(bg))
		}
	}
	return out
}

// ToImage converts the pixmap to an 8-bit image.NRGBA.
func (p *Pixmap) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	for i := 0; i < len(p.data); i++ {
		img.Pix[i] = to8(p.data[i])
	}
	return img
}

// FromImage creates a pixmap from an image.
func FromImage(img image.Image) *Pixmap {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pm := NewPixmap(width, height)

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < height; y++ {
			off := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := nrgba.Pix[off : off+width*4]
			dst := pm.data[y*width*4 : (y+1)*width*4]
			for i, v := range row {
				dst[i] = float32(v) / 255
			}
		}
		return pm
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pm.SetPixel(x, y, FromColor(img.At(bounds.Min.X+x, bounds.Min.Y+y)))
		}
	}
	return pm
}

// SavePNG saves the pixmap to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, p.ToImage()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (p *Pixmap) At(x, y int) color.Color {
	return p.Pixel(x, y)
}

// Bounds implements the image.Image interface.
func (p *Pixmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.width, p.height)
}

// ColorModel implements the image.Image interface.
func (p *Pixmap) ColorModel() color.Model {
	return ColorModel
}
