// Package hud draws the status label (the current configuration) over a
// rendered frame. Text is shaped with go-text to size the backdrop and
// rasterized with x/image.
package hud

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/frost"
)

// DefaultSize is the label size in pixels.
const DefaultSize = 14

// Backdrop is the translucent box drawn behind the label.
var Backdrop = color.NRGBA{A: 160}

// Overlay renders labels in Go Regular. It is safe for concurrent use.
type Overlay struct {
	mu      sync.Mutex
	size    float64
	padding int

	face   xfont.Face
	shape  *gtfont.Face
	shaper shaping.HarfbuzzShaper
}

// New creates an overlay at the given pixel size (DefaultSize if <= 0).
func New(size float64) (*Overlay, error) {
	if size <= 0 {
		size = DefaultSize
	}
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("hud: parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("hud: create face: %w", err)
	}
	shape, err := gtfont.ParseTTF(bytes.NewReader(goregular.TTF))
	if err != nil {
		_ = face.Close()
		return nil, fmt.Errorf("hud: parse shaping font: %w", err)
	}
	return &Overlay{
		size:    size,
		padding: int(size/3) + 1,
		face:    face,
		shape:   shape,
	}, nil
}

// Close releases the rasterizer face.
func (o *Overlay) Close() error {
	return o.face.Close()
}

// Measure returns the shaped advance of text and the line height, in
// pixels rounded up.
func (o *Overlay) Measure(text string) (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.measureLocked(text)
}

func (o *Overlay) measureLocked(text string) (int, int) {
	m := o.face.Metrics()
	height := (m.Ascent + m.Descent).Ceil()
	if text == "" {
		return 0, height
	}
	runes := []rune(text)
	out := o.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      o.shape,
		Size:      fixed.Int26_6(o.size * 64),
		Script:    language.LookupScript(runes[0]),
		Language:  language.NewLanguage("en"),
	})
	return out.Advance.Ceil(), height
}

// Draw returns a copy of dst with text in the top-left corner over a
// translucent backdrop.
func (o *Overlay) Draw(dst *frost.Pixmap, text string) *frost.Pixmap {
	if text == "" {
		return dst.Clone()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	w, h := o.measureLocked(text)
	img := dst.ToImage()
	box := image.Rect(0, 0, w+2*o.padding, h+2*o.padding).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(Backdrop), image.Point{}, draw.Over)

	d := &xfont.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: o.face,
		Dot:  fixed.P(o.padding, o.padding+o.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return frost.FromImage(img)
}

// Label draws cfg's status line, e.g. "kawase k=17 r=1.00 l=1".
func (o *Overlay) Label(dst *frost.Pixmap, cfg frost.Config) *frost.Pixmap {
	return o.Draw(dst, cfg.String())
}
