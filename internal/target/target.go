package target

import (
	"container/list"
	"fmt"

	"github.com/gogpu/frost"
)

// Ping/pong slots of the arena. A pass never reads and writes the same
// slot at the same level.
const (
	SlotPing = 0
	SlotPong = 1
)

// Desc describes a render target request.
type Desc struct {
	Level  int
	Slot   int
	Width  int
	Height int
	Format frost.Format
}

// SizeBytes returns the device memory cost of the target.
func (d Desc) SizeBytes() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel()) //nolint:gosec // normalized non-negative
}

// Label names the arena cell, e.g. "L2/ping".
func (d Desc) Label() string {
	slot := "ping"
	if d.Slot == SlotPong {
		slot = "pong"
	}
	return fmt.Sprintf("L%d/%s", d.Level, slot)
}

// normalize clamps dimensions to at least one pixel.
func (d Desc) normalize() Desc {
	d.Width = max(d.Width, 1)
	d.Height = max(d.Height, 1)
	d.Level = max(d.Level, 0)
	return d
}

func (d Desc) compatible(o Desc) bool {
	return d.Width == o.Width && d.Height == o.Height && d.Format == o.Format
}

// Halve returns floor(n/2), never below 1.
func Halve(n int) int {
	return max(n/2, 1)
}

// Ladder returns the sizes of levels 0..layers for a source of w x h.
// Level 0 is the source resolution and each further level halves it.
func Ladder(w, h, layers int) [][2]int {
	sizes := make([][2]int, 0, layers+1)
	sizes = append(sizes, [2]int{max(w, 1), max(h, 1)})
	for i := 1; i <= layers; i++ {
		prev := sizes[i-1]
		sizes = append(sizes, [2]int{Halve(prev[0]), Halve(prev[1])})
	}
	return sizes
}

// RenderTarget is a pooled image buffer. The embedded Pixmap holds its
// host-visible contents.
type RenderTarget struct {
	*frost.Pixmap

	id         uint64
	desc       Desc
	generation uint64
	sizeBytes  uint64
	acquired   bool
	destroyed  bool
	element    *list.Element // position in the free list while idle
}

// ID returns the pool-unique identifier of the target.
func (t *RenderTarget) ID() uint64 { return t.id }

// Desc returns the request the target currently serves.
func (t *RenderTarget) Desc() Desc { return t.desc }

// Format returns the storage format.
func (t *RenderTarget) Format() frost.Format { return t.desc.Format }

// Generation returns the pool generation the target was allocated in.
func (t *RenderTarget) Generation() uint64 { return t.generation }

// Acquired reports whether the target is currently handed out.
func (t *RenderTarget) Acquired() bool { return t.acquired }

// Destroyed reports whether the pool has dropped the target.
func (t *RenderTarget) Destroyed() bool { return t.destroyed }

// Label names the arena cell the target currently serves.
func (t *RenderTarget) Label() string { return t.desc.Label() }
