package pass

import (
	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/dither"
	"github.com/gogpu/frost/internal/kernel"
	"github.com/gogpu/frost/internal/parallel"
	"github.com/gogpu/frost/internal/target"
)

// CPUExecutor runs every pass on the host, one row band per task on a
// worker pool. It is the reference the GPU programs are checked against.
type CPUExecutor struct {
	pool *parallel.WorkerPool
}

// NewCPUExecutor creates an executor with the given worker count
// (0 means GOMAXPROCS).
func NewCPUExecutor(workers int) *CPUExecutor {
	return &CPUExecutor{pool: parallel.NewWorkerPool(workers)}
}

// Execute runs the pass synchronously.
func (e *CPUExecutor) Execute(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	shade := fragment(d)
	dst := d.Destination.Pixmap
	w := dst.Width()
	data := dst.Data()
	quantize := d.Destination.Format().Quantized()

	e.pool.Rows(dst.Height(), func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			i := y * w * 4
			for x := 0; x < w; x++ {
				c := shade(x, y)
				if quantize {
					c = c.Quantize8()
				}
				data[i+0] = c.R
				data[i+1] = c.G
				data[i+2] = c.B
				data[i+3] = c.A
				i += 4
			}
		}
	})

	frost.Logger().Debug("pass: cpu execute", "pass", d.Label, "program", d.Program,
		"dst", d.Destination.Label(), "width", w, "height", dst.Height())
	return nil
}

// Resolve is a no-op: CPU passes complete inside Execute.
func (e *CPUExecutor) Resolve(*frost.Pixmap) error { return nil }

// Forget is a no-op: CPU targets own no device memory.
func (e *CPUExecutor) Forget(*target.RenderTarget) {}

// Close stops the worker pool.
func (e *CPUExecutor) Close() {
	e.pool.Close()
}

// fragment returns the per-pixel program for d. The returned color is
// straight alpha; accumulation inside happens premultiplied.
func fragment(d *Descriptor) func(x, y int) frost.Color {
	src := d.Source
	dst := d.Destination.Pixmap
	mode := d.Address
	sw, sh := float32(src.Width()), float32(src.Height())
	dw, dh := float32(dst.Width()), float32(dst.Height())
	sameSize := src.Width() == dst.Width() && src.Height() == dst.Height()

	uv := func(x, y int) (float32, float32) {
		return (float32(x) + 0.5) / dw, (float32(y) + 0.5) / dh
	}

	switch d.Program {
	case ProgramGaussian:
		weights := d.Weights
		su, sv := d.Direction[0]/sw, d.Direction[1]/sh
		return func(x, y int) frost.Color {
			u, v := uv(x, y)
			acc := src.SamplePremultiplied(u, v, mode).Scale(weights[0].Weight)
			for _, tap := range weights[1:] {
				o := float32(tap.Offset)
				a := src.SamplePremultiplied(u+o*su, v+o*sv, mode)
				b := src.SamplePremultiplied(u-o*su, v-o*sv, mode)
				acc = acc.Add(a.Add(b).Scale(tap.Weight))
			}
			return acc.Unpremultiply()
		}

	case ProgramKawaseDown, ProgramKawaseUp:
		stencil := kernel.KawaseDown
		if d.Program == ProgramKawaseUp {
			stencil = kernel.KawaseUp
		}
		inv := 1 / stencil.Total()
		hp := d.HalfPixel
		return func(x, y int) frost.Color {
			u, v := uv(x, y)
			var acc frost.Color
			for _, tap := range stencil {
				s := src.SamplePremultiplied(u+tap.Offset[0]*hp[0], v+tap.Offset[1]*hp[1], mode)
				acc = acc.Add(s.Scale(tap.Weight))
			}
			return acc.Scale(inv).Unpremultiply()
		}

	default: // ProgramDither; Validate rejects anything else.
		seed := d.Seed
		return func(x, y int) frost.Color {
			var c frost.Color
			if sameSize {
				c = src.Pixel(x, y)
			} else {
				u, v := uv(x, y)
				c = src.Sample(u, v, mode)
			}
			return dither.Apply(c, x, y, seed)
		}
	}
}
