package pass

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/dither"
	"github.com/gogpu/frost/internal/kernel"
	"github.com/gogpu/frost/internal/target"
)

func newCPU(t *testing.T) *CPUExecutor {
	t.Helper()
	e := NewCPUExecutor(4)
	t.Cleanup(e.Close)
	return e
}

func gradient(w, h int) *frost.Pixmap {
	p := frost.NewPixmap(w, h)
	for y := range h {
		for x := range w {
			p.SetPixel(x, y, frost.Color{
				R: float32(x) / float32(w-1),
				G: float32(y) / float32(h-1),
				B: 0.5,
				A: 1,
			})
		}
	}
	return p
}

func TestCPUExecuteRejectsInvalid(t *testing.T) {
	e := newCPU(t)
	err := e.Execute(&Descriptor{Program: ProgramKawaseDown})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("Execute() error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestCPUQuantizesRGBA8(t *testing.T) {
	e := newCPU(t)
	src := filled(4, 4, frost.Color{R: 0.3, G: 0.6, B: 0.9, A: 1})
	dst := newTarget(t, 4, 4, frost.FormatRGBA8)

	if err := e.Execute(&Descriptor{Program: ProgramKawaseDown, Source: src, Destination: dst, HalfPixel: [2]float32{0.125, 0.125}}); err != nil {
		t.Fatal(err)
	}
	for _, v := range dst.Data() {
		q := v * 255
		if math.Abs(float64(q)-math.Round(float64(q))) > 1e-3 {
			t.Fatalf("value %v is not a multiple of 1/255", v)
		}
	}
}

func TestCPUGaussianFlatInvariant(t *testing.T) {
	e := newCPU(t)
	gray := frost.Gray(0.5)
	src := filled(32, 32, gray)
	dst := newTarget(t, 32, 32, frost.FormatRGBA32F)

	for _, dir := range [][2]float32{{1, 0}, {0, 1}, {0.7071, 0.7071}, {3, 0}} {
		d := &Descriptor{
			Program: ProgramGaussian, Source: src, Destination: dst,
			Direction: dir, Weights: kernel.Gaussian(9),
		}
		if err := e.Execute(d); err != nil {
			t.Fatal(err)
		}
		for y := range 32 {
			for x := range 32 {
				if got := dst.Pixel(x, y); !colorNear(got, gray, 1e-4) {
					t.Fatalf("dir %v: pixel (%d, %d) = %v, want %v", dir, x, y, got, gray)
				}
			}
		}
	}
}

func TestCPUGaussianBlursCheckerboard(t *testing.T) {
	e := newCPU(t)
	src := frost.NewPixmap(2, 2)
	src.SetPixel(0, 0, frost.Black)
	src.SetPixel(1, 0, frost.White)
	src.SetPixel(0, 1, frost.White)
	src.SetPixel(1, 1, frost.Black)

	dst := newTarget(t, 2, 2, frost.FormatRGBA32F)
	d := &Descriptor{
		Program: ProgramGaussian, Source: src, Destination: dst,
		Direction: [2]float32{1, 0}, Weights: kernel.Gaussian(5),
	}
	if err := e.Execute(d); err != nil {
		t.Fatal(err)
	}
	for y := range 2 {
		for x := range 2 {
			c := dst.Pixel(x, y)
			if c.R <= 0 || c.R >= 1 {
				t.Errorf("pixel (%d, %d) = %v, want strictly inside (0, 1)", x, y, c.R)
			}
			if c.A < 1-1e-5 {
				t.Errorf("pixel (%d, %d) alpha = %v, want opaque", x, y, c.A)
			}
		}
	}
}

func TestCPUGaussianIsAlphaCorrect(t *testing.T) {
	// Opaque red next to transparent black: the blurred edge loses
	// alpha but must stay pure red in straight alpha.
	e := newCPU(t)
	src := frost.NewPixmap(16, 1)
	for x := range 8 {
		src.SetPixel(x, 0, frost.RGB(1, 0, 0))
	}
	dst := newTarget(t, 16, 1, frost.FormatRGBA32F)
	d := &Descriptor{
		Program: ProgramGaussian, Source: src, Destination: dst,
		Direction: [2]float32{1, 0}, Weights: kernel.Gaussian(9),
	}
	if err := e.Execute(d); err != nil {
		t.Fatal(err)
	}
	edge := dst.Pixel(8, 0)
	if edge.A <= 0 || edge.A >= 1 {
		t.Fatalf("edge alpha = %v, want partially transparent", edge.A)
	}
	if !colorNear(frost.Color{R: edge.R, G: edge.G, B: edge.B, A: 1}, frost.RGB(1, 0, 0), 1e-4) {
		t.Errorf("edge color = %v, want pure red", edge)
	}
	if far := dst.Pixel(15, 0); far.A > 0.01 {
		t.Errorf("far pixel alpha = %v, want ~0", far.A)
	}
}

func TestCPUKawaseRoundTripPreservesMean(t *testing.T) {
	tests := []struct {
		name string
		src  *frost.Pixmap
		tol  float32
	}{
		{"flat", filled(64, 48, frost.Color{R: 0.2, G: 0.4, B: 0.8, A: 1}), 1e-4},
		{"gradient", gradient(64, 48), 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCPU(t)
			w, h := tt.src.Width(), tt.src.Height()
			const distance = 1.0

			down := newTarget(t, target.Halve(w), target.Halve(h), frost.FormatRGBA32F)
			if err := e.Execute(&Descriptor{
				Program: ProgramKawaseDown, Source: tt.src, Destination: down,
				HalfPixel: kernel.HalfPixel(distance, w, h),
			}); err != nil {
				t.Fatal(err)
			}

			up := newTarget(t, w, h, frost.FormatRGBA32F)
			if err := e.Execute(&Descriptor{
				Program: ProgramKawaseUp, Source: down.Pixmap, Destination: up,
				HalfPixel: kernel.HalfPixel(distance, down.Width(), down.Height()),
			}); err != nil {
				t.Fatal(err)
			}

			if got, want := up.Mean(), tt.src.Mean(); !colorNear(got, want, tt.tol) {
				t.Errorf("mean after down/up = %v, want %v", got, want)
			}
		})
	}
}

func TestCPUDitherProgram(t *testing.T) {
	e := newCPU(t)
	for _, c := range []frost.Color{frost.Black, frost.White} {
		src := filled(16, 16, c)
		dst := newTarget(t, 16, 16, frost.FormatRGBA8)
		if err := e.Execute(&Descriptor{Program: ProgramDither, Source: src, Destination: dst, Seed: dither.DefaultSeed}); err != nil {
			t.Fatal(err)
		}
		for y := range 16 {
			for x := range 16 {
				if got := dst.Pixel(x, y); got != c {
					t.Fatalf("dithered %v at (%d, %d) = %v, want unchanged", c, x, y, got)
				}
			}
		}
	}

	// Mid-gray values between quantization levels come out as a mix of
	// the two neighbouring levels rather than one flat band.
	src := filled(32, 32, frost.Gray(100.4/255))
	dst := newTarget(t, 32, 32, frost.FormatRGBA8)
	if err := e.Execute(&Descriptor{Program: ProgramDither, Source: src, Destination: dst, Seed: dither.DefaultSeed}); err != nil {
		t.Fatal(err)
	}
	levels := make(map[float32]int)
	for y := range 32 {
		for x := range 32 {
			levels[dst.Pixel(x, y).R]++
		}
	}
	if len(levels) < 2 {
		t.Errorf("dither produced %d distinct levels, want at least 2", len(levels))
	}
}

func TestCPUResolveAndForget(t *testing.T) {
	e := newCPU(t)
	if err := e.Resolve(frost.NewPixmap(1, 1)); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
	e.Forget(nil)
}

func BenchmarkCPUGaussian(b *testing.B) {
	e := NewCPUExecutor(0)
	defer e.Close()
	pool := target.New(target.Config{})
	defer pool.Close()

	src := gradient(512, 512)
	dst, _ := pool.Acquire(target.Desc{Width: 512, Height: 512})
	d := &Descriptor{
		Program: ProgramGaussian, Source: src, Destination: dst,
		Direction: [2]float32{1, 0}, Weights: kernel.Gaussian(17),
	}
	b.ResetTimer()
	for range b.N {
		_ = e.Execute(d)
	}
}
