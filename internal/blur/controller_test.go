package blur

import (
	"errors"
	"testing"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/dither"
	"github.com/gogpu/frost/internal/pass"
	"github.com/gogpu/frost/internal/target"
)

func newController(t *testing.T, cfg target.Config, format frost.Format) (*Controller, *target.Pool) {
	t.Helper()
	pool := target.New(cfg)
	exec := pass.NewCPUExecutor(2)
	t.Cleanup(func() {
		exec.Close()
		pool.Close()
	})
	return New(pool, exec, format, dither.DefaultSeed), pool
}

func checkerboard() *frost.Pixmap {
	p := frost.NewPixmap(2, 2)
	p.SetPixel(0, 0, frost.Black)
	p.SetPixel(1, 0, frost.White)
	p.SetPixel(0, 1, frost.White)
	p.SetPixel(1, 1, frost.Black)
	return p
}

func TestRunDegenerateIsPassThrough(t *testing.T) {
	for _, alg := range []frost.Algorithm{frost.AlgorithmGaussian, frost.AlgorithmKawase} {
		t.Run(alg.String(), func(t *testing.T) {
			c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
			src := checkerboard()
			want := append([]float32(nil), src.Data()...)

			res, err := c.Run(src, frost.Config{Algorithm: alg, KernelSize: 1, Radius: 3, Layers: 4})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			defer func() { _ = res.Release() }()

			if res.Image != src {
				t.Error("degenerate run did not return the source image")
			}
			if res.Passes != 0 {
				t.Errorf("Passes = %d, want 0", res.Passes)
			}
			for i, v := range src.Data() {
				if v != want[i] {
					t.Fatalf("source modified at %d: %v != %v", i, v, want[i])
				}
			}
			if s := pool.Stats(); s.Allocations != 0 {
				t.Errorf("Allocations = %d, want 0", s.Allocations)
			}
		})
	}
}

func TestRunEmptySource(t *testing.T) {
	tests := []struct {
		name string
		src  *frost.Pixmap
		cfg  frost.Config
	}{
		{"nil kawase", nil, kawaseConfig(2, 1)},
		{"zero width kawase", frost.NewPixmap(0, 5), kawaseConfig(2, 1)},
		{"zero height gaussian", frost.NewPixmap(5, 0), gaussianConfig(9, 1)},
		{"zero area degenerate", frost.NewPixmap(0, 0), kawaseConfig(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
			res, err := c.Run(tt.src, tt.cfg)
			if !errors.Is(err, ErrEmptySource) {
				t.Fatalf("Run() error = %v, want ErrEmptySource", err)
			}
			if res != nil {
				t.Error("Run() returned a result with an error")
			}
			if s := pool.Stats(); s.Allocations != 0 {
				t.Errorf("Allocations = %d, want 0", s.Allocations)
			}
		})
	}
}

func TestRunKawaseFlatGray(t *testing.T) {
	c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
	src := frost.NewPixmap(512, 512)
	src.Fill(frost.Gray(0.5))

	res, err := c.Run(src, kawaseConfig(4, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer func() { _ = res.Release() }()

	if res.Passes != 8 {
		t.Errorf("Passes = %d, want 8", res.Passes)
	}
	out := res.Image
	if out.Width() != 512 || out.Height() != 512 {
		t.Fatalf("output size = %dx%d, want 512x512", out.Width(), out.Height())
	}
	ref := out.Pixel(0, 0)
	if !colorNear(ref, frost.Gray(0.5), 1.0/255) {
		t.Errorf("output = %+v, want gray 0.5", ref)
	}
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			if got := out.Pixel(x, y); got != ref {
				t.Fatalf("Pixel(%d,%d) = %+v, want uniform %+v", x, y, got, ref)
			}
		}
	}

	// Only the final output is still held.
	if s := pool.Stats(); s.Acquired != 1 {
		t.Errorf("Acquired = %d, want 1", s.Acquired)
	}
}

func TestRunGaussianCheckerboard(t *testing.T) {
	c, _ := newController(t, target.Config{}, frost.FormatRGBA8)

	res, err := c.Run(checkerboard(), gaussianConfig(5, 1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer func() { _ = res.Release() }()

	out := res.Image
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			p := out.Pixel(x, y)
			if p.R <= 0 || p.R >= 1 {
				t.Errorf("Pixel(%d,%d).R = %v, want strictly inside (0,1)", x, y, p.R)
			}
			if p.A != 1 {
				t.Errorf("Pixel(%d,%d).A = %v, want 1", x, y, p.A)
			}
		}
	}

	// Sampling far outside the image repeats the edge texel.
	if got, want := out.Sample(-10, -10, frost.ClampToEdge), out.Pixel(0, 0); !colorNear(got, want, 1e-6) {
		t.Errorf("Sample(-10,-10) = %+v, want edge %+v", got, want)
	}
}

func TestRunReusesTargets(t *testing.T) {
	c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
	src := frost.NewPixmap(64, 48)
	src.Fill(frost.RGB(0.2, 0.4, 0.6))
	cfg := kawaseConfig(3, 1)

	run := func() {
		t.Helper()
		res, err := c.Run(src, cfg)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if err := res.Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
	}

	run()
	first := pool.Stats()
	// Up passes reuse same-sized down targets within the frame.
	if first.Allocations != 4 {
		t.Errorf("first frame Allocations = %d, want 4", first.Allocations)
	}

	run()
	run()
	s := pool.Stats()
	if s.Allocations != first.Allocations {
		t.Errorf("Allocations grew from %d to %d across frames", first.Allocations, s.Allocations)
	}
	if got := s.Reuses - first.Reuses; got != 12 {
		t.Errorf("Reuses over two frames = %d, want 12", got)
	}
	if s.Acquired != 0 {
		t.Errorf("Acquired = %d, want 0", s.Acquired)
	}
}

func TestRunInvalidatesOnConfigChange(t *testing.T) {
	c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
	src := frost.NewPixmap(32, 32)
	src.Fill(frost.Gray(0.3))

	run := func(cfg frost.Config) {
		t.Helper()
		res, err := c.Run(src, cfg)
		if err != nil {
			t.Fatalf("Run(%v) error = %v", cfg, err)
		}
		_ = res.Release()
	}

	cfg := kawaseConfig(2, 1)
	run(cfg)
	gen := pool.Generation()

	cfg.Dither = true
	run(cfg)
	if got := pool.Generation(); got != gen {
		t.Errorf("toggling dither changed generation %d -> %d", gen, got)
	}

	cfg.Layers = 3
	run(cfg)
	if got := pool.Generation(); got != gen+1 {
		t.Errorf("Generation = %d, want %d after layer change", got, gen+1)
	}
	if s := pool.Stats(); s.Free != 4 || s.Targets != 4 {
		t.Errorf("Free/Targets = %d/%d, want only the 4 targets of the new ladder", s.Free, s.Targets)
	}
}

func TestRunBudgetExceededReleasesAll(t *testing.T) {
	// Room for the downsample targets but not the full-size output.
	c, pool := newController(t, target.Config{BudgetBytes: 12 * 1024}, frost.FormatRGBA8)
	src := frost.NewPixmap(64, 64)
	src.Fill(frost.Gray(0.5))

	res, err := c.Run(src, kawaseConfig(2, 1))
	if !errors.Is(err, target.ErrBudgetExceeded) {
		t.Fatalf("Run() error = %v, want ErrBudgetExceeded", err)
	}
	if res != nil {
		t.Error("Run() returned a result with an error")
	}
	if s := pool.Stats(); s.Acquired != 0 {
		t.Errorf("Acquired = %d after failed run, want 0", s.Acquired)
	}

	// The pool is still usable once the budget allows the frame.
	if err := pool.SetBudget(1 << 20); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	res, err = c.Run(src, kawaseConfig(2, 1))
	if err != nil {
		t.Fatalf("Run() after raising budget error = %v", err)
	}
	_ = res.Release()
}

func TestDither(t *testing.T) {
	c, pool := newController(t, target.Config{}, frost.FormatRGBA8)
	src := frost.NewPixmap(64, 64)
	src.Fill(frost.Gray(0.5))

	blurred, err := c.Run(src, kawaseConfig(1, 1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res, err := c.Dither(blurred)
	if err != nil {
		t.Fatalf("Dither() error = %v", err)
	}
	defer func() { _ = res.Release() }()

	if res.Passes != 3 {
		t.Errorf("Passes = %d, want 3", res.Passes)
	}
	if s := pool.Stats(); s.Acquired != 1 {
		t.Errorf("Acquired = %d, want only the dither output", s.Acquired)
	}

	base := blurred.Image.Pixel(0, 0).R
	changed := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			r := res.Image.Pixel(x, y).R
			if absf(r-base) > 1.0/255+1e-6 {
				t.Fatalf("Pixel(%d,%d).R = %v, more than one level from %v", x, y, r, base)
			}
			if r != base {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("dither changed no pixels")
	}
}

func TestDitherPassThrough(t *testing.T) {
	c, _ := newController(t, target.Config{}, frost.FormatRGBA8)
	src := frost.NewPixmap(16, 16)
	src.Fill(frost.Gray(0.25))

	blurred, err := c.Run(src, kawaseConfig(0, 1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	res, err := c.Dither(blurred)
	if err != nil {
		t.Fatalf("Dither() error = %v", err)
	}
	defer func() { _ = res.Release() }()

	if res.Passes != 1 {
		t.Errorf("Passes = %d, want 1", res.Passes)
	}
	if res.Image == src {
		t.Error("dither wrote into the source image")
	}
}

func colorNear(a, b frost.Color, tol float32) bool {
	return absf(a.R-b.R) <= tol && absf(a.G-b.G) <= tol && absf(a.B-b.B) <= tol && absf(a.A-b.A) <= tol
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
