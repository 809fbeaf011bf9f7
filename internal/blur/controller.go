package blur

import (
	"errors"
	"fmt"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/kernel"
	"github.com/gogpu/frost/internal/pass"
	"github.com/gogpu/frost/internal/target"
)

var (
	// ErrStaleTarget is returned if a run would mix targets from two pool
	// generations. It indicates a bug, not a resource problem.
	ErrStaleTarget = errors.New("blur: target from a stale generation")

	// ErrEmptySource is returned by Run for a nil or zero-area source.
	ErrEmptySource = errors.New("blur: nil or empty source")
)

// runKey is the part of the configuration that shapes the target ladder.
// Dither does not change the ladder and is left out.
type runKey struct {
	algorithm frost.Algorithm
	kernel    int
	radius    float32
	layers    int
	diagonal  bool
	width     int
	height    int
	format    frost.Format
}

// Controller runs the blur pipeline. It is driven by one goroutine.
type Controller struct {
	pool   *target.Pool
	exec   pass.Executor
	format frost.Format
	seed   uint32

	key    runKey
	hasKey bool
}

// New creates a controller over a pool and executor.
func New(pool *target.Pool, exec pass.Executor, format frost.Format, seed uint32) *Controller {
	return &Controller{pool: pool, exec: exec, format: format, seed: seed}
}

// Result is the output of a run. Image stays valid until Release.
type Result struct {
	Image *frost.Pixmap

	// Passes is the number of passes the run issued.
	Passes int

	rt   *target.RenderTarget
	pool *target.Pool
}

// Release returns the result's target to the pool. A pass-through result
// owns nothing and releasing it is a no-op.
func (r *Result) Release() error {
	if r == nil || r.rt == nil {
		return nil
	}
	rt := r.rt
	r.rt = nil
	return r.pool.Release(rt)
}

// Run blurs src under cfg. A degenerate configuration returns src itself,
// untouched. Any allocation failure releases every target taken so far
// and is returned unchanged for the caller to skip the frame.
func (c *Controller) Run(src *frost.Pixmap, cfg frost.Config) (*Result, error) {
	if src == nil || src.Width() == 0 || src.Height() == 0 {
		return nil, ErrEmptySource
	}
	cfg = cfg.Normalize()
	if cfg.Degenerate() {
		return &Result{Image: src}, nil
	}

	c.refreshGeneration(cfg, src.Width(), src.Height())
	gen := c.pool.Generation()

	stages := Plan(cfg, src.Width(), src.Height(), c.format)
	last := lastUses(stages)
	outputs := make([]*target.RenderTarget, len(stages))

	releaseAll := func() {
		for i, rt := range outputs {
			if rt != nil {
				_ = c.pool.Release(rt)
				outputs[i] = nil
			}
		}
	}

	var weights kernel.Weights
	if cfg.Algorithm == frost.AlgorithmGaussian {
		weights = kernel.Cached(cfg.KernelSize)
	}

	for j, st := range stages {
		rt, err := c.pool.Acquire(st.Output)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("blur: %s: %w", st.Label, err)
		}
		outputs[j] = rt
		if rt.Generation() != gen {
			releaseAll()
			return nil, fmt.Errorf("%w: %s has generation %d, run uses %d", ErrStaleTarget, rt.Label(), rt.Generation(), gen)
		}

		source := src
		if st.Input != InputSource {
			source = outputs[st.Input].Pixmap
		}

		d := &pass.Descriptor{
			Label:       st.Label,
			Program:     st.Program,
			Source:      source,
			Destination: rt,
			Direction:   st.Direction,
			Diagonal:    st.Diagonal,
			Address:     frost.ClampToEdge,
		}
		switch st.Program {
		case pass.ProgramGaussian:
			d.Weights = weights
		case pass.ProgramKawaseDown, pass.ProgramKawaseUp:
			d.HalfPixel = kernel.HalfPixel(st.Distance, source.Width(), source.Height())
		}

		if err := c.exec.Execute(d); err != nil {
			releaseAll()
			return nil, fmt.Errorf("blur: %s: %w", st.Label, err)
		}

		// Inputs whose last reader just ran are no longer needed.
		if st.Input != InputSource && last[st.Input] == j {
			if err := c.pool.Release(outputs[st.Input]); err != nil {
				releaseAll()
				return nil, err
			}
			outputs[st.Input] = nil
		}
	}

	final := outputs[len(outputs)-1]
	if err := c.exec.Resolve(final.Pixmap); err != nil {
		releaseAll()
		return nil, fmt.Errorf("blur: resolve: %w", err)
	}

	frost.Logger().Debug("blur: run", "config", cfg, "passes", len(stages), "output", final.Label())
	return &Result{Image: final.Pixmap, Passes: len(stages), rt: final, pool: c.pool}, nil
}

// Dither runs the dither pass over in and returns the dithered image.
// in is released once the pass has read it.
func (c *Controller) Dither(in *Result) (*Result, error) {
	src := in.Image
	rt, err := c.pool.Acquire(target.Desc{
		Level:  0,
		Slot:   target.SlotPing,
		Width:  src.Width(),
		Height: src.Height(),
		Format: c.format,
	})
	if err != nil {
		_ = in.Release()
		return nil, fmt.Errorf("blur: dither: %w", err)
	}

	d := &pass.Descriptor{
		Label:       "dither",
		Program:     pass.ProgramDither,
		Source:      src,
		Destination: rt,
		Seed:        c.seed,
		Address:     frost.ClampToEdge,
	}
	if err := c.exec.Execute(d); err != nil {
		_ = c.pool.Release(rt)
		_ = in.Release()
		return nil, fmt.Errorf("blur: dither: %w", err)
	}
	if err := in.Release(); err != nil {
		_ = c.pool.Release(rt)
		return nil, err
	}
	if err := c.exec.Resolve(rt.Pixmap); err != nil {
		_ = c.pool.Release(rt)
		return nil, fmt.Errorf("blur: dither resolve: %w", err)
	}
	return &Result{Image: rt.Pixmap, Passes: in.Passes + 1, rt: rt, pool: c.pool}, nil
}

// refreshGeneration invalidates pooled targets when the ladder shape
// changes, so one run never mixes targets from two configurations.
func (c *Controller) refreshGeneration(cfg frost.Config, w, h int) {
	key := runKey{
		algorithm: cfg.Algorithm,
		kernel:    cfg.KernelSize,
		radius:    cfg.Radius,
		layers:    cfg.Layers,
		diagonal:  cfg.Diagonal,
		width:     w,
		height:    h,
		format:    c.format,
	}
	if c.hasKey && key == c.key {
		return
	}
	if c.hasKey {
		c.pool.Invalidate()
		frost.Logger().Debug("blur: configuration changed, targets invalidated", "config", cfg)
	}
	c.key = key
	c.hasKey = true
}
