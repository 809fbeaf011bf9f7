// Package effect is the frame driver of frost: it owns the render-target
// pool, the pass executor and the live configuration, and turns one
// source image into one blurred (and optionally dithered) image per
// Render call.
package effect

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/blur"
	"github.com/gogpu/frost/internal/dither"
	"github.com/gogpu/frost/internal/pass"
	"github.com/gogpu/frost/internal/target"
)

var (
	// ErrFrameSkipped wraps the resource failure that prevented a frame.
	// The configuration is left untouched and the next Render retries.
	ErrFrameSkipped = errors.New("effect: frame skipped")

	// ErrClosed is returned by Render after Close.
	ErrClosed = errors.New("effect: closed")

	// ErrNilSource is returned by Render for a nil or empty source.
	ErrNilSource = errors.New("effect: nil or empty source image")
)

// Stats reports frame and pool counters.
type Stats struct {
	Backend Backend
	Adapter string

	Frames        uint64
	SkippedFrames uint64
	Passes        uint64 // total passes issued
	LastPasses    int

	Targets     int
	TargetBytes uint64
	BudgetBytes uint64
	Generation  uint64
	Evictions   uint64
}

// Effect renders the blur and dither chain. HandleEvent and SetConfig may
// be called from any goroutine; Render calls are serialized.
type Effect struct {
	mu     sync.Mutex
	config frost.Config

	frameMu sync.Mutex
	pool    *target.Pool
	exec    pass.Executor
	ctrl    *blur.Controller
	backend Backend
	adapter string

	frames  uint64
	skipped uint64
	passes  uint64
	last    int
	closed  bool
}

// New creates an effect. Without options it runs the default
// configuration on the CPU with 8-bit targets.
func New(opts ...Option) (*Effect, error) {
	o := options{
		config:  frost.DefaultConfig(),
		backend: BackendCPU,
		format:  frost.FormatRGBA8,
		seed:    dither.DefaultSeed,
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Effect{config: o.config.Normalize(), backend: o.backend}

	if o.backend == BackendGPU {
		exec, adapter, err := newGPUExecutor(o.provider)
		if err != nil {
			frost.Logger().Warn("effect: GPU unavailable, falling back to CPU", "err", err)
			e.backend = BackendCPU
		} else {
			e.exec = exec
			e.adapter = adapter
		}
	}
	if e.exec == nil {
		e.exec = pass.NewCPUExecutor(o.workers)
	}

	e.pool = target.New(target.Config{
		MaxMemoryMB: o.budgetMB,
		OnDestroy:   e.exec.Forget,
	})
	e.ctrl = blur.New(e.pool, e.exec, o.format, o.seed)

	frost.Logger().Info("effect: created", "backend", e.backend, "adapter", e.adapter,
		"format", o.format, "config", e.config)
	return e, nil
}

// Config returns the current configuration.
func (e *Effect) Config() frost.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetConfig replaces the configuration. It is normalized.
func (e *Effect) SetConfig(cfg frost.Config) {
	cfg = cfg.Normalize()
	e.mu.Lock()
	e.config = cfg
	e.mu.Unlock()
	frost.Logger().Info("config", "config", cfg)
}

// HandleEvent applies one input event and returns the new configuration.
func (e *Effect) HandleEvent(ev frost.Event) frost.Config {
	e.mu.Lock()
	before := e.config
	e.config = e.config.Apply(ev)
	cfg := e.config
	e.mu.Unlock()

	if cfg != before {
		frost.Logger().Info("config", "event", ev, "config", cfg)
	}
	return cfg
}

// SetMemoryBudget changes the render-target budget, evicting idle
// targets if needed.
func (e *Effect) SetMemoryBudget(mb int) error {
	return e.pool.SetBudget(uint64(max(mb, 0)) * 1024 * 1024) //nolint:gosec // clamped non-negative
}

// Render runs one frame over src under a snapshot of the configuration.
// The returned pixmap belongs to the caller. src is never modified.
func (e *Effect) Render(src *frost.Pixmap) (*frost.Pixmap, error) {
	if src == nil || src.Width() == 0 || src.Height() == 0 {
		return nil, ErrNilSource
	}
	cfg := e.Config()

	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	res, err := e.ctrl.Run(src, cfg)
	if err == nil && cfg.Dither {
		res, err = e.ctrl.Dither(res)
	}
	if err != nil {
		e.skipped++
		frost.Logger().Error("effect: frame skipped", "config", cfg, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrFrameSkipped, err)
	}

	out := res.Image.Clone()
	if err := res.Release(); err != nil {
		return nil, err
	}

	e.frames++
	e.passes += uint64(res.Passes) //nolint:gosec // non-negative
	e.last = res.Passes
	return out, nil
}

// Stats returns the frame and pool counters.
func (e *Effect) Stats() Stats {
	ps := e.pool.Stats()
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return Stats{
		Backend:       e.backend,
		Adapter:       e.adapter,
		Frames:        e.frames,
		SkippedFrames: e.skipped,
		Passes:        e.passes,
		LastPasses:    e.last,
		Targets:       ps.Targets,
		TargetBytes:   ps.UsedBytes,
		BudgetBytes:   ps.BudgetBytes,
		Generation:    ps.Generation,
		Evictions:     ps.Evictions,
	}
}

// Backend returns the backend in use after any fallback.
func (e *Effect) Backend() Backend {
	return e.backend
}

// Close releases every target and the executor.
func (e *Effect) Close() {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.pool.Close()
	e.exec.Close()
}
