package effect

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/frost"
)

// Backend selects the pass executor.
type Backend uint8

const (
	// BackendCPU runs passes on a host worker pool.
	BackendCPU Backend = iota

	// BackendGPU runs passes as compute dispatches. If no adapter can be
	// opened the effect falls back to BackendCPU.
	BackendGPU
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendCPU:
		return "cpu"
	case BackendGPU:
		return "gpu"
	default:
		return fmt.Sprintf("Backend(%d)", b)
	}
}

// ParseBackend parses "cpu" or "gpu".
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu", "software":
		return BackendCPU, nil
	case "gpu":
		return BackendGPU, nil
	default:
		return BackendCPU, fmt.Errorf("effect: unknown backend %q", s)
	}
}

// Option configures an Effect during creation.
//
// Example:
//
//	fx, err := effect.New(
//		effect.WithBackend(effect.BackendGPU),
//		effect.WithMemoryBudget(64),
//	)
type Option func(*options)

type options struct {
	config   frost.Config
	backend  Backend
	provider gpucontext.DeviceProvider
	budgetMB int
	format   frost.Format
	seed     uint32
	workers  int
}

// WithConfig sets the initial configuration. It is normalized.
func WithConfig(cfg frost.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithBackend selects the executor backend.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithDeviceProvider shares the GPU device of a host application instead
// of opening a new one. It implies BackendGPU. The provider must also
// expose HalDevice() and HalQueue().
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
		o.backend = BackendGPU
	}
}

// WithMemoryBudget sets the render-target budget in megabytes.
func WithMemoryBudget(mb int) Option {
	return func(o *options) {
		o.budgetMB = mb
	}
}

// WithTargetFormat sets the intermediate render-target format. The default
// is FormatRGBA8, which quantizes after every pass like an 8-bit swapchain.
func WithTargetFormat(f frost.Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithSeed overrides the dither seed.
func WithSeed(seed uint32) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithWorkers sets the CPU worker count (0 means GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
