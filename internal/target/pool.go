// Package target implements the render-target pool: an arena of image
// buffers indexed by (ladder level, ping/pong slot) with a memory budget,
// LRU eviction of idle targets and generation-tagged invalidation.
package target

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/frost"
)

// Pool errors.
var (
	// ErrBudgetExceeded is returned when an allocation cannot fit in the
	// memory budget even after evicting every idle target.
	ErrBudgetExceeded = errors.New("target: memory budget exceeded")

	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("target: pool closed")

	// ErrUnknownTarget is returned when releasing a target the pool does
	// not own (or has already destroyed).
	ErrUnknownTarget = errors.New("target: target not owned by pool")

	// ErrNotAcquired is returned when releasing a target twice.
	ErrNotAcquired = errors.New("target: target is not acquired")
)

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default render-target budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the minimum budget accepted from MaxMemoryMB.
	MinMemoryMB = 16
)

// Config holds configuration for creating a Pool.
type Config struct {
	// MaxMemoryMB is the budget in megabytes. Values below MinMemoryMB
	// select DefaultMaxMemoryMB.
	MaxMemoryMB int

	// BudgetBytes, when non-zero, overrides MaxMemoryMB with an exact
	// byte budget.
	BudgetBytes uint64

	// OnDestroy is called after a target is destroyed, outside the pool
	// lock. Executors holding device memory per target free it here.
	OnDestroy func(*RenderTarget)
}

// Stats contains pool usage statistics.
type Stats struct {
	BudgetBytes uint64
	UsedBytes   uint64
	Targets     int
	Acquired    int
	Free        int
	Generation  uint64
	Allocations uint64
	Reuses      uint64
	Evictions   uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Targets[%d live, %d acquired, %d free, %.1f/%d MB, gen %d, %d allocs, %d reuses, %d evictions]",
		s.Targets, s.Acquired, s.Free,
		float64(s.UsedBytes)/(1024*1024), s.BudgetBytes/(1024*1024),
		s.Generation, s.Allocations, s.Reuses, s.Evictions)
}

// Pool allocates and recycles render targets.
//
// The pool is driven by a single frame goroutine. The mutex only makes
// Stats, Invalidate and SetBudget safe to call from other goroutines.
type Pool struct {
	mu sync.Mutex

	budgetBytes uint64
	usedBytes   uint64

	generation uint64
	nextID     uint64

	// live holds every allocated target, acquired or free.
	live map[*RenderTarget]struct{}

	// free holds released targets of the current generation
	// (front = most recently released).
	free *list.List

	onDestroy func(*RenderTarget)

	allocations uint64
	reuses      uint64
	evictions   uint64

	closed bool
}

// New creates a pool.
func New(cfg Config) *Pool {
	budget := cfg.BudgetBytes
	if budget == 0 {
		mb := cfg.MaxMemoryMB
		if mb < MinMemoryMB {
			mb = DefaultMaxMemoryMB
		}
		budget = uint64(mb) * 1024 * 1024 //nolint:gosec // bounded by MinMemoryMB
	}
	return &Pool{
		budgetBytes: budget,
		live:        make(map[*RenderTarget]struct{}),
		free:        list.New(),
		onDestroy:   cfg.OnDestroy,
	}
}

// Acquire returns a target of exactly d's size and format that no pass is
// using. A released target with the same (level, slot) is preferred, then
// any released target of the same size and format. Otherwise a new target
// is allocated, evicting idle targets if the budget requires it.
func (p *Pool) Acquire(d Desc) (*RenderTarget, error) {
	d = d.normalize()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if t := p.takeFreeLocked(d); t != nil {
		t.desc = d
		t.acquired = true
		p.reuses++
		p.mu.Unlock()
		frost.Logger().Debug("target: reuse", "target", t.Label(), "id", t.id)
		return t, nil
	}

	need := d.SizeBytes()
	evicted, err := p.evictLocked(need)
	if err != nil {
		p.mu.Unlock()
		p.notifyDestroyed(evicted)
		frost.Logger().Warn("target: allocation failed", "target", d.Label(),
			"width", d.Width, "height", d.Height, "err", err)
		return nil, err
	}

	p.nextID++
	t := &RenderTarget{
		Pixmap:     frost.NewPixmap(d.Width, d.Height),
		id:         p.nextID,
		desc:       d,
		generation: p.generation,
		sizeBytes:  need,
		acquired:   true,
	}
	p.live[t] = struct{}{}
	p.usedBytes += need
	p.allocations++
	p.mu.Unlock()

	p.notifyDestroyed(evicted)
	frost.Logger().Debug("target: allocate", "target", t.Label(), "id", t.id,
		"width", d.Width, "height", d.Height, "format", d.Format, "bytes", need)
	return t, nil
}

// Release returns a target to the pool. Targets from an invalidated
// generation are destroyed instead of recycled.
func (p *Pool) Release(t *RenderTarget) error {
	if t == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if _, ok := p.live[t]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrUnknownTarget, t.id)
	}
	if !t.acquired {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s (id %d)", ErrNotAcquired, t.Label(), t.id)
	}
	t.acquired = false

	if t.generation != p.generation {
		p.destroyLocked(t)
		p.mu.Unlock()
		p.notifyDestroyed([]*RenderTarget{t})
		return nil
	}

	t.element = p.free.PushFront(t)
	p.mu.Unlock()
	return nil
}

// Invalidate starts a new generation. Idle targets are destroyed now;
// acquired targets are destroyed when released. Call it whenever the
// ladder shape changes so that one run never mixes targets produced under
// two configurations.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.generation++
	var destroyed []*RenderTarget
	for e := p.free.Front(); e != nil; e = p.free.Front() {
		t := e.Value.(*RenderTarget)
		p.destroyLocked(t)
		destroyed = append(destroyed, t)
	}
	gen := p.generation
	p.mu.Unlock()

	p.notifyDestroyed(destroyed)
	frost.Logger().Debug("target: invalidate", "generation", gen, "destroyed", len(destroyed))
}

// Generation returns the current generation.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// SetBudget updates the budget in bytes, evicting idle targets if the pool
// is now over it. Acquired targets are never evicted.
func (p *Pool) SetBudget(bytes uint64) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.budgetBytes = bytes
	evicted, err := p.evictLocked(0)
	p.mu.Unlock()

	p.notifyDestroyed(evicted)
	return err
}

// Stats returns current usage statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	acquired := 0
	for t := range p.live {
		if t.acquired {
			acquired++
		}
	}
	return Stats{
		BudgetBytes: p.budgetBytes,
		UsedBytes:   p.usedBytes,
		Targets:     len(p.live),
		Acquired:    acquired,
		Free:        p.free.Len(),
		Generation:  p.generation,
		Allocations: p.allocations,
		Reuses:      p.reuses,
		Evictions:   p.evictions,
	}
}

// Close destroys every target. The pool must not be used afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	destroyed := make([]*RenderTarget, 0, len(p.live))
	for t := range p.live {
		destroyed = append(destroyed, t)
	}
	for _, t := range destroyed {
		p.destroyLocked(t)
	}
	p.closed = true
	p.mu.Unlock()

	p.notifyDestroyed(destroyed)
}

// takeFreeLocked removes and returns the best idle match for d.
func (p *Pool) takeFreeLocked(d Desc) *RenderTarget {
	var fallback *list.Element
	for e := p.free.Front(); e != nil; e = e.Next() {
		t := e.Value.(*RenderTarget)
		if !t.desc.compatible(d) {
			continue
		}
		if t.desc.Level == d.Level && t.desc.Slot == d.Slot {
			p.free.Remove(e)
			t.element = nil
			return t
		}
		if fallback == nil {
			fallback = e
		}
	}
	if fallback == nil {
		return nil
	}
	t := fallback.Value.(*RenderTarget)
	p.free.Remove(fallback)
	t.element = nil
	return t
}

// evictLocked destroys least recently released targets until need more
// bytes fit. It returns the destroyed targets for notification.
func (p *Pool) evictLocked(need uint64) ([]*RenderTarget, error) {
	if need > p.budgetBytes {
		return nil, fmt.Errorf("%w: target needs %d bytes, budget is %d bytes",
			ErrBudgetExceeded, need, p.budgetBytes)
	}

	var evicted []*RenderTarget
	for p.usedBytes+need > p.budgetBytes {
		e := p.free.Back()
		if e == nil {
			break
		}
		t := e.Value.(*RenderTarget)
		p.destroyLocked(t)
		p.evictions++
		evicted = append(evicted, t)
		frost.Logger().Debug("target: evict", "target", t.Label(), "id", t.id)
	}

	if p.usedBytes+need > p.budgetBytes {
		return evicted, fmt.Errorf("%w: need %d bytes, %d of %d in use by acquired targets",
			ErrBudgetExceeded, need, p.usedBytes, p.budgetBytes)
	}
	return evicted, nil
}

// destroyLocked forgets a target. Caller must hold mu.
func (p *Pool) destroyLocked(t *RenderTarget) {
	if t.element != nil {
		p.free.Remove(t.element)
		t.element = nil
	}
	if _, ok := p.live[t]; !ok {
		return
	}
	delete(p.live, t)
	p.usedBytes -= t.sizeBytes
	t.acquired = false
	t.destroyed = true
}

func (p *Pool) notifyDestroyed(ts []*RenderTarget) {
	if p.onDestroy == nil {
		return
	}
	for _, t := range ts {
		p.onDestroy(t)
	}
}
