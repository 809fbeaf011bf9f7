package pass

import (
	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/target"
)

// Executor runs passes. Passes execute in issue order: every pixel of pass
// N is written before pass N+1 reads it. Within a pass, pixels are
// independent and run in no particular order.
type Executor interface {
	// Execute issues one pass. The destination is overwritten entirely.
	Execute(d *Descriptor) error

	// Resolve waits for all issued passes and makes p's host pixels
	// reflect its latest contents.
	Resolve(p *frost.Pixmap) error

	// Forget drops any device resources held for a destroyed target.
	Forget(t *target.RenderTarget)

	// Close releases the executor.
	Close()
}
