package pass

import (
	"testing"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/target"
)

// newTarget acquires a fresh target from a throwaway pool.
func newTarget(t *testing.T, w, h int, f frost.Format) *target.RenderTarget {
	t.Helper()
	p := target.New(target.Config{})
	t.Cleanup(p.Close)
	rt, err := p.Acquire(target.Desc{Width: w, Height: h, Format: f})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	return rt
}

func filled(w, h int, c frost.Color) *frost.Pixmap {
	p := frost.NewPixmap(w, h)
	p.Fill(c)
	return p
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
