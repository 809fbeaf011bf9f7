//go:build !nogpu

package effect

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/frost/internal/gpu"
	"github.com/gogpu/frost/internal/pass"
)

func newGPUExecutor(provider gpucontext.DeviceProvider) (pass.Executor, string, error) {
	if provider != nil {
		e, err := gpu.NewFromProvider(provider)
		if err != nil {
			return nil, "", err
		}
		return e, e.Adapter(), nil
	}
	e, err := gpu.New()
	if err != nil {
		return nil, "", err
	}
	return e, e.Adapter(), nil
}
