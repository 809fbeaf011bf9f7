//go:build nogpu

package effect

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/frost/internal/pass"
)

var errGPUDisabled = errors.New("effect: built with nogpu")

func newGPUExecutor(gpucontext.DeviceProvider) (pass.Executor, string, error) {
	return nil, "", errGPUDisabled
}
