//go:build !nogpu

// Package gpu runs frost passes as wgpu/hal compute dispatches. Images
// live in storage buffers of vec4<f32> texels; passes recorded between two
// Resolve calls go out in a single submission.
package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/pass"
	"github.com/gogpu/frost/internal/shader"
	"github.com/gogpu/frost/internal/target"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// texelBytes is the size of one vec4<f32> texel in a storage buffer.
const texelBytes = 16

var (
	// ErrNoAdapter is returned when no GPU adapter can be opened.
	ErrNoAdapter = errors.New("gpu: no adapter available")

	// ErrClosed is returned when using a closed executor.
	ErrClosed = errors.New("gpu: executor closed")
)

// halProvider is the optional side of a device provider that exposes the
// HAL device and queue directly.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// imageBuffer is the device copy of one pixmap.
type imageBuffer struct {
	buf    hal.Buffer
	size   uint64
	width  int
	height int
}

// Executor implements pass.Executor on a HAL device.
type Executor struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool
	adapter  string

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	modules    map[pass.Program]hal.ShaderModule
	pipelines  map[pass.Program]hal.ComputePipeline

	// resident maps target pixmaps to their device buffers.
	resident map[*frost.Pixmap]*imageBuffer

	encoder  hal.CommandEncoder
	encoding bool
	pending  int

	// transient resources, and target buffers forgotten mid-recording,
	// are destroyed after the next submission.
	transientBuffers []hal.Buffer
	transientGroups  []hal.BindGroup

	closed bool
}

var _ pass.Executor = (*Executor)(nil)

// New opens the first discrete or integrated Vulkan adapter, falling
// back to any adapter.
func New() (*Executor, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not registered", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	e := newExecutor(openDev.Device, openDev.Queue, selected.Info.Name)
	e.instance = instance
	if err := e.createPipelines(); err != nil {
		e.destroyPipelines()
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("gpu: create pipelines: %w", err)
	}
	frost.Logger().Info("gpu: executor initialized", "adapter", e.adapter)
	return e, nil
}

// NewFromProvider shares the device of a host application. The provider
// must also expose HalDevice() and HalQueue() returning hal.Device and
// hal.Queue. The shared device is not destroyed by Close.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Executor, error) {
	if provider == nil {
		return nil, fmt.Errorf("gpu: nil device provider")
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	e := newExecutor(device, queue, provider.AdapterInfo().Name)
	e.external = true
	if err := e.createPipelines(); err != nil {
		e.destroyPipelines()
		return nil, fmt.Errorf("gpu: create pipelines with shared device: %w", err)
	}
	frost.Logger().Info("gpu: executor using shared device", "adapter", e.adapter)
	return e, nil
}

func newExecutor(device hal.Device, queue hal.Queue, adapter string) *Executor {
	return &Executor{
		device:    device,
		queue:     queue,
		adapter:   adapter,
		modules:   make(map[pass.Program]hal.ShaderModule),
		pipelines: make(map[pass.Program]hal.ComputePipeline),
		resident:  make(map[*frost.Pixmap]*imageBuffer),
	}
}

// Adapter returns the adapter name.
func (e *Executor) Adapter() string { return e.adapter }

func (e *Executor) createPipelines() error {
	layout, err := e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "frost_pass_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: shader.BindingParams, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: shader.BindingSource, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: shader.BindingDest, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: shader.BindingWeights, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	e.bindLayout = layout

	pipeLayout, err := e.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "frost_pass_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{e.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	e.pipeLayout = pipeLayout

	for _, p := range pass.Programs() {
		code, err := shader.SPIRV(p)
		if err != nil {
			return err
		}
		module, err := e.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  p.String(),
			Source: hal.ShaderSource{SPIRV: code},
		})
		if err != nil {
			return fmt.Errorf("create %s shader module: %w", p, err)
		}
		e.modules[p] = module

		pipeline, err := e.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label: p.String(), Layout: e.pipeLayout,
			Compute: hal.ComputeState{Module: module, EntryPoint: shader.EntryPoint},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", p, err)
		}
		e.pipelines[p] = pipeline
	}
	return nil
}

func (e *Executor) destroyPipelines() {
	if e.device == nil {
		return
	}
	for p, pipeline := range e.pipelines {
		e.device.DestroyComputePipeline(pipeline)
		delete(e.pipelines, p)
	}
	for p, module := range e.modules {
		e.device.DestroyShaderModule(module)
		delete(e.modules, p)
	}
	if e.pipeLayout != nil {
		e.device.DestroyPipelineLayout(e.pipeLayout)
		e.pipeLayout = nil
	}
	if e.bindLayout != nil {
		e.device.DestroyBindGroupLayout(e.bindLayout)
		e.bindLayout = nil
	}
}

// Execute records d into the open command buffer. Sources that are not
// pool targets are uploaded first.
func (e *Executor) Execute(d *pass.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	src, err := e.sourceBuffer(d.Source)
	if err != nil {
		return err
	}
	dst, err := e.residentBuffer(d.Destination.Pixmap)
	if err != nil {
		return err
	}

	params, err := e.transientBuffer("params", d.Uniforms().Bytes(), gputypes.BufferUsageUniform)
	if err != nil {
		return err
	}
	weights := d.Weights.Floats()
	if len(weights) == 0 {
		weights = []float32{0}
	}
	weightBuf, err := e.transientBuffer("weights", float32Bytes(weights), gputypes.BufferUsageStorage)
	if err != nil {
		return err
	}

	group, err := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  d.Label,
		Layout: e.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: shader.BindingParams, Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Size: pass.UniformSize}},
			{Binding: shader.BindingSource, Resource: gputypes.BufferBinding{Buffer: src.buf.NativeHandle(), Size: src.size}},
			{Binding: shader.BindingDest, Resource: gputypes.BufferBinding{Buffer: dst.buf.NativeHandle(), Size: dst.size}},
			{Binding: shader.BindingWeights, Resource: gputypes.BufferBinding{Buffer: weightBuf.NativeHandle(), Size: uint64(len(weights) * 4)}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: %s: create bind group: %w", d.Label, err)
	}
	e.transientGroups = append(e.transientGroups, group)

	if err := e.beginLocked(); err != nil {
		return err
	}

	// The previous pass wrote src; make the writes visible to this one.
	e.encoder.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: src.buf,
		Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageStorage, NewUsage: gputypes.BufferUsageStorage},
	}})

	cp := e.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: d.Label})
	cp.SetPipeline(e.pipelines[d.Program])
	cp.SetBindGroup(0, group, nil)
	wx, wy := shader.Workgroups(dst.width, dst.height)
	cp.Dispatch(wx, wy, 1)
	cp.End()
	e.pending++

	frost.Logger().Debug("gpu: pass recorded", "pass", d.Label, "program", d.Program,
		"dst", d.Destination.Label(), "workgroups", [2]uint32{wx, wy})
	return nil
}

// Resolve submits recorded passes and copies pix back to host memory.
// Pixmaps the executor never wrote are left alone.
func (e *Executor) Resolve(pix *frost.Pixmap) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	ib, ok := e.resident[pix]
	if !ok {
		return e.submitLocked(nil, nil)
	}

	staging, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "frost_readback",
		Size:  ib.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create readback buffer: %w", err)
	}
	defer e.device.DestroyBuffer(staging)

	if err := e.submitLocked(ib, staging); err != nil {
		return err
	}

	mapping, err := e.device.MapBuffer(staging, 0, ib.size)
	if err != nil {
		return fmt.Errorf("gpu: map readback buffer: %w", err)
	}
	raw := unsafe.Slice((*byte)(mapping.Ptr), ib.size)
	data := pix.Data()
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return e.device.UnmapBuffer(staging)
}

// Forget destroys the device buffer backing a destroyed target. While
// passes are being recorded the buffer may still be bound by them, so it
// is destroyed after the next submission instead.
func (e *Executor) Forget(rt *target.RenderTarget) {
	if rt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ib, ok := e.resident[rt.Pixmap]
	if !ok {
		return
	}
	delete(e.resident, rt.Pixmap)
	if e.encoding {
		e.transientBuffers = append(e.transientBuffers, ib.buf)
		return
	}
	if e.device != nil {
		e.device.DestroyBuffer(ib.buf)
	}
}

// Close releases every device resource. A shared device stays open.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true

	if e.encoding {
		e.encoder.DiscardEncoding()
		e.encoding = false
	}
	if e.device != nil {
		_ = e.device.WaitIdle()
	}
	e.releaseTransientsLocked()
	if e.encoder != nil {
		e.encoder.Destroy()
		e.encoder = nil
	}
	for pix, ib := range e.resident {
		e.device.DestroyBuffer(ib.buf)
		delete(e.resident, pix)
	}
	e.destroyPipelines()

	if !e.external {
		if e.device != nil {
			e.device.Destroy()
		}
		if e.instance != nil {
			e.instance.Destroy()
		}
	}
	e.device = nil
	e.queue = nil
	e.instance = nil
}

func (e *Executor) beginLocked() error {
	if e.encoding {
		return nil
	}
	if e.encoder == nil {
		enc, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frost_frame"})
		if err != nil {
			return fmt.Errorf("gpu: create command encoder: %w", err)
		}
		e.encoder = enc
	}
	if err := e.encoder.BeginEncoding("frost_frame"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	e.encoding = true
	return nil
}

// submitLocked ends the open command buffer, optionally appending a copy
// of ib into staging, submits it and waits for completion.
func (e *Executor) submitLocked(ib *imageBuffer, staging hal.Buffer) error {
	if ib != nil {
		if err := e.beginLocked(); err != nil {
			return err
		}
		e.encoder.TransitionBuffers([]hal.BufferBarrier{{
			Buffer: ib.buf,
			Usage:  hal.BufferUsageTransition{OldUsage: gputypes.BufferUsageStorage, NewUsage: gputypes.BufferUsageCopySrc},
		}})
		e.encoder.CopyBufferToBuffer(ib.buf, staging, []hal.BufferCopy{{Size: ib.size}})
	}
	if !e.encoding {
		return nil
	}

	cmd, err := e.encoder.EndEncoding()
	e.encoding = false
	if err != nil {
		e.releaseTransientsLocked()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer func() {
		e.device.FreeCommandBuffer(cmd)
		e.encoder.ResetAll([]hal.CommandBuffer{cmd})
		e.releaseTransientsLocked()
	}()

	if _, err := e.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	if err := e.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpu: wait: %w", err)
	}
	frost.Logger().Debug("gpu: submitted", "passes", e.pending)
	e.pending = 0
	return nil
}

func (e *Executor) releaseTransientsLocked() {
	for _, g := range e.transientGroups {
		e.device.DestroyBindGroup(g)
	}
	for _, b := range e.transientBuffers {
		e.device.DestroyBuffer(b)
	}
	e.transientGroups = e.transientGroups[:0]
	e.transientBuffers = e.transientBuffers[:0]
}

// sourceBuffer returns the device copy of a pass input. Pool targets are
// already resident; anything else is uploaded for this submission.
func (e *Executor) sourceBuffer(pix *frost.Pixmap) (*imageBuffer, error) {
	if ib, ok := e.resident[pix]; ok {
		return ib, nil
	}
	buf, err := e.transientBuffer("source", float32Bytes(pix.Data()), gputypes.BufferUsageStorage)
	if err != nil {
		return nil, err
	}
	return &imageBuffer{buf: buf, size: imageSize(pix), width: pix.Width(), height: pix.Height()}, nil
}

func (e *Executor) residentBuffer(pix *frost.Pixmap) (*imageBuffer, error) {
	if ib, ok := e.resident[pix]; ok {
		return ib, nil
	}
	size := imageSize(pix)
	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "frost_target",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create target buffer: %w", err)
	}
	ib := &imageBuffer{buf: buf, size: size, width: pix.Width(), height: pix.Height()}
	e.resident[pix] = ib
	return ib, nil
}

func (e *Executor) transientBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "frost_" + label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	if err := e.queue.WriteBuffer(buf, 0, data); err != nil {
		e.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("gpu: write %s buffer: %w", label, err)
	}
	e.transientBuffers = append(e.transientBuffers, buf)
	return buf, nil
}

func imageSize(pix *frost.Pixmap) uint64 {
	return uint64(pix.Width()) * uint64(pix.Height()) * texelBytes //nolint:gosec // non-negative sizes
}

func float32Bytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}
