// Package pass defines one full-screen pipeline stage (a Descriptor), the
// Executor contract that runs it, and the CPU reference executor.
package pass

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/kernel"
	"github.com/gogpu/frost/internal/target"
)

// ErrInvalidDescriptor is returned for a descriptor that violates the
// executor's preconditions.
var ErrInvalidDescriptor = errors.New("pass: invalid descriptor")

// Program selects the fragment program a pass runs.
type Program uint8

const (
	// ProgramGaussian is one direction of the separable Gaussian.
	ProgramGaussian Program = iota

	// ProgramKawaseDown is the 5-tap dual-filter downsample.
	ProgramKawaseDown

	// ProgramKawaseUp is the 8-tap dual-filter upsample.
	ProgramKawaseUp

	// ProgramDither adds bounded noise before quantization.
	ProgramDither

	programCount
)

// String returns the program name.
func (p Program) String() string {
	switch p {
	case ProgramGaussian:
		return "gaussian"
	case ProgramKawaseDown:
		return "kawase-down"
	case ProgramKawaseUp:
		return "kawase-up"
	case ProgramDither:
		return "dither"
	default:
		return fmt.Sprintf("Program(%d)", p)
	}
}

// Programs lists every program, in declaration order.
func Programs() []Program {
	out := make([]Program, programCount)
	for i := range out {
		out[i] = Program(i)
	}
	return out
}

// Descriptor is one pass: read Source, run Program, overwrite Destination.
// It is immutable once handed to an executor.
type Descriptor struct {
	Label   string
	Program Program

	Source      *frost.Pixmap
	Destination *target.RenderTarget

	// Direction is the Gaussian tap step in source texels.
	Direction [2]float32

	// HalfPixel is the Kawase tap offset in normalized source coordinates.
	HalfPixel [2]float32

	// Weights is the one-sided Gaussian table.
	Weights kernel.Weights

	// Seed feeds the dither hash.
	Seed uint32

	// Diagonal marks Gaussian passes sampling along rotated axes.
	Diagonal bool

	Address frost.AddressMode
}

// Validate checks the executor preconditions.
func (d *Descriptor) Validate() error {
	switch {
	case d == nil:
		return fmt.Errorf("%w: nil", ErrInvalidDescriptor)
	case d.Program >= programCount:
		return fmt.Errorf("%w: %s: unknown program %d", ErrInvalidDescriptor, d.Label, d.Program)
	case d.Source == nil:
		return fmt.Errorf("%w: %s: nil source", ErrInvalidDescriptor, d.Label)
	case d.Destination == nil || d.Destination.Pixmap == nil:
		return fmt.Errorf("%w: %s: nil destination", ErrInvalidDescriptor, d.Label)
	case d.Destination.Destroyed() || !d.Destination.Acquired():
		return fmt.Errorf("%w: %s: destination %s not acquired", ErrInvalidDescriptor, d.Label, d.Destination.Label())
	case d.Source == d.Destination.Pixmap:
		return fmt.Errorf("%w: %s: source and destination alias", ErrInvalidDescriptor, d.Label)
	case d.Source.Width() == 0 || d.Source.Height() == 0:
		return fmt.Errorf("%w: %s: empty source", ErrInvalidDescriptor, d.Label)
	case d.Program == ProgramGaussian && len(d.Weights) == 0:
		return fmt.Errorf("%w: %s: gaussian pass without weights", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// Uniform flags.
const (
	FlagQuantize8 uint32 = 1 << iota
	FlagUpsample
	FlagDiagonal
	FlagClampToBorder
)

// UniformSize is the byte size of the uniform block, a multiple of 16.
const UniformSize = 48

// Uniforms is the per-pass parameter block shared with the WGSL programs.
// Field order and padding match the Params struct in the shaders.
type Uniforms struct {
	SrcSize    [2]uint32
	DstSize    [2]uint32
	Direction  [2]float32
	HalfPixel  [2]float32
	KernelSize uint32
	Flags      uint32
	Seed       uint32
}

// Uniforms derives the parameter block for the pass.
func (d *Descriptor) Uniforms() Uniforms {
	u := Uniforms{
		SrcSize:    [2]uint32{uint32(d.Source.Width()), uint32(d.Source.Height())},                   //nolint:gosec // validated
		DstSize:    [2]uint32{uint32(d.Destination.Width()), uint32(d.Destination.Height())},         //nolint:gosec // validated
		Direction:  d.Direction,
		HalfPixel:  d.HalfPixel,
		KernelSize: uint32(d.Weights.Size()), //nolint:gosec // bounded by MaxKernelSize
		Seed:       d.Seed,
	}
	if d.Destination.Format().Quantized() {
		u.Flags |= FlagQuantize8
	}
	if d.Program == ProgramKawaseUp {
		u.Flags |= FlagUpsample
	}
	if d.Diagonal {
		u.Flags |= FlagDiagonal
	}
	if d.Address == frost.ClampToBorder {
		u.Flags |= FlagClampToBorder
	}
	return u
}

// Bytes encodes the block little-endian, padded to UniformSize.
func (u Uniforms) Bytes() []byte {
	b := make([]byte, UniformSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], u.SrcSize[0])
	le.PutUint32(b[4:], u.SrcSize[1])
	le.PutUint32(b[8:], u.DstSize[0])
	le.PutUint32(b[12:], u.DstSize[1])
	le.PutUint32(b[16:], math.Float32bits(u.Direction[0]))
	le.PutUint32(b[20:], math.Float32bits(u.Direction[1]))
	le.PutUint32(b[24:], math.Float32bits(u.HalfPixel[0]))
	le.PutUint32(b[28:], math.Float32bits(u.HalfPixel[1]))
	le.PutUint32(b[32:], u.KernelSize)
	le.PutUint32(b[36:], u.Flags)
	le.PutUint32(b[40:], u.Seed)
	return b
}
