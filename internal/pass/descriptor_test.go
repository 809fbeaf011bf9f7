package pass

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/kernel"
	"github.com/gogpu/frost/internal/target"
)

func TestDescriptorValidate(t *testing.T) {
	src := filled(4, 4, frost.White)
	dst := newTarget(t, 4, 4, frost.FormatRGBA8)

	pool := target.New(target.Config{})
	released, _ := pool.Acquire(target.Desc{Width: 4, Height: 4})
	_ = pool.Release(released)
	t.Cleanup(pool.Close)

	tests := []struct {
		name    string
		d       *Descriptor
		wantErr bool
	}{
		{"valid kawase", &Descriptor{Program: ProgramKawaseDown, Source: src, Destination: dst}, false},
		{"nil descriptor", nil, true},
		{"nil source", &Descriptor{Program: ProgramKawaseDown, Destination: dst}, true},
		{"nil destination", &Descriptor{Program: ProgramKawaseDown, Source: src}, true},
		{"released destination", &Descriptor{Program: ProgramKawaseDown, Source: src, Destination: released}, true},
		{"alias", &Descriptor{Program: ProgramKawaseDown, Source: dst.Pixmap, Destination: dst}, true},
		{"empty source", &Descriptor{Program: ProgramKawaseDown, Source: frost.NewPixmap(0, 3), Destination: dst}, true},
		{"gaussian without weights", &Descriptor{Program: ProgramGaussian, Source: src, Destination: dst}, true},
		{"gaussian with weights", &Descriptor{Program: ProgramGaussian, Source: src, Destination: dst, Weights: kernel.Gaussian(5)}, false},
		{"unknown program", &Descriptor{Program: Program(99), Source: src, Destination: dst}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("Validate() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestUniforms(t *testing.T) {
	src := filled(64, 32, frost.White)
	dst := newTarget(t, 128, 64, frost.FormatRGBA8)
	d := &Descriptor{
		Program:     ProgramKawaseUp,
		Source:      src,
		Destination: dst,
		HalfPixel:   kernel.HalfPixel(0.5, 64, 32),
		Seed:        7,
		Address:     frost.ClampToBorder,
	}
	u := d.Uniforms()
	if u.SrcSize != [2]uint32{64, 32} || u.DstSize != [2]uint32{128, 64} {
		t.Errorf("sizes = %v -> %v", u.SrcSize, u.DstSize)
	}
	wantFlags := FlagQuantize8 | FlagUpsample | FlagClampToBorder
	if u.Flags != wantFlags {
		t.Errorf("Flags = %b, want %b", u.Flags, wantFlags)
	}

	b := u.Bytes()
	if len(b) != UniformSize || UniformSize%16 != 0 {
		t.Fatalf("len(Bytes()) = %d, want %d (multiple of 16)", len(b), UniformSize)
	}
	le := binary.LittleEndian
	if got := le.Uint32(b[0:]); got != 64 {
		t.Errorf("src width bytes = %d, want 64", got)
	}
	if got := math.Float32frombits(le.Uint32(b[24:])); got != 0.5/64 {
		t.Errorf("halfpixel.x bytes = %v, want %v", got, 0.5/64)
	}
	if got := le.Uint32(b[36:]); got != wantFlags {
		t.Errorf("flags bytes = %b, want %b", got, wantFlags)
	}
	if got := le.Uint32(b[40:]); got != 7 {
		t.Errorf("seed bytes = %d, want 7", got)
	}
}

func TestUniformsGaussian(t *testing.T) {
	src := filled(8, 8, frost.White)
	dst := newTarget(t, 8, 8, frost.FormatRGBA32F)
	d := &Descriptor{
		Program:     ProgramGaussian,
		Source:      src,
		Destination: dst,
		Direction:   [2]float32{0.7, 0.7},
		Weights:     kernel.Gaussian(9),
		Diagonal:    true,
	}
	u := d.Uniforms()
	if u.KernelSize != 9 {
		t.Errorf("KernelSize = %d, want 9", u.KernelSize)
	}
	if u.Flags != FlagDiagonal {
		t.Errorf("Flags = %b, want only FlagDiagonal", u.Flags)
	}
}

func TestProgramString(t *testing.T) {
	want := []string{"gaussian", "kawase-down", "kawase-up", "dither"}
	progs := Programs()
	if len(progs) != len(want) {
		t.Fatalf("Programs() = %v", progs)
	}
	for i, p := range progs {
		if p.String() != want[i] {
			t.Errorf("Program(%d).String() = %q, want %q", i, p.String(), want[i])
		}
	}
}
