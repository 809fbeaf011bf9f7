// Package shader holds the WGSL compute programs that mirror the CPU pass
// executor, and compiles them to SPIR-V with naga.
package shader

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/frost/internal/pass"
)

//go:embed shaders/common.wgsl
var commonWGSL string

//go:embed shaders/gaussian.wgsl
var gaussianWGSL string

//go:embed shaders/kawase_down.wgsl
var kawaseDownWGSL string

//go:embed shaders/kawase_up.wgsl
var kawaseUpWGSL string

//go:embed shaders/dither.wgsl
var ditherWGSL string

// EntryPoint is the compute entry point of every program.
const EntryPoint = "main"

// WorkgroupSize is the edge of the square workgroup every program declares.
const WorkgroupSize = 8

// Binding slots shared by every program.
const (
	BindingParams  = 0
	BindingSource  = 1
	BindingDest    = 2
	BindingWeights = 3
)

var bodies = map[pass.Program]*string{
	pass.ProgramGaussian:   &gaussianWGSL,
	pass.ProgramKawaseDown: &kawaseDownWGSL,
	pass.ProgramKawaseUp:   &kawaseUpWGSL,
	pass.ProgramDither:     &ditherWGSL,
}

// Source returns the complete WGSL module for a program.
func Source(p pass.Program) (string, error) {
	body, ok := bodies[p]
	if !ok {
		return "", fmt.Errorf("shader: no program for %s", p)
	}
	return commonWGSL + "\n" + *body, nil
}

// Workgroups returns the dispatch size covering a w x h destination.
func Workgroups(w, h int) (uint32, uint32) {
	return uint32((w + WorkgroupSize - 1) / WorkgroupSize), uint32((h + WorkgroupSize - 1) / WorkgroupSize) //nolint:gosec // non-negative sizes
}

var (
	spirvMu    sync.Mutex
	spirvCache = make(map[pass.Program][]uint32)
)

// SPIRV compiles a program to SPIR-V words. Results are cached.
func SPIRV(p pass.Program) ([]uint32, error) {
	spirvMu.Lock()
	defer spirvMu.Unlock()
	if code, ok := spirvCache[p]; ok {
		return code, nil
	}

	src, err := Source(p)
	if err != nil {
		return nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %s: %w", p, err)
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	spirvCache[p] = code
	return code, nil
}
