// Package blur is the blur pipeline controller: it turns the live
// configuration into a sequence of passes over pooled render targets and
// drives the executor through it once per frame.
package blur

import (
	"fmt"
	"math"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/internal/pass"
	"github.com/gogpu/frost/internal/target"
)

// InputSource marks a stage that reads the frame's source image.
const InputSource = -1

// UpsampleDistanceScale scales the Kawase distance on the way back up the
// ladder relative to the downsample distance.
const UpsampleDistanceScale = 0.5

// Stage is one planned pass. Input is InputSource or the index of an
// earlier stage whose output this stage reads.
type Stage struct {
	Label     string
	Program   pass.Program
	Input     int
	Output    target.Desc
	Direction [2]float32 // Gaussian tap step in texels
	Distance  float32    // Kawase distance; the half-pixel follows from the input size
	Diagonal  bool
}

// Plan returns the pass sequence for cfg over a w x h source. It is pure:
// the same inputs always give the same stages. A degenerate configuration
// plans no stages.
func Plan(cfg frost.Config, w, h int, format frost.Format) []Stage {
	cfg = cfg.Normalize()
	if cfg.Degenerate() || w <= 0 || h <= 0 {
		return nil
	}
	switch cfg.Algorithm {
	case frost.AlgorithmGaussian:
		return planGaussian(cfg, w, h, format)
	default:
		return planKawase(cfg, w, h, format)
	}
}

// planGaussian alternates a horizontal pass into the ping target and a
// vertical pass into the pong target, Layers times.
func planGaussian(cfg frost.Config, w, h int, format frost.Format) []Stage {
	first, second := gaussianAxes(cfg.Radius, cfg.Diagonal)

	stages := make([]Stage, 0, 2*cfg.Layers)
	input := InputSource
	for i := range cfg.Layers {
		stages = append(stages, Stage{
			Label:     fmt.Sprintf("gaussian[%d].h", i),
			Program:   pass.ProgramGaussian,
			Input:     input,
			Output:    target.Desc{Level: 0, Slot: target.SlotPing, Width: w, Height: h, Format: format},
			Direction: first,
			Diagonal:  cfg.Diagonal,
		})
		stages = append(stages, Stage{
			Label:     fmt.Sprintf("gaussian[%d].v", i),
			Program:   pass.ProgramGaussian,
			Input:     len(stages) - 1,
			Output:    target.Desc{Level: 0, Slot: target.SlotPong, Width: w, Height: h, Format: format},
			Direction: second,
			Diagonal:  cfg.Diagonal,
		})
		input = len(stages) - 1
	}
	return stages
}

// gaussianAxes returns the two perpendicular tap steps, scaled by radius.
// Diagonal sampling rotates both axes by 45 degrees.
func gaussianAxes(radius float32, diagonal bool) ([2]float32, [2]float32) {
	if !diagonal {
		return [2]float32{radius, 0}, [2]float32{0, radius}
	}
	d := radius * math.Sqrt2 / 2
	return [2]float32{d, d}, [2]float32{-d, d}
}

// planKawase walks down the ladder one halving per layer, then back up
// through the remembered sizes to the source resolution.
func planKawase(cfg frost.Config, w, h int, format frost.Format) []Stage {
	sizes := target.Ladder(w, h, cfg.Layers)

	stages := make([]Stage, 0, 2*cfg.Layers)
	input := InputSource
	for i := 1; i <= cfg.Layers; i++ {
		stages = append(stages, Stage{
			Label:    fmt.Sprintf("kawase.down[%d]", i),
			Program:  pass.ProgramKawaseDown,
			Input:    input,
			Output:   target.Desc{Level: i, Slot: target.SlotPing, Width: sizes[i][0], Height: sizes[i][1], Format: format},
			Distance: cfg.Radius,
		})
		input = len(stages) - 1
	}
	for i := cfg.Layers; i >= 1; i-- {
		stages = append(stages, Stage{
			Label:    fmt.Sprintf("kawase.up[%d]", i-1),
			Program:  pass.ProgramKawaseUp,
			Input:    input,
			Output:   target.Desc{Level: i - 1, Slot: target.SlotPong, Width: sizes[i-1][0], Height: sizes[i-1][1], Format: format},
			Distance: cfg.Radius * UpsampleDistanceScale,
		})
		input = len(stages) - 1
	}
	return stages
}

// lastUses maps each stage to the index of the last stage reading its
// output, or -1 if nothing reads it.
func lastUses(stages []Stage) []int {
	last := make([]int, len(stages))
	for i := range last {
		last[i] = -1
	}
	for j, s := range stages {
		if s.Input != InputSource {
			last[s.Input] = j
		}
	}
	return last
}
