package frost

import (
	"fmt"
	"math"
	"strings"
)

// Event is a discrete configuration change delivered by the input layer.
type Event uint8

const (
	EventNone Event = iota
	EventKernelUp
	EventKernelDown
	EventRadiusUp
	EventRadiusDown
	EventLayersUp
	EventLayersDown
	EventToggleDither
	EventToggleDiagonal
	EventToggleAlgorithm
)

var eventNames = [...]string{
	EventNone:            "none",
	EventKernelUp:        "kernel+",
	EventKernelDown:      "kernel-",
	EventRadiusUp:        "radius+",
	EventRadiusDown:      "radius-",
	EventLayersUp:        "layers+",
	EventLayersDown:      "layers-",
	EventToggleDither:    "dither",
	EventToggleDiagonal:  "diagonal",
	EventToggleAlgorithm: "algorithm",
}

// String returns the event name.
func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", e)
}

// keyBindings maps key names to events. Letter keys are case-sensitive:
// "l" adds a layer, "L" removes one.
var keyBindings = map[string]Event{
	"up":    EventKernelUp,
	"down":  EventKernelDown,
	"right": EventRadiusUp,
	"left":  EventRadiusDown,
	"l":     EventLayersUp,
	"L":     EventLayersDown,
	"d":     EventToggleDither,
	"k":     EventToggleDiagonal,
	"a":     EventToggleAlgorithm,
}

// EventForKey returns the event bound to a key name.
// Arrow keys are accepted as "up", "ArrowUp" and so on.
func EventForKey(key string) (Event, bool) {
	if len(key) > 1 {
		key = strings.TrimPrefix(strings.ToLower(key), "arrow")
	}
	e, ok := keyBindings[key]
	return e, ok
}

// ParseKeys converts a whitespace-separated key script such as
// "l l d right" into events.
func ParseKeys(script string) ([]Event, error) {
	fields := strings.Fields(script)
	events := make([]Event, 0, len(fields))
	for _, f := range fields {
		e, ok := EventForKey(f)
		if !ok {
			return nil, fmt.Errorf("frost: unbound key %q", f)
		}
		events = append(events, e)
	}
	return events, nil
}

// Apply returns the configuration after e, normalized.
func (c Config) Apply(e Event) Config {
	switch e {
	case EventKernelUp:
		c.KernelSize += KernelStep
	case EventKernelDown:
		c.KernelSize -= KernelStep
	case EventRadiusUp:
		c.Radius = stepRadius(c.Radius, RadiusStep)
	case EventRadiusDown:
		c.Radius = stepRadius(c.Radius, -RadiusStep)
	case EventLayersUp:
		c.Layers++
	case EventLayersDown:
		c.Layers--
	case EventToggleDither:
		c.Dither = !c.Dither
	case EventToggleDiagonal:
		c.Diagonal = !c.Diagonal
	case EventToggleAlgorithm:
		if c.Algorithm == AlgorithmKawase {
			c.Algorithm = AlgorithmGaussian
		} else {
			c.Algorithm = AlgorithmKawase
		}
	}
	return c.Normalize()
}

// stepRadius adds d and snaps to one decimal so repeated steps do not drift.
func stepRadius(r, d float32) float32 {
	return float32(math.Round(float64(r+d)*10) / 10)
}
