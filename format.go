package frost

import "fmt"

// Format is the storage format of a render target.
type Format uint8

const (
	// FormatRGBA8 stores each channel as 8-bit unorm. Values written to an
	// RGBA8 target are rounded to the nearest multiple of 1/255, which is
	// what produces the banding the dither pass hides.
	FormatRGBA8 Format = iota

	// FormatRGBA32F stores each channel as a 32-bit float, unquantized.
	FormatRGBA32F
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the device memory cost of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA32F:
		return 16
	default:
		return 4
	}
}

// Quantized reports whether stores to this format lose precision.
func (f Format) Quantized() bool {
	return f == FormatRGBA8
}

// ParseFormat parses "rgba8" or "rgba32f".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "rgba8", "RGBA8":
		return FormatRGBA8, nil
	case "rgba32f", "RGBA32F":
		return FormatRGBA32F, nil
	default:
		return FormatRGBA8, fmt.Errorf("frost: unknown format %q", s)
	}
}
