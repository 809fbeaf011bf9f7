package frost

// Test helper functions shared across frost tests.

// filledPixmap creates a pixmap filled with the given color.
func filledPixmap(w, h int, c Color) *Pixmap {
	p := NewPixmap(w, h)
	p.Fill(c)
	return p
}

// colorNear compares two colors with tolerance.
func colorNear(a, b Color, tolerance float32) bool {
	return absf32(a.R-b.R) <= tolerance &&
		absf32(a.G-b.G) <= tolerance &&
		absf32(a.B-b.B) <= tolerance &&
		absf32(a.A-b.A) <= tolerance
}

func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
