package capture

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/gogpu/frost"
)

func sampleFrame() Frame {
	img := frost.NewPixmap(7, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			img.SetPixel(x, y, frost.Color{R: float32(x) / 7, G: float32(y) / 3, B: 1.0 / 3, A: 0.5})
		}
	}
	return Frame{
		Config: frost.Config{Algorithm: frost.AlgorithmGaussian, KernelSize: 9, Radius: 1.7, Layers: 3, Dither: true},
		Seed:   0xDEADBEEF,
		Index:  42,
		Image:  img,
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleFrame()
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Config != want.Config {
		t.Errorf("Config = %v, want %v", got.Config, want.Config)
	}
	if got.Seed != want.Seed || got.Index != want.Index {
		t.Errorf("Seed/Index = %#x/%d, want %#x/%d", got.Seed, got.Index, want.Seed, want.Index)
	}
	if got.Image.Width() != 7 || got.Image.Height() != 5 {
		t.Fatalf("size = %dx%d, want 7x5", got.Image.Width(), got.Image.Height())
	}
	for i, v := range want.Image.Data() {
		if math.Float32bits(got.Image.Data()[i]) != math.Float32bits(v) {
			t.Fatalf("data[%d] = %v, want %v", i, got.Image.Data()[i], v)
		}
	}
}

func TestCompresses(t *testing.T) {
	img := frost.NewPixmap(256, 256)
	img.Fill(frost.Gray(0.5))
	var buf bytes.Buffer
	if err := Write(&buf, Frame{Config: frost.DefaultConfig(), Image: img}); err != nil {
		t.Fatal(err)
	}
	if raw := 256 * 256 * 16; buf.Len() > raw/100 {
		t.Errorf("flat frame is %d bytes, want under %d", buf.Len(), raw/100)
	}
}

func TestReadErrors(t *testing.T) {
	var good bytes.Buffer
	if err := Write(&good, sampleFrame()); err != nil {
		t.Fatal(err)
	}
	b := good.Bytes()

	badVersion := append([]byte(nil), b...)
	badVersion[len(Magic)] = 99

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrBadMagic},
		{"wrong magic", []byte("PNG\x00rest"), ErrBadMagic},
		{"short header", b[:len(Magic)+3], ErrCorrupt},
		{"version", badVersion, ErrVersion},
		{"truncated body", b[:len(b)-8], ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("Read() error = nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Read() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.zst")
	want := sampleFrame()
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Config != want.Config || got.Image.Pixel(6, 4) != want.Image.Pixel(6, 4) {
		t.Errorf("ReadFile() = %+v", got.Config)
	}
}

func TestWriteNilImage(t *testing.T) {
	if err := Write(&bytes.Buffer{}, Frame{}); err == nil {
		t.Error("Write(nil image) error = nil")
	}
}
