// Package capture stores rendered frames as zstd-compressed float pixels
// behind a small header carrying the configuration that produced them.
// Captures are exact: reading one back reproduces every float bit.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/frost"
)

// Magic starts every capture file.
const Magic = "FRST"

// Version is the current header version.
const Version = 1

// maxDimension bounds header sizes accepted by Read.
const maxDimension = 1 << 15

var (
	// ErrBadMagic is returned for data that is not a capture.
	ErrBadMagic = errors.New("capture: not a frost capture")

	// ErrVersion is returned for an unsupported header version.
	ErrVersion = errors.New("capture: unsupported version")

	// ErrCorrupt is returned for a header or body that does not decode.
	ErrCorrupt = errors.New("capture: corrupt capture")
)

// Frame is one captured output image and the state that produced it.
type Frame struct {
	Config frost.Config
	Seed   uint32
	Index  uint64
	Image  *frost.Pixmap
}

const (
	flagDither   = 1 << 0
	flagDiagonal = 1 << 1
)

// header is the fixed-size prefix after Magic, little-endian.
type header struct {
	Version   uint8
	Algorithm uint8
	Flags     uint8
	Layers    uint8
	Kernel    uint16
	_         uint16
	Radius    float32
	Seed      uint32
	Index     uint64
	Width     uint32
	Height    uint32
}

// Write encodes f to w.
func Write(w io.Writer, f Frame) error {
	if f.Image == nil {
		return fmt.Errorf("capture: nil image")
	}
	cfg := f.Config.Normalize()
	h := header{
		Version:   Version,
		Algorithm: uint8(cfg.Algorithm),
		Layers:    uint8(cfg.Layers),     //nolint:gosec // normalized
		Kernel:    uint16(cfg.KernelSize), //nolint:gosec // normalized
		Radius:    cfg.Radius,
		Seed:      f.Seed,
		Index:     f.Index,
		Width:     uint32(f.Image.Width()),  //nolint:gosec // non-negative
		Height:    uint32(f.Image.Height()), //nolint:gosec // non-negative
	}
	if cfg.Dither {
		h.Flags |= flagDither
	}
	if cfg.Diagonal {
		h.Flags |= flagDiagonal
	}

	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(runtime.NumCPU()))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)
	var buf [4]byte
	for _, v := range f.Image.Data() {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes one frame from r.
func Read(r io.Reader) (Frame, error) {
	var magic [len(Magic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if string(magic[:]) != Magic {
		return Frame{}, ErrBadMagic
	}

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Frame{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.Width > maxDimension || h.Height > maxDimension {
		return Frame{}, fmt.Errorf("%w: size %dx%d", ErrCorrupt, h.Width, h.Height)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return Frame{}, err
	}
	defer dec.Close()

	img := frost.NewPixmap(int(h.Width), int(h.Height))
	data := img.Data()
	raw := make([]byte, len(data)*4)
	if _, err := io.ReadFull(dec, raw); err != nil {
		return Frame{}, fmt.Errorf("%w: body: %w", ErrCorrupt, err)
	}
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return Frame{
		Config: frost.Config{
			Algorithm:  frost.Algorithm(h.Algorithm),
			KernelSize: int(h.Kernel),
			Radius:     h.Radius,
			Layers:     int(h.Layers),
			Dither:     h.Flags&flagDither != 0,
			Diagonal:   h.Flags&flagDiagonal != 0,
		},
		Seed:  h.Seed,
		Index: h.Index,
		Image: img,
	}, nil
}

// WriteFile writes f to path, replacing it.
func WriteFile(path string, f Frame) error {
	file, err := os.Create(path) //nolint:gosec // user-chosen output path
	if err != nil {
		return err
	}
	if err := Write(file, f); err != nil {
		_ = file.Close()
		return fmt.Errorf("capture: write %s: %w", path, err)
	}
	return file.Close()
}

// ReadFile reads a frame from path.
func ReadFile(path string) (Frame, error) {
	file, err := os.Open(path) //nolint:gosec // user-chosen input path
	if err != nil {
		return Frame{}, err
	}
	defer func() { _ = file.Close() }()
	return Read(bufio.NewReader(file))
}
