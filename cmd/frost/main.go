// Command frost blurs an image with the frost effect and writes the result
// as PNG.
//
//	frost -in photo.png -out blurred.png -algorithm kawase -layers 3 -dither
//	frost -in photo.png -keys "l l right right d" -hud -out status.png
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/frost"
	"github.com/gogpu/frost/effect"
	"github.com/gogpu/frost/internal/capture"
	"github.com/gogpu/frost/internal/dither"
	"github.com/gogpu/frost/internal/hud"
)

func main() {
	def := frost.DefaultConfig()
	var (
		in        = flag.String("in", "", "input image (PNG, JPEG, GIF, BMP, TIFF, WebP); empty for a test pattern")
		out       = flag.String("out", "frost.png", "output PNG file")
		algorithm = flag.String("algorithm", def.Algorithm.String(), "blur algorithm: gaussian or kawase")
		kernel    = flag.Int("kernel", def.KernelSize, "Gaussian kernel size (odd, 0-63)")
		radius    = flag.Float64("radius", float64(def.Radius), "sampling radius (0-32)")
		layers    = flag.Int("layers", def.Layers, "Kawase ladder depth or Gaussian iterations (0-6)")
		dith      = flag.Bool("dither", def.Dither, "enable the dithering pass")
		diagonal  = flag.Bool("diagonal", def.Diagonal, "rotate Gaussian sampling axes by 45 degrees")
		keys      = flag.String("keys", "", `key script applied after the flags, e.g. "l l d right"`)
		frames    = flag.Int("frames", 1, "number of frames to render")
		backend   = flag.String("backend", "cpu", "executor backend: cpu or gpu")
		budget    = flag.Int("budget", 0, "render-target budget in MB (0 for the default)")
		format    = flag.String("format", frost.FormatRGBA8.String(), "render-target format: rgba8 or rgba32f")
		bg        = flag.String("bg", "", "composite the result over this #rrggbb background")
		showHUD   = flag.Bool("hud", false, "draw the configuration label")
		capFile   = flag.String("capture", "", "also write the last frame as a zstd capture")
		scale     = flag.Int("scale", 0, "resize the input to this width before blurring")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	frost.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	alg, err := frost.ParseAlgorithm(*algorithm)
	if err != nil {
		log.Fatalf("Invalid -algorithm: %v", err)
	}
	be, err := effect.ParseBackend(*backend)
	if err != nil {
		log.Fatalf("Invalid -backend: %v", err)
	}
	tf, err := frost.ParseFormat(*format)
	if err != nil {
		log.Fatalf("Invalid -format: %v", err)
	}
	events, err := frost.ParseKeys(*keys)
	if err != nil {
		log.Fatalf("Invalid -keys: %v", err)
	}

	src, err := loadSource(*in, *scale)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	cfg := frost.Config{
		Algorithm:  alg,
		KernelSize: *kernel,
		Radius:     float32(*radius),
		Layers:     *layers,
		Dither:     *dith,
		Diagonal:   *diagonal,
	}
	fx, err := effect.New(
		effect.WithConfig(cfg),
		effect.WithBackend(be),
		effect.WithMemoryBudget(*budget),
		effect.WithTargetFormat(tf),
	)
	if err != nil {
		log.Fatalf("Failed to create effect: %v", err)
	}
	defer fx.Close()

	for _, ev := range events {
		fx.HandleEvent(ev)
	}

	var result *frost.Pixmap
	start := time.Now()
	for i := 0; i < max(*frames, 1); i++ {
		result, err = fx.Render(src)
		if err != nil {
			log.Printf("Frame %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	if result == nil {
		log.Fatalf("No frame rendered")
	}

	final := fx.Config()
	if *capFile != "" {
		stats := fx.Stats()
		if err := capture.WriteFile(*capFile, capture.Frame{
			Config: final,
			Seed:   dither.DefaultSeed,
			Index:  stats.Frames,
			Image:  result,
		}); err != nil {
			log.Fatalf("Failed to write capture: %v", err)
		}
	}

	if *bg != "" {
		result = result.Over(frost.Hex(*bg))
	}
	if *showHUD {
		overlay, err := hud.New(hud.DefaultSize)
		if err != nil {
			log.Fatalf("Failed to load HUD font: %v", err)
		}
		result = overlay.Label(result, final)
		_ = overlay.Close()
	}

	if err := result.SavePNG(*out); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	printStats(fx.Stats(), final, elapsed, *out)
}

// loadSource reads the input image, or builds a test pattern, and
// optionally rescales it to width.
func loadSource(path string, width int) (*frost.Pixmap, error) {
	var src *frost.Pixmap
	if path == "" {
		src = testPattern(512, 512)
	} else {
		var err error
		if src, err = frost.LoadImage(path); err != nil {
			return nil, err
		}
	}
	if width <= 0 || width == src.Width() {
		return src, nil
	}

	img := src.ToImage()
	b := img.Bounds()
	height := max(1, b.Dy()*width/max(b.Dx(), 1))
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return frost.FromImage(dst), nil
}

// testPattern is a hard-edged checkerboard with a color ramp, which shows
// both blur spread and gradient banding.
func testPattern(w, h int) *frost.Pixmap {
	p := frost.NewPixmap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float32(x) / float32(w-1)
			c := frost.RGB(t, 0.3, 1-t)
			if (x/32+y/32)%2 == 0 {
				c = c.Scale(0.4)
				c.A = 1
			}
			p.SetPixel(x, y, c)
		}
	}
	return p
}

func printStats(s effect.Stats, cfg frost.Config, elapsed time.Duration, out string) {
	p := message.NewPrinter(language.English)
	backend := s.Backend.String()
	if s.Adapter != "" {
		backend = fmt.Sprintf("%s (%s)", backend, s.Adapter)
	}
	log.Printf("Saved %s: %s", out, cfg)
	log.Print(p.Sprintf("%d frames, %d skipped, %d passes on %s in %v",
		s.Frames, s.SkippedFrames, s.Passes, backend, elapsed.Round(time.Microsecond)))
	log.Print(p.Sprintf("%d render targets, %d of %d bytes, generation %d, %d evictions",
		s.Targets, s.TargetBytes, s.BudgetBytes, s.Generation, s.Evictions))
}
