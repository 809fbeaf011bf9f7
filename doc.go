// Package frost renders a full-screen blur and dither effect over a single
// 2D image per frame.
//
// # Overview
//
// frost runs a fixed chain of passes: either a separable sampled-Gaussian
// blur or a Kawase-derived dual filter (a ladder of downsample passes
// mirrored by upsample passes), followed by an optional dithering pass that
// hides the banding left behind by 8-bit render targets.
//
// This package holds the shared data model: [Color], [Pixmap], the live
// [Config] and the discrete [Event] values that mutate it. The frame driver
// lives in the effect sub-package:
//
//	src, err := frost.LoadImage("photo.png")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fx, err := effect.New(effect.WithConfig(frost.DefaultConfig()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer fx.Close()
//
//	fx.HandleEvent(frost.EventLayersUp)
//	out, err := fx.Render(src)
//
// # Color model
//
// Images store straight (non-premultiplied) float32 RGBA in [0, 1]. Every
// pass premultiplies texels on read, filters in premultiplied space and
// converts back to straight alpha once on write. Zero alpha always maps to
// transparent black.
//
// # Logging
//
// frost is silent by default. See [SetLogger].
package frost
