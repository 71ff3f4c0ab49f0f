// Command mixdemo renders one composited frame headlessly and saves it
// as PNG: a background image aspect-filled to the frame, crossfaded
// with a foreground image by the given mix ratio. Without input images
// it renders the built-in placeholders.
package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/teoAlivanoglou/teo-media/backend/soft"
	"github.com/teoAlivanoglou/teo-media/compose"
	"github.com/teoAlivanoglou/teo-media/texcache"
)

func main() {
	var (
		width      = flag.Int("width", 1280, "frame width")
		height     = flag.Int("height", 720, "frame height")
		background = flag.String("bg", "", "background image file")
		foreground = flag.String("fg", "", "foreground image file")
		mix        = flag.Float64("mix", 0.5, "crossfade ratio, 0..1")
		budget     = flag.Int64("cache-mb", 128, "texture cache budget in MiB")
		output     = flag.String("output", "mix.png", "output file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		compose.SetLogger(logger)
		texcache.SetLogger(logger)
	}

	device := soft.New(*width, *height)
	defer device.Destroy()

	pipeline := compose.New(compose.Config{
		CacheBudget: *budget << 20,
		Decoder:     &texcache.FileDecoder{},
	})
	if err := pipeline.Init(device); err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer pipeline.Destroy()

	ctx := context.Background()
	if *background != "" {
		if err := pipeline.UpdateTexture(ctx, compose.SlotBackground, *background); err != nil {
			log.Fatalf("Failed to load background: %v", err)
		}
	}
	if *foreground != "" {
		if err := pipeline.UpdateTexture(ctx, compose.SlotForeground, *foreground); err != nil {
			log.Fatalf("Failed to load foreground: %v", err)
		}
	}
	pipeline.SetMixValue(float32(*mix))

	if err := pipeline.RenderNow(); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, device.ReadSurface()); err != nil {
		log.Fatalf("Failed to encode PNG: %v", err)
	}

	stats := pipeline.Cache().Stats()
	log.Printf("Saved %s (%dx%d, mix=%.2f, cache %d entries / %d bytes)\n",
		*output, *width, *height, *mix, stats.Count, stats.ApproxBytes)
}
