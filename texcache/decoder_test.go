package texcache

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := solidImage(w, h, c)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestFileDecoderDecodesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	writePNG(t, path, 6, 4, color.RGBA{R: 255, A: 255})

	d := &FileDecoder{}
	img, err := d.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 4 {
		t.Fatalf("size = %v, want 6x4", img.Bounds())
	}
	if img.Pix[0] != 255 || img.Pix[3] != 255 {
		t.Fatalf("pixel = %v, want red", img.Pix[0:4])
	}
}

func TestFileDecoderMaxDim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.png")
	writePNG(t, path, 64, 16, color.RGBA{G: 255, A: 255})

	d := &FileDecoder{MaxDim: 32}
	img, err := d.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 8 {
		t.Fatalf("size = %v, want 32x8", img.Bounds())
	}
}

func TestFileDecoderMissingFile(t *testing.T) {
	d := &FileDecoder{}
	if _, err := d.Decode(context.Background(), filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("Decode of missing file should fail")
	}
}

func TestFileDecoderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &FileDecoder{}
	if _, err := d.Decode(ctx, "irrelevant"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
