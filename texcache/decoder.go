package texcache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	xdraw "golang.org/x/image/draw"

	// Registered formats for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder turns a cache key into decoded RGBA pixels. Implementations
// must be safe for concurrent use; the cache decodes outside its lock.
type Decoder interface {
	Decode(ctx context.Context, key string) (*image.RGBA, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, key string) (*image.RGBA, error)

func (f DecoderFunc) Decode(ctx context.Context, key string) (*image.RGBA, error) {
	return f(ctx, key)
}

// FileDecoder decodes image files from disk, treating the cache key as a
// file path. PNG, JPEG, GIF, BMP, TIFF and WebP are recognized.
type FileDecoder struct {
	// MaxDim, when positive, downscales any decoded image whose longer
	// side exceeds it, preserving aspect ratio. Keeps oversized photos
	// from blowing through the cache budget.
	MaxDim int
}

// Decode reads and decodes the file at key into RGBA pixels.
func (d *FileDecoder) Decode(ctx context.Context, key string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	slogger().Debug("decoded image", "key", key, "format", format,
		"width", src.Bounds().Dx(), "height", src.Bounds().Dy())
	return d.toRGBA(src), nil
}

// toRGBA converts src to RGBA, downscaling if it exceeds MaxDim.
func (d *FileDecoder) toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if d.MaxDim > 0 && (w > d.MaxDim || h > d.MaxDim) {
		if w >= h {
			h = h * d.MaxDim / w
			w = d.MaxDim
		} else {
			w = w * d.MaxDim / h
			h = d.MaxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		return dst
	}

	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}
