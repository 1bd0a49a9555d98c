package transform

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gen2brain/webp"
)

// Encoder writes img in one output format
type Encoder interface {
	// Encode writes img at the given quality (1-100). Lossless encoders ignore quality.
	Encode(w io.Writer, img image.Image, quality int) error
	// Lossy reports whether quality affects output size
	Lossy() bool
	// Extension is the file extension for this format, without the dot
	Extension() string
}

type jpegEncoder struct{}

func (jpegEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
func (jpegEncoder) Lossy() bool       { return true }
func (jpegEncoder) Extension() string { return "jpg" }

type webpEncoder struct{}

func (webpEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, webp.Options{Quality: quality})
}
func (webpEncoder) Lossy() bool       { return true }
func (webpEncoder) Extension() string { return "webp" }

type pngEncoder struct{}

func (pngEncoder) Encode(w io.Writer, img image.Image, _ int) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}
func (pngEncoder) Lossy() bool       { return false }
func (pngEncoder) Extension() string { return "png" }

type gifEncoder struct{}

func (gifEncoder) Encode(w io.Writer, img image.Image, _ int) error {
	return gif.Encode(w, img, nil)
}
func (gifEncoder) Lossy() bool       { return false }
func (gifEncoder) Extension() string { return "gif" }

// defaultEncoders maps output mime types to encoders
func defaultEncoders() map[string]Encoder {
	return map[string]Encoder{
		"image/jpeg": jpegEncoder{},
		"image/webp": webpEncoder{},
		"image/png":  pngEncoder{},
		"image/gif":  gifEncoder{},
	}
}
