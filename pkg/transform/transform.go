// Package transform resizes, converts and compresses downloaded images.
package transform

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Options are the resolved transformation settings for one image
type Options struct {
	Format        models.Format // FormatNone keeps the source format
	MaxWidth      int           // pixels, 0 = unlimited
	MaxFilesizeKB int           // 0 = unlimited
}

// NoOp reports whether the options request no change at all
func (o Options) NoOp() bool {
	return o.Format.Normalize() == models.FormatNone && o.MaxWidth <= 0 && o.MaxFilesizeKB <= 0
}

// Transformer applies Options to image files, writing results to new temp files
type Transformer struct {
	tempDir  string
	encoders map[string]Encoder // mime -> encoder
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewTransformer creates a Transformer writing into tempDir ("" = OS temp dir). m may be nil.
func NewTransformer(tempDir string, m *metrics.Metrics, log *logrus.Entry) *Transformer {
	return &Transformer{
		tempDir:  tempDir,
		encoders: defaultEncoders(),
		metrics:  m,
		log:      log.WithField("component", "transformer"),
	}
}

// WithEncoder overrides the encoder used for mime
func (t *Transformer) WithEncoder(mime string, enc Encoder) *Transformer {
	t.encoders[mime] = enc
	return t
}

// Transform returns the path of a transformed copy of the image at path, or path itself
// when opts request nothing. The caller owns any returned path that differs from the input.
//
// The image is downscaled to MaxWidth (never upscaled), encoded at InitialQuality in the
// requested format (else the source format, else JPEG), and, when the result exceeds
// MaxFilesizeKB, re-encoded at decreasing quality until it fits. Failing to fit yields a
// *CompressionError; an oversized file is never returned.
func (t *Transformer) Transform(path string, opts Options) (string, error) {
	if opts.NoOp() {
		return path, nil
	}
	txLog := t.log.WithField("file", filepath.Base(path))

	img, detected, err := loadImage(path)
	if err != nil {
		return "", err
	}

	if opts.MaxWidth > 0 {
		img = resizeToWidth(img, opts.MaxWidth)
	}

	mime := t.outputMIME(opts.Format, detected)
	enc := t.encoders[mime]
	if mime == "image/jpeg" {
		img = flattenAlpha(img)
	}
	txLog = txLog.WithFields(logrus.Fields{"source_format": detected, "output_mime": mime})

	out, size, err := t.encodeToTemp(img, enc, InitialQuality)
	if err != nil {
		return "", err
	}

	budget := int64(opts.MaxFilesizeKB) * 1024
	if budget <= 0 || size <= budget {
		txLog.WithField("size", size).Debug("Image transformed")
		return out, nil
	}

	if !enc.Lossy() {
		os.Remove(out)
		return "", &CompressionError{Achieved: size, Target: budget}
	}

	res, err := t.compressToBudget(img, enc, budget, out, size)
	if err != nil {
		return "", err
	}
	if !res.OK {
		txLog.WithFields(logrus.Fields{"attempts": res.Attempts, "achieved": res.Achieved, "budget": budget}).Warn("Could not reach size budget")
		return "", &CompressionError{Achieved: res.Achieved, Target: budget}
	}
	txLog.WithFields(logrus.Fields{"attempts": res.Attempts, "size": res.Size}).Debug("Image compressed to budget")
	return res.Path, nil
}

// loadImage decodes the file, returning the image and the registered format name
func loadImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", utils.ErrImageLoadFailed, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", utils.ErrImageLoadFailed, filepath.Base(path), err)
	}
	return img, format, nil
}

// outputMIME picks the requested format, else the detected one if encodable, else JPEG
func (t *Transformer) outputMIME(requested models.Format, detected string) string {
	if mime := requested.Normalize().MIMEType(); mime != "" {
		return mime
	}
	mime := "image/" + detected
	if _, ok := t.encoders[mime]; ok {
		return mime
	}
	return "image/jpeg"
}

// resizeToWidth scales img down to maxWidth, keeping the aspect ratio
func resizeToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth {
		return img
	}
	newH := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if newH < 1 {
		newH = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// flattenAlpha composites img onto white; opaque images are returned as is
func flattenAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// encodeToTemp writes img to a fresh temp file and returns its path and size
func (t *Transformer) encodeToTemp(img image.Image, enc Encoder, quality int) (string, int64, error) {
	f, err := os.CreateTemp(t.tempDir, "image-scraper-tx-*."+enc.Extension())
	if err != nil {
		return "", 0, fmt.Errorf("%w: creating temp file: %w", utils.ErrFilesystem, err)
	}
	path := f.Name()

	encErr := enc.Encode(f, img, quality)
	closeErr := f.Close()
	if encErr != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("%w: %s at quality %d: %w", utils.ErrEncodeFailed, enc.Extension(), quality, encErr)
	}
	if closeErr != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("%w: closing temp file: %w", utils.ErrFilesystem, closeErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	return path, info.Size(), nil
}
