package picon

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	// Decoders for formats receivers are known to serve under /picon/*.png.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Size is the edge length of every picon thumbnail.
const Size = 300

// MaxSourceDim bounds the declared width and height of a source picon.
// Decoders allocate the full canvas from the header before reading pixels.
const MaxSourceDim = 4096

const dataURLPrefix = "data:image/png;base64,"

// Square fits src inside a Size×Size canvas, preserving aspect ratio, and
// centers it. Uncovered pixels stay fully transparent. Smaller images are
// scaled up.
func Square(src image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return dst
	}
	var fw, fh int
	if w >= h {
		fw, fh = Size, max(1, (h*Size+w/2)/w)
	} else {
		fw, fh = max(1, (w*Size+h/2)/h), Size
	}
	x0 := (Size - fw) / 2
	y0 := (Size - fh) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+fw, y0+fh), src, b, draw.Over, nil)
	return dst
}

// Transform decodes raw image bytes, squares the image and returns it as a
// PNG data URL.
func Transform(raw []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode picon: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxSourceDim || cfg.Height > MaxSourceDim {
		return "", fmt.Errorf("decode picon: %dx%d exceeds %dx%d", cfg.Width, cfg.Height, MaxSourceDim, MaxSourceDim)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode picon: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Square(img)); err != nil {
		return "", fmt.Errorf("encode picon: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
