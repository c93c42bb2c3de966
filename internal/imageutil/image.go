// Package imageutil decodes, downsizes and re-encodes the still images that
// flow through the pipeline: generated scene frames going into the PDF and
// reference images going to the consistency judge.
package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// DefaultMaxDimension is the largest width or height sent to the judge.
const DefaultMaxDimension = 1024

// SupportedImageExtensions maps file extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MIMEFromExtension returns the MIME type for the extension of name,
// defaulting to image/png.
func MIMEFromExtension(name string) string {
	if m, ok := SupportedImageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return "image/png"
}

// SniffMIME detects the MIME type from content, falling back to the
// extension of name when the bytes are not a recognised image.
func SniffMIME(name string, data []byte) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return MIMEFromExtension(name)
}

// Decode decodes PNG, JPEG, GIF or WebP data.
func Decode(data []byte, mimeType string) (image.Image, error) {
	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch mimeType {
	case "image/jpeg":
		img, err = jpeg.Decode(r)
	case "image/png":
		img, err = png.Decode(r)
	case "image/gif":
		img, err = gif.Decode(r)
	case "image/webp":
		img, err = webp.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", mimeType, err)
	}
	return img, nil
}

// CalculateDimensions returns the size that fits within maxDimension on
// both axes while keeping the aspect ratio. Images already small enough
// keep their size.
func CalculateDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}
	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}

// FitWithin scales img down so neither side exceeds maxDimension.
func FitWithin(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := CalculateDimensions(bounds.Dx(), bounds.Dy(), maxDimension)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale returns data unchanged when the image already fits within
// maxDimension. Larger images are resized and re-encoded: JPEG stays JPEG,
// everything else becomes PNG.
func Downscale(data []byte, mimeType string, maxDimension int) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return data, mimeType, nil
	}

	img, err := Decode(data, mimeType)
	if err != nil {
		return nil, "", err
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxDimension && bounds.Dy() <= maxDimension {
		return data, mimeType, nil
	}

	resized := FitWithin(img, maxDimension)
	var out []byte
	outMIME := "image/png"
	if mimeType == "image/jpeg" {
		out, err = EncodeJPEG(resized, 85)
		outMIME = "image/jpeg"
	} else {
		out, err = EncodePNG(resized)
	}
	if err != nil {
		return nil, "", err
	}

	log.Debug().
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("new_width", resized.Bounds().Dx()).
		Int("new_height", resized.Bounds().Dy()).
		Int("output_size", len(out)).
		Msg("Image downscaled")

	return out, outMIME, nil
}

// ToPNGOrJPEG converts data into a format every PDF and vision backend
// accepts. PNG and JPEG pass through; GIF and WebP are re-encoded as PNG.
func ToPNGOrJPEG(data []byte, mimeType string) ([]byte, string, error) {
	switch mimeType {
	case "image/png", "image/jpeg":
		return data, mimeType, nil
	}
	img, err := Decode(data, mimeType)
	if err != nil {
		return nil, "", err
	}
	out, err := EncodePNG(img)
	if err != nil {
		return nil, "", err
	}
	return out, "image/png", nil
}
