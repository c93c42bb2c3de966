package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestCalculateDimensions(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{800, 600, 1024, 800, 600},
		{2048, 1024, 1024, 1024, 512},
		{1000, 4000, 1024, 256, 1024},
		{1024, 1024, 1024, 1024, 1024},
	}
	for _, tt := range tests {
		w, h := CalculateDimensions(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("CalculateDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestMIMEFromExtension(t *testing.T) {
	tests := map[string]string{
		"a.JPG":  "image/jpeg",
		"a.jpeg": "image/jpeg",
		"b.png":  "image/png",
		"c.webp": "image/webp",
		"d.gif":  "image/gif",
		"e.bmp":  "image/png",
		"noext":  "image/png",
	}
	for name, want := range tests {
		if got := MIMEFromExtension(name); got != want {
			t.Errorf("MIMEFromExtension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSniffMIME(t *testing.T) {
	data, err := EncodePNG(solid(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if got := SniffMIME("frame.jpg", data); got != "image/png" {
		t.Errorf("SniffMIME = %q, want image/png from content", got)
	}
	if got := SniffMIME("frame.jpg", []byte("not an image")); got != "image/jpeg" {
		t.Errorf("SniffMIME fallback = %q, want image/jpeg", got)
	}
}

func TestDownscale(t *testing.T) {
	small, _ := EncodePNG(solid(100, 50))
	out, mime, err := Downscale(small, "image/png", 1024)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, small) || mime != "image/png" {
		t.Error("small image should pass through unchanged")
	}

	big, _ := EncodeJPEG(solid(2000, 1000), 90)
	out, mime, err = Downscale(big, "image/jpeg", 1024)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 1024 || cfg.Height != 512 {
		t.Errorf("downscaled to %dx%d, want 1024x512", cfg.Width, cfg.Height)
	}
}

func TestToPNGOrJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, solid(8, 8), nil); err != nil {
		t.Fatal(err)
	}
	out, mime, err := ToPNGOrJPEG(buf.Bytes(), "image/gif")
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q", mime)
	}
	if _, err := Decode(out, "image/png"); err != nil {
		t.Errorf("output is not PNG: %v", err)
	}
}

func TestDecode_Unsupported(t *testing.T) {
	if _, err := Decode([]byte("x"), "image/bmp"); err == nil {
		t.Fatal("expected error")
	}
}
