package consistency

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct{ objects map[string][]byte }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestLoader_HTTPWithCache(t *testing.T) {
	body := pngBytes(t, 40, 20)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	l := NewLoader(LoaderOptions{HTTPClient: srv.Client()})
	for i := 0; i < 2; i++ {
		img, err := l.Load(context.Background(), srv.URL+"/scene.png")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if img.MIMEType != "image/png" || !bytes.Equal(img.Data, body) {
			t.Errorf("unexpected image: %s, %d bytes", img.MIMEType, len(img.Data))
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (cached)", hits.Load())
	}

	if _, err := l.Load(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("expected HTTP 404 error")
	}
}

func TestLoader_S3(t *testing.T) {
	l := NewLoader(LoaderOptions{S3: &fakeS3{objects: map[string][]byte{"bucket/runs/1.png": pngBytes(t, 8, 8)}}})

	img, err := l.Load(context.Background(), "s3://bucket/runs/1.png")
	if err != nil || img.MIMEType != "image/png" {
		t.Fatalf("Load = %+v, %v", img, err)
	}
	if _, err := NewLoader(LoaderOptions{}).Load(context.Background(), "s3://bucket/runs/1.png"); err == nil {
		t.Error("expected error without S3 client")
	}
}

func TestLoader_DownscalesLargeImages(t *testing.T) {
	l := NewLoader(LoaderOptions{MaxDimension: 64})
	img, err := l.Load(context.Background(), dataURI(pngBytes(t, 256, 128)))
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("got %dx%d, want 64x32", cfg.Width, cfg.Height)
	}
}

func TestLoader_ConvertsGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatal(err)
	}
	img, err := NewLoader(LoaderOptions{}).Load(context.Background(), "data:image/gif;base64,"+encode(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", img.MIMEType)
	}
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(LoaderOptions{})
	for _, ref := range []string{"", "data:image/png,plain", "data:image/png;base64", "/no/such/file.png", "data:image/png;base64," + encode([]byte("not an image"))} {
		if _, err := l.Load(context.Background(), ref); err == nil {
			t.Errorf("Load(%.40q) succeeded, want error", ref)
		}
	}
}

func TestLoadAll_KeepsOrder(t *testing.T) {
	a := dataURI(pngBytes(t, 4, 4))
	b := dataURI(pngBytes(t, 6, 6))
	out, err := NewLoader(LoaderOptions{Concurrency: 2}).LoadAll(context.Background(), []string{a, "/missing.png", b})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0] == nil || out[1] != nil || out[2] == nil || out[2].Ref != b {
		t.Errorf("unexpected LoadAll result: %+v", out)
	}
}

func TestLoadAll_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader(LoaderOptions{HTTPClient: srv.Client()}).LoadAll(ctx, []string{srv.URL + "/a.png"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
