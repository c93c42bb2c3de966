package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/webhook"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakePresigner struct{ expires time.Duration }

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3.example.com/" + *in.Key + "?sig=1", Method: http.MethodGet}, nil
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.3 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestUploader(objects ObjectAPI, presigner Presigner, up config.Upload, exportDir string) *Uploader {
	u := NewUploader(objects, presigner, Options{Upload: up, ExportDir: exportDir})
	u.newID = func() string { return "fixed-id" }
	u.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return u
}

func TestUpload_NotConfigured(t *testing.T) {
	u := newTestUploader(nil, nil, config.Upload{}, t.TempDir())

	res, err := u.Upload(context.Background(), Request{FilePath: "x.pdf"})
	if !errors.Is(err, config.ErrNotConfigured) || !IsNotConfigured(err) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if res.Status != storyboard.UploadSkipped {
		t.Errorf("Status = %q, want skipped", res.Status)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	u := newTestUploader(newFakeS3(), &fakePresigner{}, config.Upload{Bucket: "b"}, t.TempDir())

	res, err := u.Upload(context.Background(), Request{FilePath: "nope.pdf"})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Success || res.Status != storyboard.UploadFailed || !strings.Contains(res.Error, "not found") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestUpload_S3Only(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "Story_storyboard_1.pdf")
	fs := newFakeS3()
	ps := &fakePresigner{}
	u := newTestUploader(fs, ps, config.Upload{Bucket: "bucket", PresignExpiry: 2 * time.Hour}, dir)

	// Bare filename resolves under the export dir.
	res, err := u.Upload(context.Background(), Request{FilePath: "Story_storyboard_1.pdf", DesiredFilename: "final"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || res.Status != storyboard.UploadUploaded || res.WebhookStatus != "skipped" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Key != "storyboards/fixed-id/final.pdf" {
		t.Errorf("Key = %q", res.Key)
	}
	if !strings.Contains(res.S3URL, "storyboards/fixed-id/final.pdf") {
		t.Errorf("S3URL = %q", res.S3URL)
	}
	if ps.expires != 2*time.Hour {
		t.Errorf("presign expiry = %v", ps.expires)
	}

	put := fs.puts[0]
	if *put.ContentType != "application/pdf" || put.Metadata["source"] != Source || put.Metadata["upload-timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected PutObject input: %+v", put)
	}
	if *put.Tagging != projectTag {
		t.Errorf("Tagging = %q", *put.Tagging)
	}
}

func TestUpload_Webhook(t *testing.T) {
	var got webhookPayload
	var sig, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		sig = r.Header.Get(webhook.SignatureHeader)
		ua = r.Header.Get("User-Agent")
		if !webhook.Verify("s3cret", body, sig) {
			t.Error("webhook signature does not verify")
		}
		w.Write([]byte(`{"status":"success","driveUrl":"https://drive.google.com/file/d/1"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writePDF(t, dir, "Story.pdf")
	u := newTestUploader(newFakeS3(), &fakePresigner{}, config.Upload{Bucket: "bucket", WebhookURL: srv.URL, WebhookSecret: "s3cret"}, dir)

	res, err := u.Upload(context.Background(), Request{FilePath: path})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.GoogleDriveURL != "https://drive.google.com/file/d/1" || res.WebhookStatus != "success" {
		t.Errorf("unexpected result: %+v", res)
	}
	if got.Filename != "Story" || got.Source != Source || got.Bucket != "bucket" || got.FileURL != res.S3URL || got.FileSize != res.FileSize {
		t.Errorf("unexpected payload: %+v", got)
	}
	if ua != UserAgent {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestUpload_WebhookFailureKeepsS3URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writePDF(t, dir, "Story.pdf")
	u := newTestUploader(newFakeS3(), &fakePresigner{}, config.Upload{Bucket: "bucket", WebhookURL: srv.URL}, dir)

	res, err := u.Upload(context.Background(), Request{FilePath: path})
	if err == nil {
		t.Fatal("expected webhook error")
	}
	if res.Success || res.Status != storyboard.UploadFailed || res.S3URL == "" || res.WebhookStatus != "failed" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestUpload_PutObjectError(t *testing.T) {
	dir := t.TempDir()
	path := writePDF(t, dir, "Story.pdf")
	fs := newFakeS3()
	fs.putErr = errors.New("AccessDenied")
	u := newTestUploader(fs, &fakePresigner{}, config.Upload{Bucket: "bucket"}, dir)

	res, err := u.Upload(context.Background(), Request{FilePath: path})
	if err == nil || !strings.Contains(res.Error, "AccessDenied") {
		t.Fatalf("expected AccessDenied, got %v / %+v", err, res)
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri, bucket, key string
		ok               bool
	}{
		{"s3://b/k/x.png", "b", "k/x.png", true},
		{"s3://b", "", "", false},
		{"s3:///k", "", "", false},
		{"https://b/k", "", "", false},
	}
	for _, tt := range tests {
		b, k, err := ParseS3URI(tt.uri)
		if (err == nil) != tt.ok || b != tt.bucket || k != tt.key {
			t.Errorf("ParseS3URI(%q) = %q, %q, %v", tt.uri, b, k, err)
		}
	}
}

func TestFetchObject(t *testing.T) {
	fs := newFakeS3()
	fs.objects["b/img.png"] = []byte("0123456789")

	data, err := FetchObject(context.Background(), fs, "b", "img.png", 100)
	if err != nil || string(data) != "0123456789" {
		t.Fatalf("FetchObject = %q, %v", data, err)
	}
	if _, err := FetchObject(context.Background(), fs, "b", "img.png", 5); err == nil {
		t.Error("expected size limit error")
	}
	if _, err := FetchObject(context.Background(), fs, "b", "missing", 5); err == nil {
		t.Error("expected missing object error")
	}
}
