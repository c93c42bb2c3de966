package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/webhook"
)

// Webhook payload constants.
const (
	Source    = "ai-storyboard-generator"
	UserAgent = "AI-Storyboard-Generator/1.0"
	KeyPrefix = "storyboards/"
)

// Request describes one upload. Bucket overrides the configured bucket.
type Request struct {
	FilePath        string
	DesiredFilename string
	Bucket          string
}

// Options configures an Uploader.
type Options struct {
	Upload     config.Upload
	ExportDir  string
	HTTPClient *http.Client
}

// Uploader implements the upload gateway on S3 plus an optional webhook.
type Uploader struct {
	objects   ObjectAPI
	presigner Presigner
	opts      Options
	newID     func() string
	now       func() time.Time
}

// NewUploader creates an Uploader. objects and presigner may be nil when no
// bucket is configured; Upload then reports config.ErrNotConfigured.
func NewUploader(objects ObjectAPI, presigner Presigner, opts Options) *Uploader {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Upload.PresignExpiry <= 0 {
		opts.Upload.PresignExpiry = time.Hour
	}
	return &Uploader{
		objects:   objects,
		presigner: presigner,
		opts:      opts,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// webhookPayload is posted to the automation webhook after the S3 upload.
type webhookPayload struct {
	FileURL         string `json:"fileUrl"`
	Filename        string `json:"filename"`
	UploadTimestamp string `json:"uploadTimestamp"`
	FileSize        int64  `json:"fileSize"`
	Source          string `json:"source"`
	Bucket          string `json:"bucket"`
}

// webhookResponse accepts the drive link under any of its known names.
type webhookResponse struct {
	Status         string `json:"status"`
	GoogleDriveURL string `json:"googleDriveUrl"`
	DriveURL       string `json:"driveUrl"`
	URL            string `json:"url"`
}

func (r webhookResponse) link() string {
	return webhook.DriveCallback{GoogleDriveURL: r.GoogleDriveURL, DriveURL: r.DriveURL, URL: r.URL}.Link()
}

// Upload stores the PDF and notifies the webhook. The returned result is
// always populated; err is non-nil whenever Success is false. A missing
// bucket yields status skipped and an error wrapping config.ErrNotConfigured.
func (u *Uploader) Upload(ctx context.Context, req Request) (storyboard.UploadResult, error) {
	bucket := req.Bucket
	if bucket == "" {
		bucket = u.opts.Upload.Bucket
	}
	if bucket == "" || u.objects == nil || u.presigner == nil {
		return storyboard.UploadResult{Status: storyboard.UploadSkipped},
			fmt.Errorf("upload bucket: %w", config.ErrNotConfigured)
	}

	fail := func(res storyboard.UploadResult, err error) (storyboard.UploadResult, error) {
		res.Status = storyboard.UploadFailed
		res.Success = false
		res.Error = err.Error()
		return res, err
	}

	path := u.resolvePath(req.FilePath)
	info, err := os.Stat(path)
	if err != nil {
		return fail(storyboard.UploadResult{Bucket: bucket}, fmt.Errorf("PDF file not found: %s", path))
	}

	filename := filepath.Base(path)
	if name := strings.TrimSpace(req.DesiredFilename); name != "" {
		filename = name
		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			filename += ".pdf"
		}
	}
	key := KeyPrefix + u.newID() + "/" + filename
	stamp := u.now().UTC().Format(time.RFC3339)

	res := storyboard.UploadResult{
		Bucket:   bucket,
		Key:      key,
		Filename: filename,
		FileSize: info.Size(),
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(res, fmt.Errorf("open PDF: %w", err))
	}
	defer f.Close()

	_, err = u.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          f,
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(info.Size()),
		Metadata: map[string]string{
			"source":           Source,
			"upload-timestamp": stamp,
		},
		Tagging: ProjectTagging(),
	})
	if err != nil {
		return fail(res, fmt.Errorf("S3 PutObject: %w", err))
	}

	res.S3URL, err = GeneratePresignedURL(ctx, u.presigner, bucket, key, u.opts.Upload.PresignExpiry)
	if err != nil {
		return fail(res, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Int64("size", info.Size()).Msg("PDF uploaded to S3")

	if u.opts.Upload.WebhookURL == "" {
		res.WebhookStatus = string(storyboard.UploadSkipped)
		res.Status = storyboard.UploadUploaded
		res.Success = true
		return res, nil
	}

	resp, err := u.notify(ctx, webhookPayload{
		FileURL:         res.S3URL,
		Filename:        strings.TrimSuffix(filename, filepath.Ext(filename)),
		UploadTimestamp: stamp,
		FileSize:        info.Size(),
		Source:          Source,
		Bucket:          bucket,
	})
	if err != nil {
		res.WebhookStatus = "failed"
		return fail(res, err)
	}

	res.GoogleDriveURL = resp.link()
	res.WebhookStatus = resp.Status
	if res.WebhookStatus == "" {
		res.WebhookStatus = "sent"
	}
	res.Status = storyboard.UploadUploaded
	res.Success = true
	log.Info().Str("key", key).Str("drive_url", res.GoogleDriveURL).Msg("Webhook notified")
	return res, nil
}

// resolvePath places bare filenames under the export directory.
func (u *Uploader) resolvePath(p string) string {
	if filepath.IsAbs(p) || strings.ContainsRune(p, os.PathSeparator) || strings.Contains(p, "/") {
		return p
	}
	if u.opts.ExportDir == "" {
		return p
	}
	return filepath.Join(u.opts.ExportDir, p)
}

func (u *Uploader) notify(ctx context.Context, payload webhookPayload) (webhookResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return webhookResponse{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.opts.Upload.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return webhookResponse{}, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if u.opts.Upload.WebhookSecret != "" {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(u.opts.Upload.WebhookSecret, body))
	}

	resp, err := u.opts.HTTPClient.Do(req)
	if err != nil {
		return webhookResponse{}, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return webhookResponse{}, fmt.Errorf("webhook failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var out webhookResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			// Plain-text acknowledgements are fine.
			log.Debug().Err(err).Msg("Webhook response is not JSON")
		}
	}
	return out, nil
}

// IsNotConfigured reports whether err means no upload target exists.
func IsNotConfigured(err error) bool {
	return errors.Is(err, config.ErrNotConfigured)
}
