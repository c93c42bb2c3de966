package consistency

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/imageutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/upload"
)

// Loader defaults.
const (
	DefaultMaxImageBytes = 20 << 20
	DefaultConcurrency   = 4
	DefaultCacheTTL      = 30 * time.Minute
	DefaultFetchTimeout  = 30 * time.Second
)

// Image is a reference normalized to inline bytes.
type Image struct {
	Ref      string
	MIMEType string
	Data     []byte
}

// LoaderOptions configures a Loader. Zero values select the defaults.
type LoaderOptions struct {
	HTTPClient   *http.Client
	S3           upload.ObjectAPI
	MaxDimension int
	MaxBytes     int64
	Concurrency  int
	CacheTTL     time.Duration
}

// Loader resolves image references (data URIs, http(s) URLs, s3:// URIs
// and local paths) into bounded-size PNG or JPEG bytes.
type Loader struct {
	client       *http.Client
	s3           upload.ObjectAPI
	maxDimension int
	maxBytes     int64
	concurrency  int
	cache        *cache.Cache
}

// NewLoader creates a Loader with its own cache.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = imageutil.DefaultMaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxImageBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Loader{
		client:       opts.HTTPClient,
		s3:           opts.S3,
		maxDimension: opts.MaxDimension,
		maxBytes:     opts.MaxBytes,
		concurrency:  opts.Concurrency,
		cache:        cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// LoadAll loads refs concurrently. The result has one entry per ref in
// input order; refs that fail to load are nil and logged. The error is
// non-nil only when ctx ends.
func (l *Loader) LoadAll(ctx context.Context, refs []string) ([]*Image, error) {
	out := make([]*Image, len(refs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.concurrency)

	for i, ref := range refs {
		eg.Go(func() error {
			img, err := l.Load(egCtx, ref)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn().Err(err).Int("image", i+1).Str("ref", refLabel(ref)).Msg("Dropping image that failed to load")
				return nil
			}
			out[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load resolves one reference, consulting the cache first.
func (l *Loader) Load(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty image reference")
	}
	if cached, ok := l.cache.Get(ref); ok {
		return cached.(*Image), nil
	}

	data, name, mimeType, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = imageutil.SniffMIME(name, data)
	}

	data, mimeType, err = imageutil.ToPNGOrJPEG(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", refLabel(ref), err)
	}
	data, mimeType, err = imageutil.Downscale(data, mimeType, l.maxDimension)
	if err != nil {
		return nil, fmt.Errorf("downscale %s: %w", refLabel(ref), err)
	}

	img := &Image{Ref: ref, MIMEType: mimeType, Data: data}
	l.cache.SetDefault(ref, img)
	return img, nil
}

// fetch returns the raw bytes, a name for extension-based MIME detection
// and a declared MIME type when the source carries one.
func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, string, string, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, mimeType, err := decodeDataURI(ref)
		return data, "", mimeType, err
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "s3://"):
		if l.s3 == nil {
			return nil, "", "", fmt.Errorf("s3 reference %s but no S3 client configured", ref)
		}
		bucket, key, err := upload.ParseS3URI(ref)
		if err != nil {
			return nil, "", "", err
		}
		data, err := upload.FetchObject(ctx, l.s3, bucket, key, l.maxBytes)
		return data, key, "", err
	}

	path := strings.TrimPrefix(ref, "file://")
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > l.maxBytes {
		return nil, "", "", fmt.Errorf("image %s is %d bytes, limit %d", path, info.Size(), l.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("read image: %w", err)
	}
	return data, path, "", nil
}

func (l *Loader) fetchHTTP(ctx context.Context, ref string) ([]byte, string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("fetch image: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, "", "", fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}

	name := ref
	if u, err := url.Parse(ref); err == nil {
		name = u.Path
	}
	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, name, strings.TrimSpace(mimeType), nil
}

// decodeDataURI decodes "data:<mime>;base64,<payload>".
func decodeDataURI(ref string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	mimeType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return data, mimeType, nil
}

// refLabel keeps data URIs out of log lines.
func refLabel(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		meta, _, _ := strings.Cut(ref, ",")
		return meta + ",..."
	}
	return ref
}
