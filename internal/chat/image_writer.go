package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

// ImageWriter is the ImageGateway used by the pipeline. It styles the
// prompt, spaces calls to the backend, retries retryable failures and
// writes every image under Dir.
type ImageWriter struct {
	Backend ImageBackend
	Dir     string
	Policy  gateway.Policy

	limiter *rate.Limiter
	now     func() time.Time
	seq     atomic.Int64
}

// NewImageWriter creates the gateway. A non-positive every disables rate
// limiting.
func NewImageWriter(backend ImageBackend, dir string, policy gateway.Policy, every time.Duration) *ImageWriter {
	w := &ImageWriter{Backend: backend, Dir: dir, Policy: policy, now: time.Now}
	if every > 0 {
		w.limiter = rate.NewLimiter(rate.Every(every), 2)
	}
	return w
}

// StylePrompt composes the backend prompt for a scene.
func StylePrompt(prompt, style string, quality Quality) string {
	var b strings.Builder
	if quality == QualityHigh {
		b.WriteString("highly detailed, ")
	}
	if style != "" {
		b.WriteString(style)
		b.WriteString(" style. ")
	}
	b.WriteString(prompt)
	return b.String()
}

// Generate produces req.Count images (at least one). A failure of any image
// fails the call; files already written stay on disk.
func (w *ImageWriter) Generate(ctx context.Context, req ImageRequest) ([]ImageResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &gateway.Error{Kind: gateway.KindInvalidRequest, Op: "image.generate", Err: fmt.Errorf("empty prompt")}
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	count := req.Count
	if count < 1 {
		count = 1
	}
	now := w.now
	if now == nil {
		now = time.Now
	}
	prompt := StylePrompt(req.Prompt, req.Style, req.Quality)
	op := "image." + w.Backend.Name()

	results := make([]ImageResult, 0, count)
	for n := 1; n <= count; n++ {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return results, gateway.Classify(op, ctx.Err())
			}
		}

		start := time.Now()
		img, err := gateway.Do(ctx, w.Policy, op, func(ctx context.Context) (*GeneratedImage, error) {
			return w.Backend.GenerateImage(ctx, prompt, req.AspectRatio)
		})
		elapsed := time.Since(start)

		m := metrics.New(metrics.Namespace).
			Dimension("Backend", w.Backend.Name()).
			Duration("ImageGenerationLatencyMs", elapsed).
			Count("ImageGenerationCalls")
		if err != nil {
			m.Count("ImageGenerationErrors")
		}
		m.Flush()

		if err != nil {
			return results, err
		}

		// seq keeps names unique when two images land in the same millisecond.
		path := filepath.Join(w.Dir, fmt.Sprintf("scene_%d_%d%s", now().UnixMilli(), w.seq.Add(1), extensionFor(img.MIMEType)))
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return results, fmt.Errorf("write image: %w", err)
		}

		log.Debug().
			Str("path", path).
			Int("bytes", len(img.Data)).
			Dur("duration", elapsed).
			Msg("Image written")

		results = append(results, ImageResult{FileReference: path, MIMEType: img.MIMEType, Bytes: len(img.Data)})
	}
	return results, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}
