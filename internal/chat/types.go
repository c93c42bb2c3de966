// Package chat holds the model-facing gateways: text generation (script,
// storyboard, anchoring and the vision judge) and image generation. Every
// adapter reports failures as plain errors; callers classify and retry them
// through the gateway package.
package chat

import (
	"context"
	"fmt"
)

// InlineImage is an image sent alongside a text prompt.
type InlineImage struct {
	// Label is emitted as a text part right before the image ("Image 3:").
	Label    string
	MIMEType string
	Data     []byte
}

// TextRequest is one prompt/response exchange.
type TextRequest struct {
	System          string
	Prompt          string
	Images          []InlineImage
	MaxOutputTokens int32
	// JSON asks the provider for a JSON response body where supported.
	JSON bool
}

// TextGateway produces free text from a prompt.
type TextGateway interface {
	Generate(ctx context.Context, req TextRequest) (string, error)
}

// Quality selects the image generation quality hint.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// ParseQuality maps free text onto a Quality, defaulting to standard.
func ParseQuality(s string) Quality {
	if Quality(s) == QualityHigh {
		return QualityHigh
	}
	return QualityStandard
}

// ImageRequest describes one scene image.
type ImageRequest struct {
	Prompt      string
	Style       string
	Quality     Quality
	AspectRatio string
	Count       int
}

// ImageResult is one generated image. FileReference is where the image
// was stored.
type ImageResult struct {
	FileReference string
	MIMEType      string
	Bytes         int
}

// ImageGateway produces images and stores them.
type ImageGateway interface {
	Generate(ctx context.Context, req ImageRequest) ([]ImageResult, error)
}

// GeneratedImage is the raw output of an ImageBackend.
type GeneratedImage struct {
	Data     []byte
	MIMEType string
	// Text is any commentary the model returned with the image.
	Text string
}

// ImageBackend is a provider that turns one prompt into image bytes.
type ImageBackend interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*GeneratedImage, error)
	Name() string
}

// ImageLabel returns the text label placed before the image at 1-based
// position n in a multimodal prompt.
func ImageLabel(n int) string {
	return fmt.Sprintf("Image %d:", n)
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
