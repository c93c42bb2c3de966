package chat

// gemini_image.go calls the Gemini image model over REST. The request asks
// for TEXT and IMAGE modalities and reads the first inline image back.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
)

// geminiBaseURL is the Gemini REST API base URL.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiImage is an ImageBackend for the Gemini image model.
type GeminiImage struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiImage creates the backend. An empty baseURL uses the public API.
func NewGeminiImage(apiKey, model, baseURL string) *GeminiImage {
	if model == "" {
		model = ModelGemini3ProImage
	}
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiImage{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		// Per-call deadlines come from the context.
		httpClient: &http.Client{},
	}
}

// --- REST API request/response types ---

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (g *GeminiImage) Name() string { return "gemini" }

// GenerateImage renders prompt into a single image.
func (g *GeminiImage) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*GeneratedImage, error) {
	startTime := time.Now()
	log.Debug().
		Str("model", g.model).
		Str("aspect_ratio", aspectRatio).
		Str("prompt", truncateString(prompt, 100)).
		Msg("Sending prompt to Gemini for image generation")

	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: NormalizeAspectRatio(aspectRatio)},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini image API returned error")
		return nil, &gateway.StatusError{Code: resp.StatusCode, Body: truncateString(string(respBody), 200)}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w: %w", gateway.ErrEmptyResponse, err)
	}
	if geminiResp.Error != nil {
		return nil, &gateway.StatusError{Code: geminiResp.Error.Code, Body: geminiResp.Error.Message}
	}

	result := &GeneratedImage{}
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && result.Data == nil {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				result.Data = decoded
				result.MIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.Data == nil {
		return nil, fmt.Errorf("no image returned in response (text: %s): %w", truncateString(result.Text, 200), gateway.ErrEmptyResponse)
	}

	log.Debug().
		Int("output_bytes", len(result.Data)).
		Str("output_mime", result.MIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image generation complete")

	return result, nil
}
