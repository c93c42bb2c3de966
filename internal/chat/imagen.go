package chat

// imagen.go calls Imagen text-to-image through the Gemini API :predict
// endpoint.

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

// ImagenImage is an ImageBackend for Imagen models.
type ImagenImage struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewImagenImage creates the backend. An empty baseURL uses the public API.
func NewImagenImage(apiKey, model, baseURL string) *ImagenImage {
	if model == "" {
		model = ModelImagen4
	}
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &ImagenImage{apiKey: apiKey, model: model, baseURL: baseURL, httpClient: &http.Client{}}
}

// --- :predict request/response types ---

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type imagenResponse struct {
	Predictions []imagenPrediction `json:"predictions"`
	Error       *imagenError       `json:"error,omitempty"`
}

type imagenPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type imagenError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *ImagenImage) Name() string { return "imagen" }

// GenerateImage requests one sample for prompt.
func (c *ImagenImage) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*GeneratedImage, error) {
	log.Debug().
		Str("model", c.model).
		Str("prompt", truncateString(prompt, 100)).
		Str("aspect_ratio", aspectRatio).
		Msg("Starting Imagen API call")

	startTime := time.Now()

	req := imagenRequest{
		Instances: []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{
			SampleCount: 1,
			AspectRatio: NormalizeAspectRatio(aspectRatio),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predict", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	httpDuration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Dur("duration", httpDuration).
		Msg("Imagen HTTP call completed")

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Imagen API returned error")
		return nil, &gateway.StatusError{Code: resp.StatusCode, Body: truncateString(string(respBody), 200)}
	}

	var imagenResp imagenResponse
	if err := json.Unmarshal(respBody, &imagenResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w: %w", gateway.ErrEmptyResponse, err)
	}
	if imagenResp.Error != nil {
		return nil, &gateway.StatusError{Code: imagenResp.Error.Code, Body: imagenResp.Error.Message}
	}
	if len(imagenResp.Predictions) == 0 || imagenResp.Predictions[0].BytesBase64Encoded == "" {
		return nil, fmt.Errorf("no predictions returned from Imagen: %w", gateway.ErrEmptyResponse)
	}

	decoded, err := base64.StdEncoding.DecodeString(imagenResp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response image: %w", err)
	}

	mimeType := imagenResp.Predictions[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &GeneratedImage{Data: decoded, MIMEType: mimeType}, nil
}
