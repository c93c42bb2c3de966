package chat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

// GeminiOptions tunes NewGeminiClient. Zero values use the public endpoint.
type GeminiOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiClient creates a genai client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiOptions) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiText is a TextGateway backed by a Gemini text model.
type GeminiText struct {
	client    *genai.Client
	model     string
	operation string
}

// NewGeminiText returns a gateway calling model. operation names the call
// site in emitted metrics ("text", "judge").
func NewGeminiText(client *genai.Client, model, operation string) *GeminiText {
	if model == "" {
		model = ModelGemini3FlashPreview
	}
	if operation == "" {
		operation = "text"
	}
	return &GeminiText{client: client, model: model, operation: operation}
}

// Generate sends the prompt and any images in a single user turn.
func (g *GeminiText) Generate(ctx context.Context, req TextRequest) (string, error) {
	parts := make([]*genai.Part, 0, 2*len(req.Images)+1)
	for _, img := range req.Images {
		if img.Label != "" {
			parts = append(parts, &genai.Part{Text: img.Label})
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	log.Debug().
		Str("model", g.model).
		Str("operation", g.operation).
		Int("prompt_length", len(req.Prompt)).
		Int("images", len(req.Images)).
		Msg("Starting Gemini API call")

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", g.operation).
		Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Str("model", g.model).Dur("duration", elapsed).Msg("Gemini API call failed")
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || resp.Text() == "" {
		return "", fmt.Errorf("gemini generate: %w", gateway.ErrEmptyResponse)
	}

	text := resp.Text()
	log.Debug().
		Str("model", g.model).
		Int("response_length", len(text)).
		Dur("duration", elapsed).
		Msg("Gemini API response received")
	return text, nil
}
