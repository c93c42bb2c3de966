package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

// OpenAIText is a TextGateway for OpenAI-compatible chat completion APIs.
// Images are sent as base64 data URIs.
type OpenAIText struct {
	client    openai.Client
	model     string
	operation string
}

// OpenAIOptions configures NewOpenAIText.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Operation  string
	HTTPClient *http.Client
}

// NewOpenAIText creates the gateway. SDK-level retries are disabled; the
// gateway package owns retry policy.
func NewOpenAIText(opts OpenAIOptions) (*OpenAIText, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	model := opts.Model
	if model == "" {
		model = ModelGPT4o
	}
	op := opts.Operation
	if op == "" {
		op = "text"
	}
	return &OpenAIText{client: openai.NewClient(reqOpts...), model: model, operation: op}, nil
}

// Generate sends one chat completion.
func (o *OpenAIText) Generate(ctx context.Context, req TextRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if len(req.Images) == 0 {
		messages = append(messages, openai.UserMessage(req.Prompt))
	} else {
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 2*len(req.Images)+1)
		parts = append(parts, openai.TextContentPart(req.Prompt))
		for _, img := range req.Images {
			if img.Label != "" {
				parts = append(parts, openai.TextContentPart(img.Label))
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURI(img.MIMEType, img.Data),
			}))
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: messages,
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", o.operation).
		Metric("OpenAIApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("OpenAIApiCalls")
	if err != nil {
		m.Count("OpenAIApiErrors")
	}
	if resp != nil {
		m.Metric("OpenAIInputTokens", float64(resp.Usage.PromptTokens), metrics.UnitCount)
		m.Metric("OpenAIOutputTokens", float64(resp.Usage.CompletionTokens), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Str("model", o.model).Dur("duration", elapsed).Msg("OpenAI API call failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai chat completion: %w", gateway.ErrEmptyResponse)
	}

	log.Debug().
		Str("model", o.model).
		Int("response_length", len(resp.Choices[0].Message.Content)).
		Dur("duration", elapsed).
		Msg("OpenAI API response received")
	return resp.Choices[0].Message.Content, nil
}

func dataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
