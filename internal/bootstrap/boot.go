// Package bootstrap assembles the storyboard application from a
// PipelineConfig: AWS clients, the API key from SSM, text and image
// gateways, the PDF renderer, the uploader, the run store and the event
// publisher. Every binary builds its App here so the wiring stays identical
// between the CLI, the Lambda and the MCP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/consistency"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/events"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/logging"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pdf"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/upload"
)

// Build identity, set via -ldflags at build time.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
)

// ParameterAPI is the SSM subset used to read the API key.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Options tune New.
type Options struct {
	// Service names the binary in startup logs.
	Service string
	// HTTPClient is shared by the REST image backends, the webhook and the
	// judge's image loader.
	HTTPClient *http.Client
	// AWS replaces the default AWS config chain when set.
	AWS *aws.Config
}

// App is a fully wired storyboard application.
type App struct {
	Config  config.PipelineConfig
	Prompts *assets.Prompts

	Text   chat.TextGateway
	Judge  chat.TextGateway
	Images chat.ImageGateway
	PDF    *pdf.Renderer

	Uploader *upload.Uploader
	Runs     store.RunStore
	// Events is nil when no event bus is configured.
	Events *events.Publisher

	Orchestrator *pipeline.Orchestrator
	Evaluator    *consistency.Evaluator
}

// New builds an App. AWS configuration is loaded only when a bucket, table,
// event bus or SSM key lookup needs it.
func New(ctx context.Context, cfg config.PipelineConfig, opts Options) (*App, error) {
	start := time.Now()
	if opts.Service == "" {
		opts.Service = "storyboard"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.Timeouts.Image}
	}

	prompts, err := assets.Load(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		awsCfg = opts.AWS
		if awsCfg == nil {
			loaded, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("load AWS config: %w", err)
			}
			log.Debug().Str("region", loaded.Region).Msg("AWS config loaded")
			awsCfg = &loaded
		}
	}

	if usesGemini(cfg) && cfg.GeminiAPIKey == "" {
		key, err := LoadGeminiKey(ctx, ssm.NewFromConfig(*awsCfg), cfg.SSMKeyParam)
		if err != nil {
			return nil, err
		}
		cfg.GeminiAPIKey = key
	}

	b := &builder{cfg: cfg, httpClient: opts.HTTPClient}
	text, err := b.textGateway(ctx, cfg.TextProvider, "text")
	if err != nil {
		return nil, err
	}
	judge, err := b.textGateway(ctx, cfg.JudgeProvider, "judge")
	if err != nil {
		return nil, err
	}
	backend, err := b.imageBackend()
	if err != nil {
		return nil, err
	}
	images := chat.NewImageWriter(backend, cfg.ImageDir, gateway.NewPolicy(cfg.Retry, cfg.Timeouts.Image), cfg.ImageRateEvery)

	app := &App{
		Config:  cfg,
		Prompts: prompts,
		Text:    text,
		Judge:   judge,
		Images:  images,
		PDF:     pdf.NewRenderer(cfg.ExportDir),
		Runs:    store.NewMemoryStore(),
	}

	var objects upload.ObjectAPI
	var presigner upload.Presigner
	if cfg.Upload.Bucket != "" {
		client := s3.NewFromConfig(*awsCfg)
		objects, presigner = client, s3.NewPresignClient(client)
	}
	app.Uploader = upload.NewUploader(objects, presigner, upload.Options{
		Upload:     cfg.Upload,
		ExportDir:  cfg.ExportDir,
		HTTPClient: opts.HTTPClient,
	})
	if cfg.DynamoTable != "" {
		app.Runs = store.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.DynamoTable)
	}
	if cfg.EventBus != "" {
		app.Events = events.NewPublisher(eventbridge.NewFromConfig(*awsCfg), cfg.EventBus)
	}

	deps := pipeline.Deps{
		Text:     text,
		Images:   images,
		PDF:      app.PDF,
		Uploader: app.Uploader,
		Prompts:  prompts,
		Runs:     app.Runs,
	}
	if app.Events != nil {
		deps.Events = app.Events
	}
	app.Orchestrator, err = pipeline.New(cfg, deps)
	if err != nil {
		return nil, err
	}

	loader := consistency.NewLoader(consistency.LoaderOptions{HTTPClient: opts.HTTPClient, S3: objects})
	app.Evaluator = consistency.NewEvaluator(judge, loader, prompts)

	logging.NewStartupLogger(opts.Service).
		CommitHash(CommitHash).
		BuildTime(BuildTime).
		S3Bucket("upload", cfg.Upload.Bucket).
		DynamoTable("runs", cfg.DynamoTable).
		EventBus("events", cfg.EventBus).
		SSMParam("geminiKey", ssmParamIfUsed(cfg)).
		Provider("text", cfg.TextProvider).
		Provider("judge", cfg.JudgeProvider).
		Provider("image", cfg.ImageProvider).
		Feature("webhook", cfg.Upload.WebhookURL != "").
		Feature("webhookSigning", cfg.Upload.WebhookSecret != "").
		Feature("llmAnchoring", cfg.AnchorMode == config.AnchorLLM).
		Config("prompts", prompts.Source).
		Config("imageDir", cfg.ImageDir).
		Config("exportDir", cfg.ExportDir).
		Config("textModel", cfg.Models.Text).
		Config("imageModel", cfg.Models.Image).
		InitDuration(time.Since(start)).
		Log()

	return app, nil
}

// LoadGeminiKey reads the Gemini API key from an SSM SecureString.
func LoadGeminiKey(ctx context.Context, client ParameterAPI, param string) (string, error) {
	if client == nil {
		return "", errors.New("gemini api key is not set and no SSM client is available")
	}
	if param == "" {
		param = config.DefaultSSMKeyParam
	}
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", param, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", param)
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return aws.ToString(result.Parameter.Value), nil
}

func usesGemini(cfg config.PipelineConfig) bool {
	return cfg.TextProvider == config.ProviderGemini ||
		cfg.JudgeProvider == config.ProviderGemini ||
		cfg.ImageProvider == config.ProviderGemini ||
		cfg.ImageProvider == config.ProviderImagen
}

func needsAWS(cfg config.PipelineConfig) bool {
	return cfg.Upload.Bucket != "" || cfg.DynamoTable != "" || cfg.EventBus != "" ||
		(usesGemini(cfg) && cfg.GeminiAPIKey == "")
}

func ssmParamIfUsed(cfg config.PipelineConfig) string {
	if usesGemini(cfg) && cfg.GeminiAPIKey == "" {
		return cfg.SSMKeyParam
	}
	return ""
}

// builder creates gateways, sharing one genai client between the text and
// judge gateways.
type builder struct {
	cfg        config.PipelineConfig
	httpClient *http.Client
	gemini     *genai.Client
}

func (b *builder) geminiClient(ctx context.Context) (*genai.Client, error) {
	if b.gemini != nil {
		return b.gemini, nil
	}
	client, err := chat.NewGeminiClient(ctx, b.cfg.GeminiAPIKey, chat.GeminiOptions{})
	if err != nil {
		return nil, err
	}
	b.gemini = client
	return client, nil
}

// textGateway builds the provider's gateway for operation ("text" or
// "judge") and wraps it with the configured retry policy.
func (b *builder) textGateway(ctx context.Context, provider, operation string) (chat.TextGateway, error) {
	model := b.cfg.Models.Text
	if operation == "judge" {
		model = b.cfg.Models.Judge
	}

	var gw chat.TextGateway
	switch provider {
	case config.ProviderOffline:
		return chat.OfflineText{}, nil
	case config.ProviderOpenAI:
		if operation != "judge" {
			model = b.cfg.Models.OpenAI
		}
		oa, err := chat.NewOpenAIText(chat.OpenAIOptions{
			APIKey:     b.cfg.OpenAIAPIKey,
			BaseURL:    b.cfg.OpenAIBaseURL,
			Model:      model,
			Operation:  operation,
			HTTPClient: b.httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("%s gateway: %w", operation, err)
		}
		gw = oa
	case config.ProviderGemini:
		client, err := b.geminiClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s gateway: %w", operation, err)
		}
		gw = chat.NewGeminiText(client, model, operation)
	default:
		return nil, fmt.Errorf("%s gateway: unsupported provider %q", operation, provider)
	}
	return chat.WithRetry(gw, gateway.NewPolicy(b.cfg.Retry, b.cfg.Timeouts.Text), operation), nil
}

func (b *builder) imageBackend() (chat.ImageBackend, error) {
	switch b.cfg.ImageProvider {
	case config.ProviderOffline:
		return chat.OfflineImage{}, nil
	case config.ProviderImagen:
		return chat.NewImagenImage(b.cfg.GeminiAPIKey, b.cfg.Models.Image, ""), nil
	case config.ProviderGemini:
		return chat.NewGeminiImage(b.cfg.GeminiAPIKey, b.cfg.Models.Image, ""), nil
	}
	return nil, fmt.Errorf("image gateway: unsupported provider %q", b.cfg.ImageProvider)
}
