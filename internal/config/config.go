// Package config loads the PipelineConfig that every storyboard binary passes
// into its gateways and orchestrator. Nothing below the command layer reads
// the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured marks an optional external target (upload bucket, webhook,
// event bus) that was never configured. Callers treat it as "skipped".
var ErrNotConfigured = errors.New("not configured")

// Providers.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderImagen  = "imagen"
	ProviderOffline = "offline"
)

// Anchor modes for the step-3 consistency pre-pass.
const (
	AnchorRoster = "roster"
	AnchorLLM    = "llm"
)

// Default model names.
const (
	DefaultGeminiTextModel  = "gemini-3-flash-preview"
	DefaultGeminiImageModel = "gemini-3-pro-image-preview"
	DefaultImagenModel      = "imagen-4.0-generate-001"
	DefaultOpenAIModel      = "gpt-4o"
)

// DefaultSSMKeyParam is the SSM parameter read when GEMINI_API_KEY is unset.
const DefaultSSMKeyParam = "/storyboard/prod/gemini-api-key"

// Models names the model used by each gateway.
type Models struct {
	Text   string
	Judge  string
	Image  string
	OpenAI string
}

// Timeouts bound a single gateway call attempt.
type Timeouts struct {
	Text   time.Duration
	Image  time.Duration
	PDF    time.Duration
	Upload time.Duration
}

// Retry bounds the backoff applied at the gateway boundary.
type Retry struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Upload configures step 5.
type Upload struct {
	Bucket        string
	PresignExpiry time.Duration
	WebhookURL    string
	WebhookSecret string
}

// Configured reports whether any upload target exists.
func (u Upload) Configured() bool {
	return u.Bucket != ""
}

// PipelineConfig is the complete runtime configuration.
type PipelineConfig struct {
	TextProvider  string
	JudgeProvider string
	ImageProvider string

	GeminiAPIKey   string
	SSMKeyParam    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	Models         Models
	Timeouts       Timeouts
	Retry          Retry
	ImageRateEvery time.Duration

	ImageDir   string
	ExportDir  string
	AnchorMode string
	PromptsDir string

	Upload Upload

	DynamoTable      string
	EventBus         string
	QualityThreshold float64
}

// Default returns the configuration used when no environment is set.
func Default() PipelineConfig {
	return PipelineConfig{
		TextProvider:  ProviderGemini,
		JudgeProvider: ProviderGemini,
		ImageProvider: ProviderGemini,
		SSMKeyParam:   DefaultSSMKeyParam,
		Models: Models{
			Text:   DefaultGeminiTextModel,
			Judge:  DefaultGeminiTextModel,
			Image:  DefaultGeminiImageModel,
			OpenAI: DefaultOpenAIModel,
		},
		Timeouts: Timeouts{
			Text:   2 * time.Minute,
			Image:  3 * time.Minute,
			PDF:    time.Minute,
			Upload: 2 * time.Minute,
		},
		Retry: Retry{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     20 * time.Second,
		},
		ImageRateEvery:   time.Second,
		ImageDir:         "generated-images",
		ExportDir:        "generated-exports",
		AnchorMode:       AnchorRoster,
		Upload:           Upload{PresignExpiry: time.Hour},
		QualityThreshold: 0.7,
	}
}

// Load reads the configuration from the environment on top of Default.
// Malformed numeric or duration values are reported with the variable name.
func Load() (PipelineConfig, error) {
	cfg := Default()
	var errs []error

	cfg.TextProvider = strings.ToLower(envOr("STORYBOARD_TEXT_PROVIDER", cfg.TextProvider))
	cfg.JudgeProvider = strings.ToLower(envOr("STORYBOARD_JUDGE_PROVIDER", cfg.TextProvider))
	cfg.ImageProvider = strings.ToLower(envOr("STORYBOARD_IMAGE_PROVIDER", cfg.ImageProvider))

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.SSMKeyParam = envOr("SSM_API_KEY_PARAM", cfg.SSMKeyParam)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.Models.Text = envOr("GEMINI_MODEL", cfg.Models.Text)
	cfg.Models.OpenAI = envOr("OPENAI_MODEL", cfg.Models.OpenAI)
	judgeDefault := cfg.Models.Text
	if cfg.JudgeProvider == ProviderOpenAI {
		judgeDefault = cfg.Models.OpenAI
	}
	cfg.Models.Judge = envOr("STORYBOARD_JUDGE_MODEL", judgeDefault)
	imageDefault := cfg.Models.Image
	if cfg.ImageProvider == ProviderImagen {
		imageDefault = DefaultImagenModel
	}
	cfg.Models.Image = envOr("STORYBOARD_IMAGE_MODEL", imageDefault)

	cfg.Timeouts.Text = envDuration("STORYBOARD_TEXT_TIMEOUT", cfg.Timeouts.Text, &errs)
	cfg.Timeouts.Image = envDuration("STORYBOARD_IMAGE_TIMEOUT", cfg.Timeouts.Image, &errs)
	cfg.Timeouts.PDF = envDuration("STORYBOARD_PDF_TIMEOUT", cfg.Timeouts.PDF, &errs)
	cfg.Timeouts.Upload = envDuration("STORYBOARD_UPLOAD_TIMEOUT", cfg.Timeouts.Upload, &errs)

	cfg.Retry.MaxAttempts = envInt("STORYBOARD_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts, &errs)
	cfg.Retry.InitialInterval = envDuration("STORYBOARD_RETRY_INITIAL_INTERVAL", cfg.Retry.InitialInterval, &errs)
	cfg.Retry.MaxInterval = envDuration("STORYBOARD_RETRY_MAX_INTERVAL", cfg.Retry.MaxInterval, &errs)
	cfg.ImageRateEvery = envDuration("STORYBOARD_IMAGE_RATE_INTERVAL", cfg.ImageRateEvery, &errs)

	cfg.ImageDir = envOr("STORYBOARD_IMAGE_DIR", cfg.ImageDir)
	cfg.ExportDir = envOr("STORYBOARD_EXPORT_DIR", cfg.ExportDir)
	cfg.AnchorMode = strings.ToLower(envOr("STORYBOARD_ANCHOR_MODE", cfg.AnchorMode))
	cfg.PromptsDir = os.Getenv("STORYBOARD_PROMPTS_DIR")

	cfg.Upload.Bucket = os.Getenv("S3_BUCKET")
	cfg.Upload.PresignExpiry = envDuration("STORYBOARD_PRESIGN_EXPIRY", cfg.Upload.PresignExpiry, &errs)
	cfg.Upload.WebhookURL = os.Getenv("ZAPIER_WEBHOOK_URL")
	cfg.Upload.WebhookSecret = os.Getenv("ZAPIER_WEBHOOK_SECRET")

	cfg.DynamoTable = os.Getenv("DYNAMO_TABLE_NAME")
	cfg.EventBus = os.Getenv("EVENT_BUS_NAME")
	cfg.QualityThreshold = envFloat("STORYBOARD_QUALITY_THRESHOLD", cfg.QualityThreshold, &errs)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks enumerated values and bounds.
func (c PipelineConfig) Validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unsupported value %q (allowed: %s)", name, value, strings.Join(allowed, ", ")))
	}
	check("STORYBOARD_TEXT_PROVIDER", c.TextProvider, ProviderGemini, ProviderOpenAI, ProviderOffline)
	check("STORYBOARD_JUDGE_PROVIDER", c.JudgeProvider, ProviderGemini, ProviderOpenAI, ProviderOffline)
	check("STORYBOARD_IMAGE_PROVIDER", c.ImageProvider, ProviderGemini, ProviderImagen, ProviderOffline)
	check("STORYBOARD_ANCHOR_MODE", c.AnchorMode, AnchorRoster, AnchorLLM)

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("STORYBOARD_RETRY_MAX_ATTEMPTS: must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		errs = append(errs, fmt.Errorf("STORYBOARD_QUALITY_THRESHOLD: must be within [0,1], got %g", c.QualityThreshold))
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}
