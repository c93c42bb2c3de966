package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STORYBOARD_TEXT_PROVIDER", "STORYBOARD_JUDGE_PROVIDER", "STORYBOARD_IMAGE_PROVIDER",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "GEMINI_MODEL", "OPENAI_MODEL",
		"STORYBOARD_JUDGE_MODEL", "STORYBOARD_IMAGE_MODEL", "STORYBOARD_TEXT_TIMEOUT",
		"STORYBOARD_RETRY_MAX_ATTEMPTS", "STORYBOARD_IMAGE_RATE_INTERVAL", "S3_BUCKET",
		"ZAPIER_WEBHOOK_URL", "DYNAMO_TABLE_NAME", "EVENT_BUS_NAME", "STORYBOARD_ANCHOR_MODE",
		"STORYBOARD_QUALITY_THRESHOLD", "STORYBOARD_PRESIGN_EXPIRY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TextProvider != ProviderGemini || cfg.JudgeProvider != ProviderGemini {
		t.Errorf("providers = %q/%q", cfg.TextProvider, cfg.JudgeProvider)
	}
	if cfg.Models.Text != DefaultGeminiTextModel || cfg.Models.Image != DefaultGeminiImageModel {
		t.Errorf("models = %+v", cfg.Models)
	}
	if cfg.Timeouts.Image != 3*time.Minute || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("timeouts/retry = %+v %+v", cfg.Timeouts, cfg.Retry)
	}
	if cfg.ExportDir != "generated-exports" || cfg.ImageDir != "generated-images" {
		t.Errorf("dirs = %q %q", cfg.ImageDir, cfg.ExportDir)
	}
	if cfg.Upload.Configured() {
		t.Error("upload should not be configured without S3_BUCKET")
	}
	if cfg.Upload.PresignExpiry != time.Hour {
		t.Errorf("presign expiry = %v", cfg.Upload.PresignExpiry)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORYBOARD_TEXT_PROVIDER", "OpenAI")
	t.Setenv("STORYBOARD_IMAGE_PROVIDER", "imagen")
	t.Setenv("STORYBOARD_TEXT_TIMEOUT", "45s")
	t.Setenv("STORYBOARD_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("S3_BUCKET", "storyboards")
	t.Setenv("STORYBOARD_ANCHOR_MODE", "llm")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TextProvider != ProviderOpenAI {
		t.Errorf("text provider = %q", cfg.TextProvider)
	}
	if cfg.JudgeProvider != ProviderOpenAI {
		t.Errorf("judge provider should follow text provider, got %q", cfg.JudgeProvider)
	}
	if cfg.Models.Judge != DefaultOpenAIModel {
		t.Errorf("judge model = %q", cfg.Models.Judge)
	}
	if cfg.Models.Image != DefaultImagenModel {
		t.Errorf("image model = %q", cfg.Models.Image)
	}
	if cfg.Timeouts.Text != 45*time.Second {
		t.Errorf("text timeout = %v", cfg.Timeouts.Text)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("max attempts = %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Upload.Configured() || cfg.AnchorMode != AnchorLLM {
		t.Errorf("upload=%v anchor=%q", cfg.Upload.Configured(), cfg.AnchorMode)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORYBOARD_TEXT_TIMEOUT", "soon")
	t.Setenv("STORYBOARD_RETRY_MAX_ATTEMPTS", "many")
	t.Setenv("STORYBOARD_IMAGE_PROVIDER", "dalle")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"STORYBOARD_TEXT_TIMEOUT", "STORYBOARD_RETRY_MAX_ATTEMPTS", "STORYBOARD_IMAGE_PROVIDER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_Bounds(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	cfg.QualityThreshold = 1.5
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "MAX_ATTEMPTS") || !strings.Contains(err.Error(), "QUALITY_THRESHOLD") {
		t.Errorf("unexpected error: %v", err)
	}
}
