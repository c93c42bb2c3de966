// Package main provides the Lambda entry point for the storyboard HTTP API.
//
// The function sits behind an API Gateway HTTP API (payload v2) and serves:
//   - GET  /api/health
//   - POST /api/runs, GET /api/runs/{id}
//   - POST /api/evaluate
//   - POST /api/score/{metric}
//   - POST /api/webhooks/drive (HMAC-verified Drive callback)
//
// Configuration comes from the environment. The Gemini API key is read from
// SSM Parameter Store at cold start when GEMINI_API_KEY is unset.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/api"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	if os.Getenv("STORYBOARD_LOG_FORMAT") == "" {
		os.Setenv("STORYBOARD_LOG_FORMAT", "json")
	}
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	// Lambda only allows writes under /tmp.
	if os.Getenv("STORYBOARD_IMAGE_DIR") == "" {
		cfg.ImageDir = "/tmp/generated-images"
	}
	if os.Getenv("STORYBOARD_EXPORT_DIR") == "" {
		cfg.ExportDir = "/tmp/generated-exports"
	}

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Service: "storyboard-lambda"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	adapter = httpadapter.NewV2(api.NewHandler(api.FromApp(app)))
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
