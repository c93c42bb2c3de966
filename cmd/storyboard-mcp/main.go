// Command storyboard-mcp exposes the storyboard pipeline, the consistency
// judge and the heuristic metrics as MCP tools over stdio.
//
// stdout carries the protocol, so logs go to stderr and EMF metric output is
// discarded.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/logging"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

func main() {
	logging.Init()
	metrics.SetOutput(io.Discard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "storyboard-mcp"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	server := newServer(app)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server stopped")
	}
}
