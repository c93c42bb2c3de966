// Command storyboard drives the storyboard pipeline from the terminal: it
// generates storyboards, judges character consistency, scores model output
// with the heuristic metrics, runs the quality-gate suite and serves the
// HTTP API locally.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/logging"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

var emfFlag bool

var rootCmd = &cobra.Command{
	Use:   "storyboard",
	Short: "AI storyboard generator with consistent characters",
	Long: `Storyboard turns a one-line story idea into a screenplay, a scene-by-scene
storyboard with a fixed character roster, one generated image per scene and
an A4 PDF. It can also judge how consistently characters are drawn across
images and score model output with heuristic quality metrics.

Providers, buckets and tables come from the environment
(STORYBOARD_TEXT_PROVIDER, GEMINI_API_KEY, S3_BUCKET, DYNAMO_TABLE_NAME, ...).

Examples:
  storyboard run --idea "A lighthouse keeper befriends a storm" --style Noir
  storyboard evaluate scene1.png scene2.png --character "Mara=red coat, grey braid"
  storyboard score structure --input "A cat chases a mouse" --output-file out.json
  storyboard gate --threshold 0.75
  storyboard serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if !emfFlag {
			metrics.SetOutput(io.Discard)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storyboard %s (built %s)\n", bootstrap.CommitHash, bootstrap.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&emfFlag, "emf", false, "Write CloudWatch EMF metric lines to stdout")
	rootCmd.AddCommand(runCmd, evaluateCmd, scoreCmd, gateCmd, serveCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadApp reads the environment configuration and wires the application.
func loadApp(ctx context.Context, service string) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: service})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return nil, err
	}
	return app, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
