package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/evals"
)

var scoreFlags struct {
	input      string
	outputFile string
}

var scoreCmd = &cobra.Command{
	Use:   "score <metric>",
	Short: "Score model output with a heuristic metric",
	Long: `Score runs one heuristic quality metric over a JSON model output and prints
the score with the per-check breakdown. Use "-" as --output-file to read stdin.

Metrics: ` + strings.Join(evals.Names(), ", ") + `

Examples:
  storyboard score structure --input "A cat chases a mouse" --output-file storyboard.json
  cat export.json | storyboard score exportReadiness --output-file -`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreFlags.input, "input", "", "The input the output was produced from")
	f.StringVar(&scoreFlags.outputFile, "output-file", "-", "File holding the model output")
}

func runScore(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !evals.Known(name) {
		return fmt.Errorf("%w: %s (known: %s)", evals.ErrUnknownMetric, name, strings.Join(evals.Names(), ", "))
	}
	output, err := readOutput(cmd.InOrStdin(), scoreFlags.outputFile)
	if err != nil {
		return err
	}
	res, err := evals.ScoreHeuristic(name, scoreFlags.input, output)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"metric": name,
		"score":  res.Score,
		"level":  evals.Level(res.Score),
		"info":   res.Info,
	})
}

func readOutput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	return string(data), nil
}
