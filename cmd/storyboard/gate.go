package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/evals"
)

// errGateFailed makes the command exit non-zero without extra output.
var errGateFailed = errors.New("quality gate failed")

var gateFlags struct {
	scenarios  string
	metrics    []string
	threshold  float64
	passRate   float64
	input      string
	outputFile string
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the storyboard quality gate",
	Long: `Gate generates a storyboard for each scenario with the configured text
provider and scores it with the required heuristic metrics. The command exits
non-zero when fewer than --pass-rate of the scenarios reach their minimum.

With --output-file an existing storyboard is scored instead and compared with
--threshold (default STORYBOARD_QUALITY_THRESHOLD).

Examples:
  storyboard gate
  storyboard gate --scenarios scenarios.json --threshold 0.75
  storyboard gate --input "A cat chases a mouse" --output-file storyboard.json`,
	Args: cobra.NoArgs,
	RunE: runGate,
}

func init() {
	f := gateCmd.Flags()
	f.StringVar(&gateFlags.scenarios, "scenarios", "", "JSON file of scenarios [{name,input,expectedMinScore}]")
	f.StringSliceVar(&gateFlags.metrics, "metrics", nil, "Metrics to apply (default: structure, visualPromptQuality, storyContentCompleteness)")
	f.Float64Var(&gateFlags.threshold, "threshold", 0, "Minimum average score; overrides each scenario's minimum")
	f.Float64Var(&gateFlags.passRate, "pass-rate", evals.DefaultPassRate, "Fraction of scenarios that must pass")
	f.StringVar(&gateFlags.input, "input", "", "Story input for --output-file")
	f.StringVar(&gateFlags.outputFile, "output-file", "", "Score this storyboard output instead of generating")
}

func runGate(cmd *cobra.Command, args []string) error {
	if gateFlags.outputFile != "" {
		return runSingleGate(cmd)
	}

	scenarios, err := loadScenarios(gateFlags.scenarios)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threshold") {
		for i := range scenarios {
			scenarios[i].MinScore = gateFlags.threshold
		}
	}

	ctx := cmd.Context()
	app, err := loadApp(ctx, "storyboard-gate")
	if err != nil {
		return err
	}
	suite := &evals.Suite{
		Text:      app.Text,
		Prompts:   app.Prompts,
		Scenarios: scenarios,
		Metrics:   gateFlags.metrics,
		PassRate:  gateFlags.passRate,
	}
	report, err := suite.Run(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Success {
		log.Error().Int("passed", report.Passed).Int("total", report.Total).Msg("Quality gate failed")
		return errGateFailed
	}
	return nil
}

func runSingleGate(cmd *cobra.Command) error {
	threshold := gateFlags.threshold
	if !cmd.Flags().Changed("threshold") {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		threshold = cfg.QualityThreshold
	}
	output, err := readOutput(cmd.InOrStdin(), gateFlags.outputFile)
	if err != nil {
		return err
	}
	res, err := evals.Gate{Metrics: gateFlags.metrics, Threshold: threshold}.Evaluate(gateFlags.input, output)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Passed {
		return errGateFailed
	}
	return nil
}

// loadScenarios reads a scenario file, or returns a copy of the defaults.
func loadScenarios(path string) ([]evals.Scenario, error) {
	if path == "" {
		return append([]evals.Scenario(nil), evals.DefaultScenarios...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var scenarios []evals.Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("parse scenarios %s: %w", path, err)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenarios %s: no scenarios defined", path)
	}
	return scenarios, nil
}
