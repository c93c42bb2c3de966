package evals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/jsonutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// DefaultPassRate is the share of scenarios that must pass for the suite
// to succeed.
const DefaultPassRate = 0.8

// Scenario is one story idea with the average score it must reach.
type Scenario struct {
	Name     string  `json:"name"`
	Input    string  `json:"input"`
	MinScore float64 `json:"expectedMinScore"`
}

// DefaultScenarios cover a short chase, a multi-beat fantasy and a
// dialogue-driven drama.
var DefaultScenarios = []Scenario{
	{
		Name:     "Simple Story",
		Input:    "A cat chases a mouse around the house.",
		MinScore: 0.7,
	},
	{
		Name:     "Complex Fantasy",
		Input:    "A young wizard discovers a magical book that summons a dragon. The dragon is lost and the wizard must help it find its way home through a mystical forest.",
		MinScore: 0.8,
	},
	{
		Name:     "Character-Driven Drama",
		Input:    "Two friends argue about a lost treasure map. One wants to keep searching, the other wants to give up. Their friendship is tested.",
		MinScore: 0.75,
	},
}

// Suite runs scenarios through the storyboard prompt and scores the
// responses with a metric set.
type Suite struct {
	Text    chat.TextGateway
	Prompts *assets.Prompts

	// Zero values select DefaultScenarios, RequiredMetrics and
	// DefaultPassRate.
	Scenarios []Scenario
	Metrics   []string
	PassRate  float64
}

// ScenarioResult is one scenario outcome.
type ScenarioResult struct {
	Scenario string             `json:"scenario"`
	Scores   map[string]float64 `json:"scores"`
	Average  float64            `json:"averageScore"`
	MinScore float64            `json:"expectedMinScore"`
	Passed   bool               `json:"passed"`
	Output   string             `json:"output,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// SuiteReport summarises a suite run.
type SuiteReport struct {
	Results  []ScenarioResult `json:"results"`
	Passed   int              `json:"passed"`
	Total    int              `json:"total"`
	PassRate float64          `json:"passRate"`
	Success  bool             `json:"success"`
}

// Run executes every scenario in order. A text gateway failure fails that
// scenario only; cancellation stops the suite.
func (s *Suite) Run(ctx context.Context) (*SuiteReport, error) {
	if s.Text == nil {
		return nil, errors.New("eval suite: text gateway is required")
	}
	prompts := s.Prompts
	if prompts == nil {
		prompts = assets.Default()
	}
	scenarios := s.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios
	}
	names := s.Metrics
	if len(names) == 0 {
		names = RequiredMetrics
	}
	for _, name := range names {
		if !Known(name) {
			return nil, fmt.Errorf("eval suite: %w: %q", ErrUnknownMetric, name)
		}
	}
	passRate := s.PassRate
	if passRate <= 0 {
		passRate = DefaultPassRate
	}

	report := &SuiteReport{Total: len(scenarios)}
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := s.runScenario(ctx, prompts, sc, names)
		if res.Passed {
			report.Passed++
		}
		report.Results = append(report.Results, res)
	}
	if report.Total > 0 {
		report.PassRate = round(float64(report.Passed) / float64(report.Total))
	}
	report.Success = report.PassRate >= passRate

	log.Info().
		Int("passed", report.Passed).
		Int("total", report.Total).
		Float64("pass_rate", report.PassRate).
		Bool("success", report.Success).
		Msg("Evaluation suite finished")
	return report, nil
}

func (s *Suite) runScenario(ctx context.Context, prompts *assets.Prompts, sc Scenario, names []string) ScenarioResult {
	res := ScenarioResult{Scenario: sc.Name, MinScore: sc.MinScore, Scores: map[string]float64{}}
	start := time.Now()

	prompt, err := prompts.Storyboard(assets.StoryboardData{Script: sc.Input, Title: sc.Name, Style: storyboard.DefaultStyle})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	output, err := s.Text.Generate(ctx, chat.TextRequest{
		System: prompts.StoryboardSystem,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		log.Warn().Err(err).Str("scenario", sc.Name).Msg("Scenario generation failed")
		res.Error = err.Error()
		return res
	}
	res.Output = jsonutil.Preview(output, 200)

	gate, err := Gate{Metrics: names, Threshold: sc.MinScore}.Evaluate(sc.Input, output)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Scores = gate.Scores
	res.Average = gate.Average
	res.Passed = gate.Passed

	log.Debug().
		Str("scenario", sc.Name).
		Float64("average", res.Average).
		Bool("passed", res.Passed).
		Dur("elapsed", time.Since(start)).
		Msg("Scenario scored")
	return res
}
