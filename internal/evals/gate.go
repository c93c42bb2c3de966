package evals

import (
	"fmt"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
)

// Quality levels, highest first.
const (
	LevelExcellent        = "excellent"
	LevelGood             = "good"
	LevelAcceptable       = "acceptable"
	LevelNeedsImprovement = "needs improvement"
	LevelPoor             = "poor"
	LevelFailing          = "failing"
)

var levelFloors = []struct {
	min   float64
	level string
}{
	{0.9, LevelExcellent},
	{0.8, LevelGood},
	{0.7, LevelAcceptable},
	{0.6, LevelNeedsImprovement},
	{0.5, LevelPoor},
}

// Level names the quality band a score falls in.
func Level(score float64) string {
	for _, f := range levelFloors {
		if score >= f.min {
			return f.level
		}
	}
	return LevelFailing
}

// RequiredMetrics are the storyboard metrics the gate and CI suite use by
// default.
var RequiredMetrics = []string{"structure", "visualPromptQuality", "storyContentCompleteness"}

// Gate averages a set of metrics and compares the mean to Threshold.
type Gate struct {
	Metrics   []string
	Threshold float64
}

// GateResult is one gate decision.
type GateResult struct {
	Scores    map[string]float64 `json:"scores"`
	Reasons   map[string]string  `json:"reasons,omitempty"`
	Average   float64            `json:"average"`
	Threshold float64            `json:"threshold"`
	Level     string             `json:"level"`
	Passed    bool               `json:"passed"`
}

// Evaluate scores output with every gate metric. An empty metric list uses
// RequiredMetrics; an unknown name is an error.
func (g Gate) Evaluate(input, output string) (*GateResult, error) {
	names := g.Metrics
	if len(names) == 0 {
		names = RequiredMetrics
	}

	res := &GateResult{
		Scores:    make(map[string]float64, len(names)),
		Reasons:   make(map[string]string, len(names)),
		Threshold: g.Threshold,
	}
	var sum float64
	for _, name := range names {
		r, err := ScoreHeuristic(name, input, output)
		if err != nil {
			return nil, fmt.Errorf("quality gate: %w", err)
		}
		res.Scores[name] = r.Score
		if reason, ok := r.Info["reason"].(string); ok {
			res.Reasons[name] = reason
		}
		sum += r.Score
	}
	res.Average = round(sum / float64(len(names)))
	res.Level = Level(res.Average)
	res.Passed = res.Average >= g.Threshold

	metrics.New(metrics.Namespace).
		Metric("QualityGateAverage", res.Average, metrics.UnitNone).
		Property("level", res.Level).
		Property("passed", res.Passed).
		Flush()
	return res, nil
}
