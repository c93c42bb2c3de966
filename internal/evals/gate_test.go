package evals

import (
	"errors"
	"testing"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{1, LevelExcellent},
		{0.9, LevelExcellent},
		{0.85, LevelGood},
		{0.7, LevelAcceptable},
		{0.65, LevelNeedsImprovement},
		{0.5, LevelPoor},
		{0.49, LevelFailing},
		{0, LevelFailing},
	}
	for _, tt := range tests {
		if got := Level(tt.score); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestGate_DefaultsToRequiredMetrics(t *testing.T) {
	quiet(t)
	res, err := Gate{Threshold: 0.9}.Evaluate(wizardScript, wizardStoryboard)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Scores) != len(RequiredMetrics) {
		t.Errorf("scored %d metrics, want %d", len(res.Scores), len(RequiredMetrics))
	}
	if !res.Passed || res.Average != 1 || res.Level != LevelExcellent {
		t.Errorf("unexpected gate result: %+v", res)
	}
}

func TestGate_Averages(t *testing.T) {
	quiet(t)
	out := `{"data":{"content":"x"},"format":"pdf"}`
	res, err := Gate{Metrics: []string{"exportFormat", "exportCompleteness"}, Threshold: 0.75}.Evaluate("", out)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(res.Average, 0.7) {
		t.Errorf("average = %v, want 0.7", res.Average)
	}
	if res.Passed {
		t.Error("gate passed below threshold")
	}
	if res.Level != LevelAcceptable {
		t.Errorf("level = %q", res.Level)
	}
	if res.Reasons["exportFormat"] == "" {
		t.Error("missing per-metric reason")
	}
}

func TestGate_UnknownMetric(t *testing.T) {
	quiet(t)
	_, err := Gate{Metrics: []string{"structure", "nope"}}.Evaluate("", "{}")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}
