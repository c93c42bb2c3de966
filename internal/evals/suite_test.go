package evals

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
)

// cannedText answers every prompt with the same storyboard, failing for
// prompts that contain failOn.
type cannedText struct {
	output string
	failOn string
	calls  int
}

func (c *cannedText) Generate(ctx context.Context, req chat.TextRequest) (string, error) {
	c.calls++
	if c.failOn != "" && strings.Contains(req.Prompt, c.failOn) {
		return "", errors.New("model unavailable")
	}
	return "```json\n" + c.output + "\n```", nil
}

func TestSuite_AllScenariosPass(t *testing.T) {
	quiet(t)
	text := &cannedText{output: wizardStoryboard}
	report, err := (&Suite{Text: text}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text.calls != len(DefaultScenarios) {
		t.Errorf("calls = %d, want %d", text.calls, len(DefaultScenarios))
	}
	if !report.Success || report.Passed != 3 || report.PassRate != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	for _, r := range report.Results {
		if len(r.Scores) != len(RequiredMetrics) {
			t.Errorf("%s: scored %d metrics", r.Scenario, len(r.Scores))
		}
	}
}

func TestSuite_GatewayFailureFailsScenario(t *testing.T) {
	quiet(t)
	text := &cannedText{output: wizardStoryboard, failOn: "wizard"}
	report, err := (&Suite{Text: text}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Passed != 2 || report.Success {
		t.Errorf("unexpected report: passed=%d success=%v", report.Passed, report.Success)
	}
	if !approx(report.PassRate, 2.0/3.0) {
		t.Errorf("pass rate = %v", report.PassRate)
	}
	if report.Results[1].Error == "" || report.Results[1].Passed {
		t.Errorf("fantasy scenario should carry the error: %+v", report.Results[1])
	}
}

func TestSuite_LowScoresFail(t *testing.T) {
	quiet(t)
	text := &cannedText{output: `{"scenes":[{"sceneNumber":1,"storyContent":"x"}]}`}
	report, err := (&Suite{Text: text, PassRate: 0.5}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed != 0 || report.Success {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSuite_Errors(t *testing.T) {
	if _, err := (&Suite{}).Run(context.Background()); err == nil {
		t.Error("expected error without a text gateway")
	}
	_, err := (&Suite{Text: &cannedText{}, Metrics: []string{"nope"}}).Run(context.Background())
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Suite{Text: &cannedText{}}).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
