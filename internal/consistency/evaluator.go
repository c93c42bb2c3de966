package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/jsonutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

const judgeMaxTokens = 4096

// Context is the optional material the judge sees next to the images.
type Context struct {
	Description    string                 `json:"description,omitempty"`
	StoryboardJSON string                 `json:"storyboardJson,omitempty"`
	Characters     []storyboard.Character `json:"characters,omitempty"`
}

// Evaluator runs the consistency judge.
type Evaluator struct {
	text    chat.TextGateway
	loader  *Loader
	prompts *assets.Prompts
}

// NewEvaluator creates an Evaluator. A nil loader gets default options and
// nil prompts selects the embedded set.
func NewEvaluator(text chat.TextGateway, loader *Loader, prompts *assets.Prompts) *Evaluator {
	if loader == nil {
		loader = NewLoader(LoaderOptions{})
	}
	if prompts == nil {
		prompts = assets.Default()
	}
	return &Evaluator{text: text, loader: loader, prompts: prompts}
}

// Evaluate scores refs. No images, or none loadable, yields score 0 with a
// reason and no judge call. Gateway failures are returned as errors and a
// malformed judge answer as *ValidationError.
func (e *Evaluator) Evaluate(ctx context.Context, refs []string, ec Context) (*Report, error) {
	start := time.Now()
	if len(refs) == 0 {
		return emptyReport("No images provided for consistency evaluation"), nil
	}

	loaded, err := e.loader.LoadAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	var images []chat.InlineImage
	var dropped []int
	for i, img := range loaded {
		if img == nil {
			dropped = append(dropped, i+1)
			continue
		}
		images = append(images, chat.InlineImage{Label: chat.ImageLabel(i + 1), MIMEType: img.MIMEType, Data: img.Data})
	}
	if len(images) == 0 {
		r := emptyReport(fmt.Sprintf("None of the %d images could be loaded for consistency evaluation", len(refs)))
		r.DroppedImages = dropped
		return r, nil
	}

	prompt, err := e.prompts.Judge(assets.JudgeData{
		Description:    ec.Description,
		StoryboardJSON: ec.StoryboardJSON,
		ImageCount:     len(images),
		Characters:     ec.Characters,
	})
	if err != nil {
		return nil, fmt.Errorf("render judge prompt: %w", err)
	}

	raw, err := e.text.Generate(ctx, chat.TextRequest{
		System:          e.prompts.JudgeSystem,
		Prompt:          prompt,
		Images:          images,
		MaxOutputTokens: judgeMaxTokens,
		JSON:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("consistency judge: %w", err)
	}

	resp, err := jsonutil.ParseObject[judgeResponse](raw)
	if err != nil {
		return nil, &ValidationError{Reason: "response is not a JSON object", Err: err}
	}
	if err := resp.validate(len(refs)); err != nil {
		log.Warn().Err(err).Str("preview", jsonutil.Preview(raw, 200)).Msg("Judge response failed validation")
		return nil, err
	}

	report := resp.report()
	report.TotalImages = len(images)
	report.DroppedImages = dropped

	elapsed := time.Since(start)
	metrics.New(metrics.Namespace).
		Duration("ConsistencyEvalLatencyMs", elapsed).
		Metric("ConsistencyScore", report.Score, metrics.UnitNone).
		Metric("ConsistencyImagesDropped", float64(len(dropped)), metrics.UnitCount).
		Flush()
	log.Info().
		Float64("score", report.Score).
		Float64("character_score", report.CharacterScore).
		Float64("environment_score", report.EnvironmentConsistency.Score).
		Int("images", len(images)).
		Int("dropped", len(dropped)).
		Dur("duration", elapsed).
		Msg("Consistency evaluation complete")
	return report, nil
}

// IsValidationError reports whether err is a judge schema violation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func emptyReport(reason string) *Report {
	return &Report{
		Score:             0,
		Reason:            reason,
		PerCharacter:      []CharacterReport{},
		PerImageAnalysis:  []ImageAnalysis{},
		ConsistencyIssues: []string{reason},
		EnvironmentConsistency: EnvironmentReport{
			Issues:   []string{},
			Elements: []EnvironmentElement{},
		},
	}
}
