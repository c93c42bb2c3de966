// Package consistency scores how consistently recurring characters and
// environments are drawn across a set of generated images, using a
// vision-capable judge model.
package consistency

import (
	"fmt"
	"math"
)

// Score weights.
const (
	CharacterWeight   = 0.6
	EnvironmentWeight = 0.4
)

// CharacterReport is the judge's view of one recurring character.
type CharacterReport struct {
	Name            string   `json:"name"`
	Consistent      bool     `json:"consistent"`
	Issues          []string `json:"issues"`
	AppearsInImages []int    `json:"appearsInImages"`
}

// EnvironmentElement is one environment aspect (setting, lighting, ...).
type EnvironmentElement struct {
	Element    string `json:"element"`
	Consistent bool   `json:"consistent"`
	Notes      string `json:"notes,omitempty"`
}

// EnvironmentReport is the judge's environment verdict.
type EnvironmentReport struct {
	Consistent bool                 `json:"consistent"`
	Score      float64              `json:"score"`
	Issues     []string             `json:"issues"`
	Elements   []EnvironmentElement `json:"elements"`
}

// ImageAnalysis is the judge's note on one image. ImageIndex is the
// 1-based position in the caller's image list.
type ImageAnalysis struct {
	ImageIndex       int      `json:"imageIndex"`
	CharactersFound  []string `json:"charactersFound"`
	EnvironmentNotes string   `json:"environmentNotes,omitempty"`
	VisualNotes      string   `json:"visualNotes,omitempty"`
}

// Report is the evaluator output. Score is always in [0,1] and computed
// here from the judge's sub-scores.
type Report struct {
	Score                  float64           `json:"score"`
	CharacterScore         float64           `json:"characterScore"`
	Reason                 string            `json:"reason"`
	PerCharacter           []CharacterReport `json:"perCharacter"`
	EnvironmentConsistency EnvironmentReport `json:"environmentConsistency"`
	PerImageAnalysis       []ImageAnalysis   `json:"perImageAnalysis"`
	TotalImages            int               `json:"totalImages"`
	TotalCharacters        int               `json:"totalCharacters"`
	ConsistencyIssues      []string          `json:"consistencyIssues"`
	// DroppedImages lists 1-based positions that could not be loaded.
	DroppedImages []int `json:"droppedImages,omitempty"`
}

// WeightedScore combines the sub-scores and clamps the result to [0,1].
func WeightedScore(character, environment float64) float64 {
	s := CharacterWeight*character + EnvironmentWeight*environment
	return math.Max(0, math.Min(1, s))
}

// ValidationError reports a judge response that does not match the schema.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid judge response: " + e.Reason
	}
	return fmt.Sprintf("invalid judge response: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// judgeResponse mirrors the judge schema. Pointer fields are required. The
// judge's own overall score is never read; WeightedScore replaces it.
type judgeResponse struct {
	CharacterScore         *float64          `json:"characterScore"`
	Reason                 string            `json:"reason"`
	PerCharacter           []CharacterReport `json:"perCharacter"`
	EnvironmentConsistency *struct {
		Consistent bool                 `json:"consistent"`
		Score      *float64             `json:"score"`
		Issues     []string             `json:"issues"`
		Elements   []EnvironmentElement `json:"elements"`
	} `json:"environmentConsistency"`
	PerImageAnalysis  []ImageAnalysis `json:"perImageAnalysis"`
	TotalImages       int             `json:"totalImages"`
	TotalCharacters   int             `json:"totalCharacters"`
	ConsistencyIssues []string        `json:"consistencyIssues"`
}

// validate checks required fields, score ranges and image indices against
// the number of images the caller supplied.
func (j *judgeResponse) validate(imageCount int) error {
	if j.CharacterScore == nil {
		return &ValidationError{Field: "characterScore", Reason: "missing"}
	}
	if err := checkUnit("characterScore", *j.CharacterScore); err != nil {
		return err
	}
	if j.EnvironmentConsistency == nil {
		return &ValidationError{Field: "environmentConsistency", Reason: "missing"}
	}
	if j.EnvironmentConsistency.Score == nil {
		return &ValidationError{Field: "environmentConsistency.score", Reason: "missing"}
	}
	if err := checkUnit("environmentConsistency.score", *j.EnvironmentConsistency.Score); err != nil {
		return err
	}
	for i, c := range j.PerCharacter {
		if c.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("perCharacter[%d].name", i), Reason: "missing"}
		}
		for _, idx := range c.AppearsInImages {
			if idx < 1 || idx > imageCount {
				return &ValidationError{
					Field:  fmt.Sprintf("perCharacter[%d].appearsInImages", i),
					Reason: fmt.Sprintf("index %d outside 1..%d", idx, imageCount),
				}
			}
		}
	}
	for i, a := range j.PerImageAnalysis {
		if a.ImageIndex < 1 || a.ImageIndex > imageCount {
			return &ValidationError{
				Field:  fmt.Sprintf("perImageAnalysis[%d].imageIndex", i),
				Reason: fmt.Sprintf("index %d outside 1..%d", a.ImageIndex, imageCount),
			}
		}
	}
	return nil
}

func checkUnit(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%g outside [0,1]", v)}
	}
	return nil
}

// report converts a validated response.
func (j *judgeResponse) report() *Report {
	env := j.EnvironmentConsistency
	r := &Report{
		CharacterScore: *j.CharacterScore,
		Reason:         j.Reason,
		PerCharacter:   nonNil(j.PerCharacter),
		EnvironmentConsistency: EnvironmentReport{
			Consistent: env.Consistent,
			Score:      *env.Score,
			Issues:     nonNil(env.Issues),
			Elements:   nonNil(env.Elements),
		},
		PerImageAnalysis:  nonNil(j.PerImageAnalysis),
		TotalCharacters:   j.TotalCharacters,
		ConsistencyIssues: nonNil(j.ConsistencyIssues),
	}
	if r.TotalCharacters == 0 {
		r.TotalCharacters = len(r.PerCharacter)
	}
	r.Score = WeightedScore(r.CharacterScore, r.EnvironmentConsistency.Score)
	return r
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
