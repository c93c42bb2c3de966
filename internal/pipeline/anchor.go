package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// continuityClause is appended by RosterAnchorer whenever a roster exists.
const continuityClause = "Keep every character's face, hair, clothing and proportions identical to earlier scenes."

// AnchorInput is one scene's pre-anchoring prompt plus the story roster.
type AnchorInput struct {
	SceneNumber int
	Prompt      string
	Style       string
	Characters  []storyboard.Character
}

// Anchorer folds recurring character descriptions into an image prompt.
// Any error it returns stops the run.
type Anchorer interface {
	Anchor(ctx context.Context, in AnchorInput) (string, error)
}

// AnchorError is the fatal step-3 failure.
type AnchorError struct {
	SceneNumber int
	Err         error
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("consistency anchoring failed for scene %d: %v", e.SceneNumber, e.Err)
}

func (e *AnchorError) Unwrap() error { return e.Err }

// IsAnchorError reports whether err is (or wraps) an AnchorError.
func IsAnchorError(err error) bool {
	var ae *AnchorError
	return errors.As(err, &ae)
}

// RosterAnchorer appends the roster to the prompt without a model call.
type RosterAnchorer struct{}

func (RosterAnchorer) Anchor(ctx context.Context, in AnchorInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(in.Characters) == 0 {
		return in.Prompt, nil
	}

	refs := make([]string, 0, len(in.Characters))
	for _, c := range in.Characters {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		ref := name
		if c.Role != "" {
			ref += " (" + c.Role + ")"
		}
		if d := strings.TrimSpace(c.Description); d != "" {
			ref += ": " + d
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return in.Prompt, nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Prompt))
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString("Character reference: ")
	b.WriteString(strings.Join(refs, "; "))
	b.WriteString(". ")
	b.WriteString(continuityClause)
	return b.String(), nil
}

// LLMAnchorer asks the text gateway to rewrite the prompt.
type LLMAnchorer struct {
	Text    chat.TextGateway
	Prompts *assets.Prompts
}

// NewLLMAnchorer creates an LLMAnchorer; nil prompts selects the embedded set.
func NewLLMAnchorer(text chat.TextGateway, prompts *assets.Prompts) *LLMAnchorer {
	if prompts == nil {
		prompts = assets.Default()
	}
	return &LLMAnchorer{Text: text, Prompts: prompts}
}

func (a *LLMAnchorer) Anchor(ctx context.Context, in AnchorInput) (string, error) {
	prompt, err := a.Prompts.Anchor(assets.AnchorData{Prompt: in.Prompt, Style: in.Style, Characters: in.Characters})
	if err != nil {
		return "", err
	}
	out, err := a.Text.Generate(ctx, chat.TextRequest{
		System:          a.Prompts.AnchorSystem,
		Prompt:          prompt,
		MaxOutputTokens: 512,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("anchoring returned an empty prompt")
	}
	return out, nil
}
