package storyboard

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxImagePromptLen bounds the base image prompt derived from a scene.
const MaxImagePromptLen = 200

var (
	// **INT. KITCHEN - DAY** style headings are removed with their content.
	boldSpan = regexp.MustCompile(`\*\*[^*]+\*\*`)
	// "--- **SCENE 3**" transitions.
	sceneTransition = regexp.MustCompile(`---\s*\*\*SCENE\s+\d+\*\*`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// CleanDescription strips markdown headings and scene transitions from
// scene text and collapses whitespace.
func CleanDescription(s string) string {
	s = sceneTransition.ReplaceAllString(s, "")
	s = boldSpan.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanImagePrompt is CleanDescription truncated to MaxImagePromptLen characters.
func CleanImagePrompt(s string) string {
	return Truncate(CleanDescription(s), MaxImagePromptLen)
}

// BaseImagePrompt derives the pre-anchoring prompt for a scene. The narrative
// is preferred; the scene's own image prompt is used when the narrative
// cleans down to nothing.
func BaseImagePrompt(sc Scene) string {
	if p := CleanImagePrompt(sc.StoryContent); p != "" {
		return p
	}
	return CleanImagePrompt(sc.ImagePrompt)
}

// Truncate returns at most n characters of s without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// PlainText renders markdown to plain text: emphasis markers, heading
// hashes, link syntax and code fences are dropped, paragraph breaks kept.
func PlainText(markdown string) string {
	source := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.NextSibling() != nil {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString(" ")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					buf.Write(t.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := strings.TrimSpace(buf.String())
	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
