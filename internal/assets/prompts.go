// Package assets holds the prompt templates sent to the text and vision
// gateways. Defaults are embedded at compile time; any file of the same name
// in an override directory replaces its embedded counterpart, so prompts can
// be versioned and swapped without touching control flow.
package assets

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

//go:embed prompts/*.txt
var embedded embed.FS

// Template file names.
const (
	ScriptSystemFile     = "script-system.txt"
	ScriptFile           = "script.txt"
	StoryboardSystemFile = "storyboard-system.txt"
	StoryboardFile       = "storyboard.txt"
	AnchorSystemFile     = "anchor-system.txt"
	AnchorFile           = "anchor.txt"
	JudgeSystemFile      = "judge-system.txt"
	JudgeFile            = "judge.txt"
)

// DefaultSceneCount is the number of scenes the script prompt asks for.
const DefaultSceneCount = 5

// ScriptData feeds the step-1 prompt.
type ScriptData struct {
	StoryIdea  string
	Title      string
	Genre      string
	Tone       string
	Style      string
	SceneCount int
}

// StoryboardData feeds the step-2 prompt.
type StoryboardData struct {
	Script string
	Title  string
	Style  string
}

// AnchorData feeds the consistency-anchoring rewrite prompt.
type AnchorData struct {
	Prompt     string
	Style      string
	Characters []storyboard.Character
}

// JudgeData feeds the consistency judge prompt.
type JudgeData struct {
	Description    string
	StoryboardJSON string
	ImageCount     int
	Characters     []storyboard.Character
}

// Prompts is a complete, parsed prompt set.
type Prompts struct {
	// Source is "embedded" or the override directory.
	Source string

	ScriptSystem     string
	StoryboardSystem string
	AnchorSystem     string
	JudgeSystem      string

	script     *template.Template
	storyboard *template.Template
	anchor     *template.Template
	judge      *template.Template
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Default returns the embedded prompt set. It panics only if an embedded
// template is malformed, which the package tests rule out.
func Default() *Prompts {
	p, err := Load("")
	if err != nil {
		panic(err)
	}
	return p
}

// Load builds a prompt set, preferring files found in dir over the embedded
// defaults. An empty dir means embedded only.
func Load(dir string) (*Prompts, error) {
	read := func(name string) (string, error) {
		if dir != "" {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err == nil {
				return string(data), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("read prompt override %s: %w", name, err)
			}
		}
		data, err := embedded.ReadFile("prompts/" + name)
		if err != nil {
			return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
		}
		return string(data), nil
	}

	p := &Prompts{Source: "embedded"}
	if dir != "" {
		p.Source = dir
	}

	statics := []struct {
		name string
		dst  *string
	}{
		{ScriptSystemFile, &p.ScriptSystem},
		{StoryboardSystemFile, &p.StoryboardSystem},
		{AnchorSystemFile, &p.AnchorSystem},
		{JudgeSystemFile, &p.JudgeSystem},
	}
	for _, s := range statics {
		text, err := read(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = strings.TrimSpace(text)
	}

	templates := []struct {
		name string
		dst  **template.Template
	}{
		{ScriptFile, &p.script},
		{StoryboardFile, &p.storyboard},
		{AnchorFile, &p.anchor},
		{JudgeFile, &p.judge},
	}
	for _, t := range templates {
		text, err := read(t.name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(t.name).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return p, nil
}

// Script renders the step-1 user prompt.
func (p *Prompts) Script(d ScriptData) (string, error) {
	if d.SceneCount <= 0 {
		d.SceneCount = DefaultSceneCount
	}
	return render(p.script, d)
}

// Storyboard renders the step-2 user prompt.
func (p *Prompts) Storyboard(d StoryboardData) (string, error) {
	return render(p.storyboard, d)
}

// Anchor renders the anchoring rewrite prompt.
func (p *Prompts) Anchor(d AnchorData) (string, error) {
	return render(p.anchor, d)
}

// Judge renders the consistency judge prompt.
func (p *Prompts) Judge(d JudgeData) (string, error) {
	return render(p.judge, d)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
