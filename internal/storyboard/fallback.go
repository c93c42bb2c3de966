package storyboard

import (
	"regexp"
	"strings"
)

const (
	fallbackPromptPrefix = "Cinematic scene: "
	fallbackSnippetLen   = 200
)

var (
	numberedLine = regexp.MustCompile(`^\d+\.`)
	sceneLine    = regexp.MustCompile(`(?i)^scene\s+\d+`)
)

// IsSceneMarker reports whether a trimmed script line opens a new scene:
// a slug line containing "int." or "ext.", a numbered line ("3."), or a
// "Scene N" heading.
func IsSceneMarker(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "int.") ||
		strings.Contains(lower, "ext.") ||
		numberedLine.MatchString(line) ||
		sceneLine.MatchString(line)
}

// FallbackFromScript builds a storyboard from raw script text when the
// structured storyboard response cannot be used. Each marker line becomes a
// scene, numbered from 1 in line order. A script without markers yields a
// single scene built from its first 200 characters.
func FallbackFromScript(title, script string) Storyboard {
	var scenes []Scene
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !IsSceneMarker(trimmed) {
			continue
		}
		scenes = append(scenes, Scene{
			SceneNumber:  len(scenes) + 1,
			StoryContent: trimmed,
			ImagePrompt:  fallbackPromptPrefix + trimmed,
			Location:     trimmed,
			TimeOfDay:    "day",
		})
	}

	if len(scenes) == 0 {
		snippet := Truncate(script, fallbackSnippetLen)
		scenes = append(scenes, Scene{
			SceneNumber:  1,
			StoryContent: snippet,
			ImagePrompt:  fallbackPromptPrefix + snippet,
			Location:     "Unknown",
			TimeOfDay:    "day",
		})
	}

	return Storyboard{Title: title, Scenes: scenes}
}
