package evals

import (
	"regexp"
	"strings"
)

// MinVisualPromptWords is the prompt length visualPromptQuality rewards.
const MinVisualPromptWords = 20

var (
	shotRe      = regexp.MustCompile(`(?i)camera|angle|shot|close-up|wide|medium|two-shot|over-the-shoulder|bird's eye|eye-level`)
	toneColorRe = regexp.MustCompile(`(?i)mood|atmosphere|atmospheric|dramatic|peaceful|tense|mysterious|hopeful|warm|cool|vibrant|muted|palette|glow`)
)

func init() {
	register("structure", "storyboard structure", storyboardStructure)
	register("visualPromptQuality", "visual prompt quality", visualPromptQuality)
	register("storyContentCompleteness", "story content completeness", storyContentCompleteness)
}

// scenes returns doc.scenes as objects, skipping non-object entries.
func scenes(doc map[string]any) []map[string]any {
	raw, _ := array(doc["scenes"])
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := object(r); ok {
			out = append(out, m)
		}
	}
	return out
}

// share is the fraction of scenes satisfying fn.
func share(sc []map[string]any, fn func(map[string]any) bool) float64 {
	if len(sc) == 0 {
		return 0
	}
	n := 0
	for _, s := range sc {
		if fn(s) {
			n++
		}
	}
	return float64(n) / float64(len(sc))
}

func nonEmpty(key string) func(map[string]any) bool {
	return func(s map[string]any) bool {
		v, ok := str(s[key])
		return ok && strings.TrimSpace(v) != ""
	}
}

func storyboardStructure(_ string, doc map[string]any) Result {
	sc := scenes(doc)
	if len(sc) == 0 {
		return fail("No scenes array found in output")
	}

	sequential := true
	for i, s := range sc {
		if n, ok := number(s["sceneNumber"]); !ok || int(n) != i+1 {
			sequential = false
			break
		}
	}
	return sumChecks("Storyboard structure", []check{
		pass("hasScenes", 0.4, true),
		pass("sequentialNumbers", 0.15, sequential),
		part("storyContentShare", 0.15, share(sc, nonEmpty("storyContent"))),
		part("imagePromptShare", 0.15, share(sc, nonEmpty("imagePrompt"))),
		part("locationShare", 0.15, share(sc, nonEmpty("location"))),
	}, map[string]any{"totalScenes": len(sc)})
}

// visualPromptQuality scores each scene's imagePrompt on shot direction,
// lighting, length and tone, then averages across scenes.
func visualPromptQuality(_ string, doc map[string]any) Result {
	sc := scenes(doc)
	if len(sc) == 0 {
		return fail("No scenes array found in output")
	}

	var camera, lighting, length, tone int
	for _, s := range sc {
		p, _ := str(s["imagePrompt"])
		if shotRe.MatchString(p) {
			camera++
		}
		if lightingRe.MatchString(p) {
			lighting++
		}
		if len(strings.Fields(p)) >= MinVisualPromptWords {
			length++
		}
		if toneColorRe.MatchString(p) {
			tone++
		}
	}
	n := float64(len(sc))
	return sumChecks("Visual prompt quality", []check{
		part("cameraShare", 0.3, float64(camera)/n),
		part("lightingShare", 0.3, float64(lighting)/n),
		part("lengthShare", 0.2, float64(length)/n),
		part("toneShare", 0.2, float64(tone)/n),
	}, map[string]any{"totalScenes": len(sc)})
}

// storyContentCompleteness rewards filled-in scene fields and coverage of
// the input's significant words by the scenes' story content.
func storyContentCompleteness(input string, doc map[string]any) Result {
	sc := scenes(doc)
	if len(sc) == 0 {
		return fail("No scenes array found in output")
	}

	var all strings.Builder
	for _, s := range sc {
		c, _ := str(s["storyContent"])
		all.WriteString(strings.ToLower(c))
		all.WriteByte(' ')
	}
	text := all.String()
	words := significantWords(input)
	covered := 0
	for _, w := range words {
		if strings.Contains(text, strings.Trim(w, ".,;:!?\"'")) {
			covered++
		}
	}
	coverage := 1.0
	if len(words) > 0 {
		// Half the input vocabulary echoed back counts as full coverage.
		coverage = clamp(2 * float64(covered) / float64(len(words)))
	}

	return sumChecks("Story content completeness", []check{
		part("storyContentShare", 0.4, share(sc, nonEmpty("storyContent"))),
		part("locationShare", 0.2, share(sc, nonEmpty("location"))),
		part("timeOfDayShare", 0.2, share(sc, nonEmpty("timeOfDay"))),
		part("inputCoverage", 0.2, coverage),
	}, map[string]any{"totalScenes": len(sc), "coveredWords": covered, "inputWords": len(words)})
}
