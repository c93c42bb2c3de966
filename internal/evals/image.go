package evals

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Keyword categories probed in image prompts.
var (
	styleRe       = regexp.MustCompile(`(?i)style|artistic|cinematic|anime|comic|watercolor|oil|sketch|pixel|ghibli|disney|cyberpunk|steampunk|fantasy|sci-fi|horror|noir|pop|abstract|impressionistic|surreal|photorealistic`)
	lightingRe    = regexp.MustCompile(`(?i)light|lighting|bright|dark|shadow|sunlight|moonlight|candlelight|neon|ambient`)
	cameraRe      = regexp.MustCompile(`(?i)camera|angle|shot|close-up|wide|medium|long|extreme|bird's eye|worm's eye|dutch angle`)
	compositionRe = regexp.MustCompile(`(?i)composition|framing|rule of thirds|symmetry|asymmetry|foreground|background|depth|perspective`)
	colorRe       = regexp.MustCompile(`(?i)color|hue|saturation|warm|cool|vibrant|muted|monochrome|palette`)
	moodRe        = regexp.MustCompile(`(?i)mood|atmosphere|feeling|emotion|dramatic|peaceful|tense|mysterious|romantic`)

	visualElementRe = regexp.MustCompile(`(?i)character|scene|setting|object|prop|environment|background`)

	resolutionRe  = regexp.MustCompile(`(?i)4k|8k|high resolution|hd|ultra hd|megapixel`)
	qualityRe     = regexp.MustCompile(`(?i)high quality|professional|detailed|sharp|crisp|clear`)
	formatRe      = regexp.MustCompile(`(?i)digital art|illustration|photograph|painting|drawing|render`)
	aspectRatioRe = regexp.MustCompile(`(?i)square|portrait|landscape|widescreen|16:9|4:3|1:1`)

	imaginationRe  = regexp.MustCompile(`(?i)imaginative|creative|unique|original|innovative|artistic`)
	emotionRe      = regexp.MustCompile(`(?i)emotional|expressive|dramatic|powerful|moving|impactful`)
	storytellingRe = regexp.MustCompile(`(?i)narrative|story|scene|moment|action|interaction`)
	aestheticsRe   = regexp.MustCompile(`(?i)beautiful|stunning|gorgeous|elegant|sophisticated|aesthetic`)

	characterRe       = regexp.MustCompile(`(?i)character|person|figure|portrait|face|expression`)
	characterDetailRe = regexp.MustCompile(`(?i)hair|eyes|clothing|costume|outfit|accessories`)
	characterActionRe = regexp.MustCompile(`(?i)standing|sitting|walking|running|gesturing|posing`)
)

func init() {
	register("imagePromptQuality", "image prompt quality", imagePromptQuality)
	register("visualConsistency", "visual consistency", visualConsistency)
	register("technicalSpecs", "technical specifications", technicalSpecs)
	register("creativeElements", "creative elements", creativeElements)
	register("characterFocus", "character focus", characterFocus)
}

// firstImage returns the first entry of doc.images and its prompt.
func firstImage(doc map[string]any) (map[string]any, string, int, *Result) {
	images, ok := array(doc["images"])
	if !ok || len(images) == 0 {
		r := fail("No images array found in output")
		return nil, "", 0, &r
	}
	img, _ := object(images[0])
	prompt, ok := str(img["prompt"])
	if !ok || prompt == "" {
		r := fail("No prompt found in first image")
		return nil, "", 0, &r
	}
	return img, prompt, len(images), nil
}

func imagePromptQuality(_ string, doc map[string]any) Result {
	_, prompt, n, bad := firstImage(doc)
	if bad != nil {
		return *bad
	}
	words := len(strings.Fields(prompt))
	return sumChecks("Image prompt quality", []check{
		pass("goodLength", 0.2, words >= 30),
		pass("hasStyle", 0.2, styleRe.MatchString(prompt)),
		pass("hasLighting", 0.15, lightingRe.MatchString(prompt)),
		pass("hasCamera", 0.15, cameraRe.MatchString(prompt)),
		pass("hasComposition", 0.1, compositionRe.MatchString(prompt)),
		pass("hasColor", 0.1, colorRe.MatchString(prompt)),
		pass("hasMood", 0.1, moodRe.MatchString(prompt)),
	}, map[string]any{"wordCount": words, "totalImages": n})
}

// visualConsistency averages the share of significant input words echoed
// by the prompt with a visual-element agreement term.
func visualConsistency(input string, doc map[string]any) Result {
	_, prompt, n, bad := firstImage(doc)
	if bad != nil {
		return *bad
	}
	inputWords := significantWords(input)
	promptWords := significantWords(prompt)

	matching := 0
	for _, w := range inputWords {
		if slices.Contains(promptWords, w) {
			matching++
		}
	}
	overlap := 0.0
	if len(inputWords) > 0 {
		overlap = float64(matching) / float64(len(inputWords))
	}

	hasVisual := visualElementRe.MatchString(prompt)
	hasInputVisual := visualElementRe.MatchString(input)
	agreement := 0.5
	if hasVisual && hasInputVisual {
		agreement = 1
	}

	score := round(clamp((overlap + agreement) / 2))
	return Result{Score: score, Info: map[string]any{
		"reason":            fmt.Sprintf("Visual consistency: %.1f%%", score*100),
		"matchingWords":     matching,
		"totalInputWords":   len(inputWords),
		"consistencyScore":  round(overlap),
		"visualConsistency": agreement,
		"hasVisualElements": hasVisual,
		"hasInputElements":  hasInputVisual,
		"totalImages":       n,
	}}
}

// significantWords lowercases s and keeps words longer than three bytes.
func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func technicalSpecs(_ string, doc map[string]any) Result {
	img, prompt, n, bad := firstImage(doc)
	if bad != nil {
		return *bad
	}
	checks := []check{
		pass("hasResolution", 0.3, resolutionRe.MatchString(prompt)),
		pass("hasQuality", 0.3, qualityRe.MatchString(prompt)),
		pass("hasFormat", 0.2, formatRe.MatchString(prompt)),
		pass("hasAspectRatio", 0.2, aspectRatioRe.MatchString(prompt)),
	}
	meta, hasMeta := object(img["metadata"])
	if hasMeta {
		checks = append(checks,
			pass("metadataQuality", 0.1, truthy(meta["quality"])),
			pass("metadataAspectRatio", 0.1, truthy(meta["aspectRatio"])),
			pass("metadataModel", 0.1, truthy(meta["model"])),
		)
	}
	return sumChecks("Technical specifications", checks, map[string]any{"hasMetadata": hasMeta, "totalImages": n})
}

func creativeElements(_ string, doc map[string]any) Result {
	_, prompt, n, bad := firstImage(doc)
	if bad != nil {
		return *bad
	}
	return sumChecks("Creative elements", []check{
		pass("hasImagination", 0.25, imaginationRe.MatchString(prompt)),
		pass("hasEmotion", 0.25, emotionRe.MatchString(prompt)),
		pass("hasStorytelling", 0.25, storytellingRe.MatchString(prompt)),
		pass("hasAesthetics", 0.25, aestheticsRe.MatchString(prompt)),
	}, map[string]any{"totalImages": n})
}

func characterFocus(_ string, doc map[string]any) Result {
	_, prompt, n, bad := firstImage(doc)
	if bad != nil {
		return *bad
	}
	return sumChecks("Character focus", []check{
		pass("hasCharacter", 0.4, characterRe.MatchString(prompt)),
		pass("hasCharacterDetails", 0.3, characterDetailRe.MatchString(prompt)),
		pass("hasCharacterAction", 0.3, characterActionRe.MatchString(prompt)),
	}, map[string]any{"totalImages": n})
}
