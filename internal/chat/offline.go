package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// OfflineText answers every prompt deterministically without a network
// call. It recognises the four prompt kinds by the markers the embedded
// templates contain and is used for local runs and tests.
type OfflineText struct{}

// Markers the offline gateway keys on.
const (
	scriptMarker     = "Generate a screenplay for this story idea:"
	storyboardMarker = "Here's the script:"
	anchorMarker     = "Original prompt:"
)

var offlineLocations = []string{
	"INT. KITCHEN - DAY",
	"INT. HALLWAY - DAY",
	"EXT. GARDEN - DUSK",
	"EXT. STREET - NIGHT",
	"INT. LIVING ROOM - NIGHT",
}

func (OfflineText) Generate(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case len(req.Images) > 0:
		return offlineJudge(req.Images), nil
	case strings.Contains(req.Prompt, scriptMarker):
		return offlineScript(req.Prompt), nil
	case strings.Contains(req.Prompt, storyboardMarker):
		return offlineStoryboard(req.Prompt)
	case strings.Contains(req.Prompt, anchorMarker):
		return offlineAnchor(req.Prompt), nil
	}
	return req.Prompt, nil
}

func offlineScript(prompt string) string {
	idea := prompt
	if i := strings.Index(prompt, `"`); i != -1 {
		if j := strings.Index(prompt[i+1:], `"`); j != -1 {
			idea = prompt[i+1 : i+1+j]
		}
	}
	var b strings.Builder
	for i, slug := range offlineLocations {
		fmt.Fprintf(&b, "%s\n", slug)
		fmt.Fprintf(&b, "Part %d of the story: %s\n\n", i+1, idea)
	}
	return strings.TrimSpace(b.String())
}

func offlineStoryboard(prompt string) (string, error) {
	script := prompt[strings.Index(prompt, storyboardMarker)+len(storyboardMarker):]
	title := "Untitled Story"
	for _, line := range strings.Split(prompt, "\n") {
		if t, ok := strings.CutPrefix(line, "Title: "); ok {
			title = strings.TrimSpace(t)
		}
	}

	sb := storyboard.Storyboard{
		Title: title,
		Characters: []storyboard.Character{{
			Name:        "Mara",
			Description: "a woman in her thirties with short red hair, a green raincoat and a silver pendant",
			Role:        "protagonist",
		}},
	}
	var content []string
	var slug string
	flush := func() {
		if slug == "" {
			return
		}
		loc, tod := splitSlug(slug)
		n := len(sb.Scenes) + 1
		sb.Scenes = append(sb.Scenes, storyboard.Scene{
			SceneNumber:  n,
			StoryContent: strings.TrimSpace(strings.Join(content, " ")),
			ImagePrompt:  fmt.Sprintf("Wide shot of Mara, short red hair and green raincoat, in the %s, soft %s light", strings.ToLower(loc), tod),
			Location:     loc,
			TimeOfDay:    tod,
		})
		content = nil
	}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if storyboard.IsSceneMarker(line) {
			flush()
			slug = line
			continue
		}
		content = append(content, line)
	}
	flush()

	data, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(data) + "\n```", nil
}

// splitSlug turns "INT. KITCHEN - DAY" into ("Kitchen", "day").
func splitSlug(slug string) (string, string) {
	s := slug
	for _, p := range []string{"INT.", "EXT.", "int.", "ext."} {
		s = strings.TrimPrefix(s, p)
	}
	loc, tod, ok := strings.Cut(s, " - ")
	if !ok {
		return strings.TrimSpace(s), "day"
	}
	loc = strings.TrimSpace(loc)
	if loc != "" {
		loc = strings.ToUpper(loc[:1]) + strings.ToLower(loc[1:])
	}
	return loc, strings.ToLower(strings.TrimSpace(tod))
}

func offlineAnchor(prompt string) string {
	original := strings.TrimSpace(prompt[strings.Index(prompt, anchorMarker)+len(anchorMarker):])
	var refs []string
	for _, line := range strings.Split(prompt, "\n") {
		if d, ok := strings.CutPrefix(line, "- "); ok {
			refs = append(refs, d)
		}
	}
	if len(refs) == 0 {
		return original
	}
	return original + ". Featuring " + strings.Join(refs, "; ")
}

func offlineJudge(images []InlineImage) string {
	type imageNote struct {
		ImageIndex       int      `json:"imageIndex"`
		CharactersFound  []string `json:"charactersFound"`
		EnvironmentNotes string   `json:"environmentNotes"`
		VisualNotes      string   `json:"visualNotes"`
	}
	var notes []imageNote
	var appears []int
	for i, img := range images {
		idx := i + 1
		var n int
		if _, err := fmt.Sscanf(img.Label, "Image %d:", &n); err == nil && n > 0 {
			idx = n
		}
		appears = append(appears, idx)
		notes = append(notes, imageNote{
			ImageIndex:       idx,
			CharactersFound:  []string{"Mara"},
			EnvironmentNotes: "consistent lighting",
			VisualNotes:      "offline evaluation",
		})
	}
	out := map[string]any{
		"characterScore": 0.9,
		"reason":         "offline judge: characters and environment assumed consistent",
		"perCharacter": []map[string]any{{
			"name": "Mara", "consistent": true, "issues": []string{}, "appearsInImages": appears,
		}},
		"environmentConsistency": map[string]any{
			"consistent": true,
			"score":      0.8,
			"elements":   []map[string]any{{"element": "lighting", "consistent": true, "notes": "stable"}},
			"issues":     []string{},
		},
		"perImageAnalysis":  notes,
		"totalImages":       len(images),
		"totalCharacters":   1,
		"consistencyIssues": []string{},
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// OfflineImage renders a flat PNG whose colour is derived from the prompt.
type OfflineImage struct {
	Width, Height int
}

func (OfflineImage) Name() string { return "offline" }

func (o OfflineImage) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := o.Width, o.Height
	if w <= 0 || h <= 0 {
		w, h = 320, 180
	}
	hs := fnv.New32a()
	hs.Write([]byte(prompt))
	sum := hs.Sum32()
	c := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode offline image: %w", err)
	}
	return &GeneratedImage{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}
