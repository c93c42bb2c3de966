package consistency

import (
	"regexp"
	"strings"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/jsonutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// Extraction bounds.
const (
	MaxExtractedScenes = 5
	MaxExtractedImages = 5
)

var imageRefPattern = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+|https?://[^\s"'<>)]+\.(?:png|jpe?g|gif|webp)(?:\?[^\s"'<>)]*)?`)

var sceneImageKeys = []string{"imagePath", "imageUrl", "generated_image_url", "generatedImageUrl"}

// ExtractImageRefs pulls image references out of a storyboard-shaped JSON
// document (or any text). Scene fields are read from the first
// MaxExtractedScenes scenes, then top-level images and generatedImages.
// When the text is not JSON or yields nothing, URLs and data URIs are found
// by pattern. The result is de-duplicated and holds at most max entries
// (MaxExtractedImages when max <= 0).
func ExtractImageRefs(text string, max int) []string {
	if max <= 0 {
		max = MaxExtractedImages
	}
	var refs []string
	seen := map[string]bool{}
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] || len(refs) >= max {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	if doc, err := jsonutil.ParseMap(text); err == nil {
		if scenes, ok := doc["scenes"].([]any); ok {
			for i, s := range scenes {
				if i >= MaxExtractedScenes {
					break
				}
				scene, ok := s.(map[string]any)
				if !ok {
					continue
				}
				for _, key := range sceneImageKeys {
					if v, ok := scene[key].(string); ok {
						add(v)
					}
				}
			}
		}
		if images, ok := doc["images"].([]any); ok {
			for _, img := range images {
				switch v := img.(type) {
				case string:
					add(v)
				case map[string]any:
					if u, ok := v["imageUrl"].(string); ok {
						add(u)
					}
				}
			}
		}
		if generated, ok := doc["generatedImages"].([]any); ok {
			for _, g := range generated {
				if v, ok := g.(string); ok && strings.HasPrefix(v, "data:") {
					add(v)
				}
			}
		}
	}

	if len(refs) == 0 {
		for _, m := range imageRefPattern.FindAllString(text, -1) {
			add(m)
		}
	}
	return refs
}

// CharactersFromStoryboard reads the roster of a storyboard JSON document.
// Anything unparsable yields nil.
func CharactersFromStoryboard(text string) []storyboard.Character {
	doc, err := jsonutil.ParseObject[storyboard.Storyboard](text)
	if err != nil {
		return nil
	}
	return doc.Characters
}
