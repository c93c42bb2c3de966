package storyboard

import (
	"fmt"
	"strings"
	"testing"
)

func TestIsSceneMarker(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"INT. KITCHEN - DAY", true},
		{"ext. backyard - night", true},
		{"The cat walks into the kitchen.", false},
		{"1. The chase begins", true},
		{"12. Finale", true},
		{"Scene 3", true},
		{"scene 4: the escape", true},
		{"Scenery is lovely", false},
		{"A 1. in the middle", false},
	}
	for _, tt := range tests {
		if got := IsSceneMarker(tt.line); got != tt.want {
			t.Errorf("IsSceneMarker(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFallbackFromScript_OneScenePerMarker(t *testing.T) {
	script := strings.Join([]string{
		"TITLE: Cat and Mouse",
		"",
		"  INT. KITCHEN - DAY  ",
		"The cat crouches by the fridge.",
		"EXT. GARDEN - DAY",
		"The mouse darts under a hedge.",
		"Scene 3",
		"They both rest.",
	}, "\n")

	sb := FallbackFromScript("Cat and Mouse", script)
	if sb.Title != "Cat and Mouse" {
		t.Errorf("title = %q", sb.Title)
	}
	if len(sb.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(sb.Scenes))
	}

	wantLines := []string{"INT. KITCHEN - DAY", "EXT. GARDEN - DAY", "Scene 3"}
	for i, sc := range sb.Scenes {
		if sc.SceneNumber != i+1 {
			t.Errorf("scene %d has number %d", i, sc.SceneNumber)
		}
		if sc.StoryContent != wantLines[i] || sc.Location != wantLines[i] {
			t.Errorf("scene %d content/location = %q/%q", i, sc.StoryContent, sc.Location)
		}
		if sc.ImagePrompt != "Cinematic scene: "+wantLines[i] {
			t.Errorf("scene %d prompt = %q", i, sc.ImagePrompt)
		}
		if sc.TimeOfDay != "day" {
			t.Errorf("scene %d timeOfDay = %q", i, sc.TimeOfDay)
		}
	}
}

func TestFallbackFromScript_SceneCountMatchesMarkers(t *testing.T) {
	for n := 1; n <= 7; n++ {
		var b strings.Builder
		for i := 1; i <= n; i++ {
			fmt.Fprintf(&b, "%d. Beat number %d\nSome prose in between.\n\n", i, i)
		}
		sb := FallbackFromScript("T", b.String())
		if len(sb.Scenes) != n {
			t.Fatalf("n=%d: got %d scenes", n, len(sb.Scenes))
		}
		for i, sc := range sb.Scenes {
			if sc.SceneNumber != i+1 {
				t.Errorf("n=%d: scene %d numbered %d", n, i, sc.SceneNumber)
			}
		}
	}
}

func TestFallbackFromScript_NoMarkers(t *testing.T) {
	script := strings.Repeat("a quiet story without headings ", 20)
	sb := FallbackFromScript("Quiet", script)
	if len(sb.Scenes) != 1 {
		t.Fatalf("expected exactly 1 scene, got %d", len(sb.Scenes))
	}
	sc := sb.Scenes[0]
	if sc.SceneNumber != 1 {
		t.Errorf("scene number = %d", sc.SceneNumber)
	}
	if len([]rune(sc.StoryContent)) != 200 {
		t.Errorf("expected 200 characters, got %d", len([]rune(sc.StoryContent)))
	}
	if !strings.HasPrefix(sc.ImagePrompt, "Cinematic scene: ") {
		t.Errorf("prompt = %q", sc.ImagePrompt)
	}
	if sc.Location != "Unknown" {
		t.Errorf("location = %q", sc.Location)
	}
}

func TestFallbackFromScript_EmptyScript(t *testing.T) {
	sb := FallbackFromScript("Empty", "")
	if len(sb.Scenes) != 1 || sb.Scenes[0].SceneNumber != 1 {
		t.Fatalf("empty script should still produce one scene: %+v", sb.Scenes)
	}
}

func TestStoryRequestWithDefaults(t *testing.T) {
	r := StoryRequest{StoryIdea: "A cat chases a mouse"}.WithDefaults()
	if r.Style != DefaultStyle || r.Title != DefaultTitle || r.Genre != DefaultGenre || r.Tone != DefaultTone {
		t.Errorf("defaults not applied: %+v", r)
	}
	r = StoryRequest{StoryIdea: "x", Style: "Anime", Title: "Mine"}.WithDefaults()
	if r.Style != "Anime" || r.Title != "Mine" {
		t.Errorf("explicit values overwritten: %+v", r)
	}
}

func TestCountImages(t *testing.T) {
	scenes := []SceneWithImage{{ImagePath: "a.png"}, {}, {ImagePath: "c.png"}}
	if got := CountImages(scenes); got != 2 {
		t.Errorf("CountImages = %d", got)
	}
}

func TestStoryboardRenumber(t *testing.T) {
	sb := Storyboard{Scenes: []Scene{
		{SceneNumber: 3, StoryContent: "third"},
		{SceneNumber: 1, StoryContent: "first"},
		{SceneNumber: 1, StoryContent: "dup"},
		{SceneNumber: 7, StoryContent: "last"},
	}}
	sb.Renumber()

	want := []string{"first", "dup", "third", "last"}
	for i, sc := range sb.Scenes {
		if sc.SceneNumber != i+1 || sc.StoryContent != want[i] {
			t.Errorf("scene %d = {%d %q}, want {%d %q}", i, sc.SceneNumber, sc.StoryContent, i+1, want[i])
		}
	}
}
