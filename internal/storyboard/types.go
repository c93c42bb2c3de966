// Package storyboard defines the data that flows between pipeline steps and
// the deterministic text helpers that operate on it.
package storyboard

import (
	"slices"
	"strings"
)

// Request defaults applied at pipeline entry.
const (
	DefaultStyle = "Cinematic"
	DefaultTitle = "Untitled Story"
	DefaultGenre = "drama"
	DefaultTone  = "dramatic"
)

// StoryRequest is the pipeline input.
type StoryRequest struct {
	StoryIdea string `json:"storyIdea"`
	Style     string `json:"style,omitempty"`
	Title     string `json:"title,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Tone      string `json:"tone,omitempty"`
}

// WithDefaults fills empty optional fields.
func (r StoryRequest) WithDefaults() StoryRequest {
	if strings.TrimSpace(r.Style) == "" {
		r.Style = DefaultStyle
	}
	if strings.TrimSpace(r.Title) == "" {
		r.Title = DefaultTitle
	}
	if strings.TrimSpace(r.Genre) == "" {
		r.Genre = DefaultGenre
	}
	if strings.TrimSpace(r.Tone) == "" {
		r.Tone = DefaultTone
	}
	return r
}

// Script is the free-form screenplay produced by step 1 plus the request
// metadata it was generated for.
type Script struct {
	Text  string `json:"text"`
	Title string `json:"title"`
	Genre string `json:"genre"`
	Tone  string `json:"tone"`
	Style string `json:"style"`
}

// Scene is one narrative beat with its visual prompt.
type Scene struct {
	SceneNumber  int    `json:"sceneNumber"`
	StoryContent string `json:"storyContent"`
	ImagePrompt  string `json:"imagePrompt"`
	Location     string `json:"location,omitempty"`
	TimeOfDay    string `json:"timeOfDay,omitempty"`
}

// Character is one entry of the recurring-character roster.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"`
}

// Storyboard is the ordered scene list for one story.
type Storyboard struct {
	Title      string      `json:"title"`
	Scenes     []Scene     `json:"scenes"`
	Characters []Character `json:"characters,omitempty"`
}

// Renumber stable-sorts the scenes by SceneNumber and renumbers them 1..N,
// so duplicate or missing numbers from the model keep their relative order.
func (sb *Storyboard) Renumber() {
	slices.SortStableFunc(sb.Scenes, func(a, b Scene) int {
		return a.SceneNumber - b.SceneNumber
	})
	for i := range sb.Scenes {
		sb.Scenes[i].SceneNumber = i + 1
	}
}

// SceneWithImage is a Scene after step 3. ImagePath is empty when image
// generation failed for the scene.
type SceneWithImage struct {
	Scene
	ImagePath string `json:"imagePath"`
	Style     string `json:"style"`
}

// CountImages returns the number of scenes that have an image.
func CountImages(scenes []SceneWithImage) int {
	n := 0
	for _, s := range scenes {
		if s.ImagePath != "" {
			n++
		}
	}
	return n
}

// ExportSummary describes the exported document.
type ExportSummary struct {
	TotalScenes int   `json:"totalScenes"`
	TotalImages int   `json:"totalImages"`
	PDFSize     int64 `json:"pdfSize"`
}

// ExportResult is the outcome of step 4.
type ExportResult struct {
	PDFPath string        `json:"pdfPath"`
	Title   string        `json:"title"`
	Summary ExportSummary `json:"summary"`
}

// UploadStatus is the terminal state of step 5.
type UploadStatus string

const (
	UploadUploaded UploadStatus = "uploaded"
	UploadSkipped  UploadStatus = "skipped"
	UploadFailed   UploadStatus = "failed"
)

// UploadResult is the outcome of step 5. Error is set only when a
// configured target failed.
type UploadResult struct {
	Status         UploadStatus `json:"status"`
	Success        bool         `json:"success"`
	S3URL          string       `json:"s3Url,omitempty"`
	GoogleDriveURL string       `json:"googleDriveUrl,omitempty"`
	Bucket         string       `json:"bucket,omitempty"`
	Key            string       `json:"key,omitempty"`
	Filename       string       `json:"filename,omitempty"`
	FileSize       int64        `json:"fileSize,omitempty"`
	WebhookStatus  string       `json:"webhookStatus,omitempty"`
	Error          string       `json:"error,omitempty"`
}
