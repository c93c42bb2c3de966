package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/events"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pdf"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/upload"
)

var catRequest = storyboard.StoryRequest{StoryIdea: "A cat chases a mouse", Style: "Cinematic"}

// --- fakes ---

// noStoryboardText answers script prompts offline and returns prose for
// everything else.
type noStoryboardText struct{}

func (noStoryboardText) Generate(ctx context.Context, req chat.TextRequest) (string, error) {
	if strings.Contains(req.Prompt, "Here's the script:") {
		return "Sorry, I cannot produce JSON today.", nil
	}
	return chat.OfflineText{}.Generate(ctx, req)
}

// shuffledText returns a storyboard whose scene numbers are out of order and
// repeated.
type shuffledText struct{}

func (shuffledText) Generate(ctx context.Context, req chat.TextRequest) (string, error) {
	if strings.Contains(req.Prompt, "Here's the script:") {
		return `{"title":"Shuffled","scenes":[` +
			`{"sceneNumber":3,"storyContent":"third beat","imagePrompt":"third"},` +
			`{"sceneNumber":1,"storyContent":"first beat","imagePrompt":"first"},` +
			`{"sceneNumber":1,"storyContent":"duplicate beat","imagePrompt":"dup"}]}`, nil
	}
	return chat.OfflineText{}.Generate(ctx, req)
}

type failingText struct{}

func (failingText) Generate(ctx context.Context, req chat.TextRequest) (string, error) {
	return "", &gateway.Error{Kind: gateway.KindUnavailable, Op: "text", Err: errors.New("503")}
}

// recordingImages wraps an ImageGateway, records prompts and fails the
// listed 1-based calls.
type recordingImages struct {
	next    chat.ImageGateway
	failOn  map[int]bool
	onCall  func(n int)
	mu      sync.Mutex
	calls   int
	prompts []string
}

func (r *recordingImages) Generate(ctx context.Context, req chat.ImageRequest) ([]chat.ImageResult, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.prompts = append(r.prompts, req.Prompt)
	r.mu.Unlock()

	if r.onCall != nil {
		r.onCall(n)
	}
	if r.failOn[n] {
		return nil, &gateway.Error{Kind: gateway.KindQuota, Op: "image", Err: errors.New("429")}
	}
	return r.next.Generate(ctx, req)
}

type failingPDF struct{}

func (failingPDF) Render(ctx context.Context, doc pdf.Document) (storyboard.ExportResult, error) {
	return storyboard.ExportResult{}, errors.New("renderer crashed")
}

type failingAnchorer struct{}

func (failingAnchorer) Anchor(ctx context.Context, in AnchorInput) (string, error) {
	return "", errors.New("anchor model unavailable")
}

type fakeUploader struct {
	res storyboard.UploadResult
	err error
	got upload.Request
}

func (f *fakeUploader) Upload(ctx context.Context, req upload.Request) (storyboard.UploadResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeEvents struct{ got []events.RunCompleted }

func (f *fakeEvents) RunCompleted(ctx context.Context, e events.RunCompleted) error {
	f.got = append(f.got, e)
	return nil
}

// --- helpers ---

type harness struct {
	cfg    config.PipelineConfig
	deps   Deps
	images *recordingImages
	runs   *store.MemoryStore
	events *fakeEvents
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Cleanup(metrics.SetOutput(io.Discard))

	dir := t.TempDir()
	cfg := config.Default()
	cfg.ImageDir = filepath.Join(dir, "images")
	cfg.ExportDir = filepath.Join(dir, "exports")

	writer := chat.NewImageWriter(chat.OfflineImage{}, cfg.ImageDir, gateway.Policy{MaxAttempts: 1}, 0)
	h := &harness{
		cfg:    cfg,
		images: &recordingImages{next: writer},
		runs:   store.NewMemoryStore(),
		events: &fakeEvents{},
	}
	h.deps = Deps{
		Text:   chat.OfflineText{},
		Images: h.images,
		PDF:    pdf.NewRenderer(cfg.ExportDir),
		Runs:   h.runs,
		Events: h.events,
	}
	return h
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(h.cfg, h.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

// --- tests ---

func TestNew_RequiresGateways(t *testing.T) {
	if _, err := New(config.Default(), Deps{Text: chat.OfflineText{}}); err == nil {
		t.Fatal("expected error for missing gateways")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t)

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if strings.TrimSpace(res.Script.Text) == "" {
		t.Error("script is empty")
	}
	if res.FallbackUsed {
		t.Error("structured storyboard should parse without fallback")
	}
	if n := len(res.Storyboard.Scenes); n != 5 {
		t.Fatalf("got %d scenes, want 5", n)
	}
	if len(res.Scenes) != len(res.Storyboard.Scenes) {
		t.Fatalf("scenes with images = %d, storyboard scenes = %d", len(res.Scenes), len(res.Storyboard.Scenes))
	}
	for i, sc := range res.Scenes {
		if sc.SceneNumber != i+1 {
			t.Errorf("scene %d has number %d", i, sc.SceneNumber)
		}
		if sc.ImagePath == "" {
			t.Errorf("scene %d has no image", sc.SceneNumber)
		} else if _, err := os.Stat(sc.ImagePath); err != nil {
			t.Errorf("scene %d image missing: %v", sc.SceneNumber, err)
		}
		if sc.Style != "Cinematic" {
			t.Errorf("scene %d style = %q", sc.SceneNumber, sc.Style)
		}
	}

	sum := res.Export.Summary
	if sum.TotalScenes != len(res.Scenes) || sum.TotalImages != storyboard.CountImages(res.Scenes) {
		t.Errorf("summary = %+v", sum)
	}
	if sum.PDFSize == 0 {
		t.Error("PDF size should be non-zero")
	}
	if res.Upload != nil {
		t.Error("Run must not upload")
	}

	// Roster anchoring folds the storyboard's characters into each prompt.
	for i, p := range h.images.prompts {
		if !strings.Contains(p, "Character reference: Mara") {
			t.Errorf("prompt %d not anchored: %q", i+1, p)
		}
	}

	rec, _ := h.runs.GetRun(context.Background(), res.RunID)
	if rec == nil || rec.Status != store.StatusCompleted || rec.SceneCount != 5 || rec.ResultJSON == "" {
		t.Errorf("unexpected run record: %+v", rec)
	}
	if len(h.events.got) != 1 || h.events.got[0].RunID != res.RunID || h.events.got[0].ImageCount != 5 {
		t.Errorf("unexpected events: %+v", h.events.got)
	}
}

func TestRun_AppliesDefaults(t *testing.T) {
	h := newHarness(t)

	res, err := h.orchestrator(t).Run(context.Background(), storyboard.StoryRequest{StoryIdea: "A lighthouse keeper"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Request.Style != storyboard.DefaultStyle || res.Request.Title != storyboard.DefaultTitle ||
		res.Request.Genre != storyboard.DefaultGenre || res.Request.Tone != storyboard.DefaultTone {
		t.Errorf("defaults not applied: %+v", res.Request)
	}
}

func TestRun_EmptyIdea(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orchestrator(t).Run(context.Background(), storyboard.StoryRequest{StoryIdea: "  "}); err == nil {
		t.Fatal("expected error for empty story idea")
	}
}

func TestRun_StoryboardFallback(t *testing.T) {
	h := newHarness(t)
	h.deps.Text = noStoryboardText{}

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.FallbackUsed {
		t.Error("expected fallback")
	}
	// The offline script has five slug lines.
	if n := len(res.Storyboard.Scenes); n != 5 {
		t.Fatalf("got %d scenes, want 5", n)
	}
	first := res.Storyboard.Scenes[0]
	if first.ImagePrompt != "Cinematic scene: "+first.StoryContent || first.TimeOfDay != "day" {
		t.Errorf("unexpected fallback scene: %+v", first)
	}
}

func TestRun_ScenesInSceneNumberOrder(t *testing.T) {
	h := newHarness(t)
	h.deps.Text = shuffledText{}

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FallbackUsed {
		t.Fatalf("unexpected fallback: %v", res.Warnings)
	}
	want := []string{"first beat", "duplicate beat", "third beat"}
	if len(res.Scenes) != len(want) || len(h.images.prompts) != len(want) {
		t.Fatalf("got %d scenes and %d image calls, want %d", len(res.Scenes), len(h.images.prompts), len(want))
	}
	for i, sc := range res.Scenes {
		if sc.SceneNumber != i+1 || sc.StoryContent != want[i] {
			t.Errorf("scene %d = {%d %q}, want {%d %q}", i, sc.SceneNumber, sc.StoryContent, i+1, want[i])
		}
		if !strings.Contains(h.images.prompts[i], want[i]) {
			t.Errorf("image call %d prompt %q does not mention %q", i+1, h.images.prompts[i], want[i])
		}
	}
}

func TestRun_TextGatewayDown(t *testing.T) {
	h := newHarness(t)
	h.deps.Text = failingText{}

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Script.Text != catRequest.StoryIdea {
		t.Errorf("script = %q, want the story idea", res.Script.Text)
	}
	if !res.FallbackUsed || len(res.Storyboard.Scenes) != 1 {
		t.Errorf("want one fallback scene, got %d (fallback=%v)", len(res.Storyboard.Scenes), res.FallbackUsed)
	}
	if len(res.Warnings) < 2 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.Export.Summary.TotalScenes != 1 {
		t.Errorf("summary = %+v", res.Export.Summary)
	}
}

func TestRun_PartialImageFailure(t *testing.T) {
	h := newHarness(t)
	h.images.failOn = map[int]bool{2: true}

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Scenes) != 5 {
		t.Fatalf("got %d scenes, want 5", len(res.Scenes))
	}
	for i, sc := range res.Scenes {
		if (sc.ImagePath == "") != (i == 1) {
			t.Errorf("scene %d imagePath = %q", i+1, sc.ImagePath)
		}
	}
	if res.Export.Summary.TotalImages != 4 {
		t.Errorf("TotalImages = %d, want 4", res.Export.Summary.TotalImages)
	}
}

func TestRun_AnchorFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.deps.Anchorer = failingAnchorer{}
	o := h.orchestrator(t)
	o.newID = func() string { return "run-anchor" }

	res, err := o.Run(context.Background(), catRequest)
	if err == nil {
		t.Fatal("expected anchoring error")
	}
	if res != nil {
		t.Error("result must be nil on fatal failure")
	}
	var ae *AnchorError
	if !errors.As(err, &ae) || ae.SceneNumber != 1 || !IsAnchorError(err) {
		t.Errorf("unexpected error: %v", err)
	}
	if h.images.calls != 0 {
		t.Errorf("image gateway called %d times", h.images.calls)
	}
	rec, _ := h.runs.GetRun(context.Background(), "run-anchor")
	if rec == nil || rec.Status != store.StatusFailed || rec.Error == "" {
		t.Errorf("unexpected run record: %+v", rec)
	}
	if len(h.events.got) != 0 {
		t.Error("failed runs must not publish completion events")
	}
}

func TestRun_ExportFailureUsesPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.deps.PDF = failingPDF{}

	res, err := h.orchestrator(t).Run(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Export.Summary.PDFSize != 0 {
		t.Errorf("PDFSize = %d, want 0", res.Export.Summary.PDFSize)
	}
	if !strings.HasPrefix(res.Export.PDFPath, h.cfg.ExportDir) || !strings.Contains(res.Export.PDFPath, "_storyboard_") {
		t.Errorf("PDFPath = %q", res.Export.PDFPath)
	}
	if res.Export.Summary.TotalScenes != 5 || res.Export.Summary.TotalImages != 5 {
		t.Errorf("summary = %+v", res.Export.Summary)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.orchestrator(t).Run(ctx, catRequest); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_CancelledBetweenScenes(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.images.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	_, err := h.orchestrator(t).Run(ctx, catRequest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.images.calls != 2 {
		t.Errorf("image calls = %d, want 2", h.images.calls)
	}
}

func TestRunWithUpload(t *testing.T) {
	tests := []struct {
		name       string
		uploader   UploadGateway
		wantStatus storyboard.UploadStatus
		wantErr    bool
	}{
		{
			name:       "no uploader",
			wantStatus: storyboard.UploadSkipped,
		},
		{
			name:       "bucket not configured",
			uploader:   &fakeUploader{err: config.ErrNotConfigured},
			wantStatus: storyboard.UploadSkipped,
		},
		{
			name: "uploaded",
			uploader: &fakeUploader{res: storyboard.UploadResult{
				Status: storyboard.UploadUploaded, Success: true, S3URL: "https://s3/x", GoogleDriveURL: "https://drive/x",
			}},
			wantStatus: storyboard.UploadUploaded,
		},
		{
			name: "webhook failed",
			uploader: &fakeUploader{
				res: storyboard.UploadResult{Status: storyboard.UploadFailed, S3URL: "https://s3/x"},
				err: errors.New("webhook failed: 502"),
			},
			wantStatus: storyboard.UploadFailed,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.deps.Uploader = tt.uploader

			res, err := h.orchestrator(t).RunWithUpload(context.Background(), catRequest, UploadOptions{DesiredFilename: "cat"})
			if err != nil {
				t.Fatalf("RunWithUpload: %v", err)
			}
			if res.Upload == nil || res.Upload.Status != tt.wantStatus {
				t.Fatalf("upload = %+v, want status %s", res.Upload, tt.wantStatus)
			}
			if (res.Upload.Error != "") != tt.wantErr {
				t.Errorf("upload error = %q", res.Upload.Error)
			}
			if res.Export.Summary.PDFSize == 0 {
				t.Error("export must survive upload outcome")
			}
			if fu, ok := tt.uploader.(*fakeUploader); ok {
				if fu.got.FilePath != res.Export.PDFPath || fu.got.DesiredFilename != "cat" {
					t.Errorf("upload request = %+v", fu.got)
				}
			}
		})
	}
}

func TestRun_LLMAnchorMode(t *testing.T) {
	h := newHarness(t)
	h.cfg.AnchorMode = config.AnchorLLM

	if _, err := h.orchestrator(t).Run(context.Background(), catRequest); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, p := range h.images.prompts {
		if !strings.Contains(p, "Mara") {
			t.Errorf("prompt %d missing roster: %q", i+1, p)
		}
	}
}
