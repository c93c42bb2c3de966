// Package pipeline runs the fixed storyboard workflow:
// script, storyboard, images, export and the optional upload.
//
// Every step except consistency anchoring degrades instead of failing, so
// Run returns a result unless anchoring fails or ctx is cancelled.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/events"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pdf"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/upload"
)

// PDFGateway renders the storyboard document. *pdf.Renderer satisfies it.
type PDFGateway interface {
	Render(ctx context.Context, doc pdf.Document) (storyboard.ExportResult, error)
}

// UploadGateway stores the exported PDF. *upload.Uploader satisfies it.
type UploadGateway interface {
	Upload(ctx context.Context, req upload.Request) (storyboard.UploadResult, error)
}

// EventPublisher announces finished runs. *events.Publisher satisfies it.
type EventPublisher interface {
	RunCompleted(ctx context.Context, event events.RunCompleted) error
}

// Deps are the collaborators of an Orchestrator. Text, Images and PDF are
// required; the rest are optional.
type Deps struct {
	Text     chat.TextGateway
	Images   chat.ImageGateway
	PDF      PDFGateway
	Uploader UploadGateway
	Anchorer Anchorer
	Prompts  *assets.Prompts
	Runs     store.RunStore
	Events   EventPublisher
}

// UploadOptions are the per-run upload overrides.
type UploadOptions struct {
	DesiredFilename string `json:"desiredFilename,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
}

// RunResult is everything one run produced.
type RunResult struct {
	RunID        string                      `json:"runId"`
	Request      storyboard.StoryRequest     `json:"request"`
	Script       storyboard.Script           `json:"script"`
	Storyboard   storyboard.Storyboard       `json:"storyboard"`
	Scenes       []storyboard.SceneWithImage `json:"scenes"`
	Export       storyboard.ExportResult     `json:"export"`
	Upload       *storyboard.UploadResult    `json:"upload,omitempty"`
	Warnings     []string                    `json:"warnings,omitempty"`
	FallbackUsed bool                        `json:"fallbackUsed"`
	Duration     time.Duration               `json:"duration"`
}

func (r *RunResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Orchestrator executes pipeline runs. It holds no per-run state and may be
// shared by concurrent runs.
type Orchestrator struct {
	cfg      config.PipelineConfig
	text     chat.TextGateway
	images   chat.ImageGateway
	pdf      PDFGateway
	uploader UploadGateway
	anchorer Anchorer
	prompts  *assets.Prompts
	runs     store.RunStore
	events   EventPublisher

	now   func() time.Time
	newID func() string
}

// New validates deps and builds an Orchestrator. A nil Anchorer is chosen
// by cfg.AnchorMode; nil Prompts selects the embedded set.
func New(cfg config.PipelineConfig, deps Deps) (*Orchestrator, error) {
	if deps.Text == nil || deps.Images == nil || deps.PDF == nil {
		return nil, errors.New("pipeline: text, image and pdf gateways are required")
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = assets.Default()
	}
	anchorer := deps.Anchorer
	if anchorer == nil {
		if cfg.AnchorMode == config.AnchorLLM {
			anchorer = NewLLMAnchorer(deps.Text, prompts)
		} else {
			anchorer = RosterAnchorer{}
		}
	}
	return &Orchestrator{
		cfg:      cfg,
		text:     deps.Text,
		images:   deps.Images,
		pdf:      deps.PDF,
		uploader: deps.Uploader,
		anchorer: anchorer,
		prompts:  prompts,
		runs:     deps.Runs,
		events:   deps.Events,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Run executes steps 1 to 4.
func (o *Orchestrator) Run(ctx context.Context, req storyboard.StoryRequest) (*RunResult, error) {
	return o.execute(ctx, req, nil)
}

// RunWithUpload executes steps 1 to 5. Upload problems are reported in
// RunResult.Upload, never as an error.
func (o *Orchestrator) RunWithUpload(ctx context.Context, req storyboard.StoryRequest, opts UploadOptions) (*RunResult, error) {
	return o.execute(ctx, req, &opts)
}

func (o *Orchestrator) execute(ctx context.Context, req storyboard.StoryRequest, uploadOpts *UploadOptions) (*RunResult, error) {
	if strings.TrimSpace(req.StoryIdea) == "" {
		return nil, errors.New("story idea is required")
	}
	start := time.Now()
	run := &RunResult{RunID: o.newID(), Request: req.WithDefaults()}

	log.Info().
		Str("run_id", run.RunID).
		Str("title", run.Request.Title).
		Str("style", run.Request.Style).
		Bool("upload", uploadOpts != nil).
		Msg("Pipeline run started")
	o.record(ctx, run, store.StatusRunning, nil)

	steps := []struct {
		name string
		fn   func(context.Context, *RunResult) error
	}{
		{StepScript, o.generateScript},
		{StepStoryboard, o.convertStoryboard},
		{StepImages, o.generateImages},
		{StepExport, o.export},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, s.name, err)
		}
		if err := s.fn(ctx, run); err != nil {
			return o.fail(ctx, run, s.name, err)
		}
	}

	if uploadOpts != nil {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, StepUpload, err)
		}
		o.uploadExport(ctx, run, *uploadOpts)
	}

	run.Duration = time.Since(start)
	o.record(ctx, run, store.StatusCompleted, nil)
	o.publish(ctx, run)

	m := metrics.New(metrics.Namespace).
		Duration("RunLatencyMs", run.Duration).
		Count("RunsCompleted").
		Metric("RunWarnings", float64(len(run.Warnings)), metrics.UnitCount)
	if run.FallbackUsed {
		m.Count("RunsWithFallback")
	}
	m.Flush()

	log.Info().
		Str("run_id", run.RunID).
		Int("scenes", len(run.Scenes)).
		Int("images", run.Export.Summary.TotalImages).
		Int("warnings", len(run.Warnings)).
		Dur("duration", run.Duration).
		Msg("Pipeline run completed")
	return run, nil
}

func (o *Orchestrator) fail(ctx context.Context, run *RunResult, step string, err error) (*RunResult, error) {
	log.Error().Err(err).Str("run_id", run.RunID).Str("step", step).Msg("Pipeline run failed")
	metrics.New(metrics.Namespace).Dimension("Step", step).Count("RunsFailed").Flush()
	// The caller's ctx may already be done; the failure record still lands.
	o.record(context.WithoutCancel(ctx), run, store.StatusFailed, err)
	return nil, fmt.Errorf("run %s: %s: %w", run.RunID, step, err)
}

// record persists the run. Store failures are logged only.
func (o *Orchestrator) record(ctx context.Context, run *RunResult, status string, runErr error) {
	if o.runs == nil {
		return
	}
	rec := &store.Run{
		ID:           run.RunID,
		Status:       status,
		StoryIdea:    run.Request.StoryIdea,
		Title:        run.Request.Title,
		Style:        run.Request.Style,
		SceneCount:   len(run.Storyboard.Scenes),
		ImageCount:   storyboard.CountImages(run.Scenes),
		FallbackUsed: run.FallbackUsed,
		PDFPath:      run.Export.PDFPath,
		Warnings:     run.Warnings,
	}
	if run.Storyboard.Title != "" {
		rec.Title = run.Storyboard.Title
	}
	if run.Upload != nil {
		rec.S3URL = run.Upload.S3URL
		rec.GoogleDriveURL = run.Upload.GoogleDriveURL
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if status == store.StatusCompleted {
		if data, err := json.Marshal(run); err == nil {
			rec.ResultJSON = string(data)
		}
	}
	if existing, err := o.runs.GetRun(ctx, run.RunID); err == nil && existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := o.runs.PutRun(ctx, rec); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Str("status", status).Msg("Failed to record run")
	}
}

func (o *Orchestrator) publish(ctx context.Context, run *RunResult) {
	if o.events == nil {
		return
	}
	ev := events.RunCompleted{
		RunID:        run.RunID,
		Title:        run.Storyboard.Title,
		Style:        run.Request.Style,
		SceneCount:   len(run.Scenes),
		ImageCount:   run.Export.Summary.TotalImages,
		FallbackUsed: run.FallbackUsed,
		PDFPath:      run.Export.PDFPath,
		Warnings:     len(run.Warnings),
		DurationMs:   run.Duration.Milliseconds(),
		Timestamp:    o.now().UTC().Format(time.RFC3339),
	}
	if run.Upload != nil {
		ev.UploadStatus = string(run.Upload.Status)
		ev.S3URL = run.Upload.S3URL
	}
	if err := o.events.RunCompleted(ctx, ev); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to publish run event")
	}
}
