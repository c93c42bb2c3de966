package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/assets"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/chat"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/jsonutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/metrics"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pdf"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/upload"
)

// Step names used in logs and metrics.
const (
	StepScript     = "script"
	StepStoryboard = "storyboard"
	StepImages     = "images"
	StepExport     = "export"
	StepUpload     = "upload"
)

const (
	scriptMaxTokens     = 4096
	storyboardMaxTokens = 8192
	imageAspectRatio    = "16:9"
)

func stepMetric(step string, d time.Duration) *metrics.Recorder {
	return metrics.New(metrics.Namespace).
		Dimension("Step", step).
		Duration("StepLatencyMs", d)
}

// generateScript is step 1. A gateway failure falls back to the story idea
// as the script text.
func (o *Orchestrator) generateScript(ctx context.Context, run *RunResult) error {
	start := time.Now()
	req := run.Request
	run.Script = storyboard.Script{Title: req.Title, Genre: req.Genre, Tone: req.Tone, Style: req.Style}

	prompt, err := o.prompts.Script(assets.ScriptData{
		StoryIdea:  req.StoryIdea,
		Title:      req.Title,
		Genre:      req.Genre,
		Tone:       req.Tone,
		Style:      req.Style,
		SceneCount: assets.DefaultSceneCount,
	})
	if err != nil {
		return fmt.Errorf("render script prompt: %w", err)
	}

	text, err := o.text.Generate(ctx, chat.TextRequest{
		System:          o.prompts.ScriptSystem,
		Prompt:          prompt,
		MaxOutputTokens: scriptMaxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Warn().Err(err).Str("run_id", run.RunID).Str("step", StepScript).Msg("Script generation failed, using story idea as script")
		run.warn("script generation failed: %v", err)
		text = req.StoryIdea
	} else if strings.TrimSpace(text) == "" {
		log.Warn().Str("run_id", run.RunID).Str("step", StepScript).Msg("Script generation returned empty text, using story idea as script")
		run.warn("script generation returned empty text")
		text = req.StoryIdea
	}
	run.Script.Text = text

	elapsed := time.Since(start)
	stepMetric(StepScript, elapsed).Flush()
	log.Info().
		Str("run_id", run.RunID).
		Str("step", StepScript).
		Int("script_len", len(text)).
		Dur("duration", elapsed).
		Msg("Script generated")
	return nil
}

// convertStoryboard is step 2. Gateway failures, parse failures and
// responses without scenes all fall back to the line scan of the script.
func (o *Orchestrator) convertStoryboard(ctx context.Context, run *RunResult) error {
	start := time.Now()
	prompt, err := o.prompts.Storyboard(assets.StoryboardData{
		Script: run.Script.Text,
		Title:  run.Request.Title,
		Style:  run.Request.Style,
	})
	if err != nil {
		return fmt.Errorf("render storyboard prompt: %w", err)
	}

	sb, reason := o.parseStoryboard(ctx, prompt)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if reason != nil {
		log.Warn().
			Err(reason).
			Str("run_id", run.RunID).
			Str("step", StepStoryboard).
			Msg("Storyboard response unusable, using script line scan")
		run.warn("storyboard fallback: %v", reason)
		run.FallbackUsed = true
		sb = storyboard.FallbackFromScript(run.Request.Title, run.Script.Text)
		metrics.New(metrics.Namespace).Dimension("Step", StepStoryboard).Count("StoryboardFallbacks").Flush()
	}
	if strings.TrimSpace(sb.Title) == "" {
		sb.Title = run.Request.Title
	}
	run.Storyboard = sb

	elapsed := time.Since(start)
	stepMetric(StepStoryboard, elapsed).Metric("SceneCount", float64(len(sb.Scenes)), metrics.UnitCount).Flush()
	log.Info().
		Str("run_id", run.RunID).
		Str("step", StepStoryboard).
		Int("scenes", len(sb.Scenes)).
		Int("characters", len(sb.Characters)).
		Bool("fallback", run.FallbackUsed).
		Dur("duration", elapsed).
		Msg("Storyboard ready")
	return nil
}

func (o *Orchestrator) parseStoryboard(ctx context.Context, prompt string) (storyboard.Storyboard, error) {
	raw, err := o.text.Generate(ctx, chat.TextRequest{
		System:          o.prompts.StoryboardSystem,
		Prompt:          prompt,
		MaxOutputTokens: storyboardMaxTokens,
		JSON:            true,
	})
	if err != nil {
		return storyboard.Storyboard{}, err
	}
	sb, err := jsonutil.ParseObject[storyboard.Storyboard](raw)
	if err != nil {
		log.Debug().Str("preview", jsonutil.Preview(raw, 200)).Msg("Storyboard response preview")
		return storyboard.Storyboard{}, err
	}
	if len(sb.Scenes) == 0 {
		return storyboard.Storyboard{}, fmt.Errorf("%w: no scenes", jsonutil.ErrParseFailure)
	}
	sb.Renumber()
	return sb, nil
}

// generateImages is step 3. Scenes are processed one at a time in
// sceneNumber order.
// An anchoring failure aborts the run; an image failure leaves that scene
// without an image.
func (o *Orchestrator) generateImages(ctx context.Context, run *RunResult) error {
	start := time.Now()
	style := run.Request.Style
	scenes := make([]storyboard.SceneWithImage, 0, len(run.Storyboard.Scenes))

	for _, sc := range run.Storyboard.Scenes {
		if err := ctx.Err(); err != nil {
			return err
		}

		anchored, err := o.anchorer.Anchor(ctx, AnchorInput{
			SceneNumber: sc.SceneNumber,
			Prompt:      storyboard.BaseImagePrompt(sc),
			Style:       style,
			Characters:  run.Storyboard.Characters,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Error().Err(err).Str("run_id", run.RunID).Int("scene", sc.SceneNumber).Msg("Consistency anchoring failed")
			return &AnchorError{SceneNumber: sc.SceneNumber, Err: err}
		}

		out := storyboard.SceneWithImage{Scene: sc, Style: style}
		images, err := o.images.Generate(ctx, chat.ImageRequest{
			Prompt:      anchored,
			Style:       style,
			Quality:     chat.QualityStandard,
			AspectRatio: imageAspectRatio,
			Count:       1,
		})
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn().Err(err).Str("run_id", run.RunID).Int("scene", sc.SceneNumber).Msg("Image generation failed for scene")
			run.warn("scene %d: image generation failed: %v", sc.SceneNumber, err)
			metrics.New(metrics.Namespace).Dimension("Step", StepImages).Count("SceneImageFailures").Flush()
		case len(images) == 0:
			run.warn("scene %d: image gateway returned no images", sc.SceneNumber)
		default:
			out.ImagePath = images[0].FileReference
			log.Debug().Str("run_id", run.RunID).Int("scene", sc.SceneNumber).Str("path", out.ImagePath).Msg("Scene image ready")
		}
		scenes = append(scenes, out)
	}
	run.Scenes = scenes

	elapsed := time.Since(start)
	stepMetric(StepImages, elapsed).Metric("ImagesGenerated", float64(storyboard.CountImages(scenes)), metrics.UnitCount).Flush()
	log.Info().
		Str("run_id", run.RunID).
		Str("step", StepImages).
		Int("scenes", len(scenes)).
		Int("images", storyboard.CountImages(scenes)).
		Dur("duration", elapsed).
		Msg("Scene images generated")
	return nil
}

// export is step 4. A render failure yields a placeholder result.
func (o *Orchestrator) export(ctx context.Context, run *RunResult) error {
	start := time.Now()
	title := run.Storyboard.Title
	doc := pdf.Document{Title: title, Style: run.Request.Style, Scenes: run.Scenes}

	policy := gateway.Policy{MaxAttempts: 1, Timeout: o.cfg.Timeouts.PDF}
	res, err := gateway.Do(ctx, policy, "pdf.render", func(ctx context.Context) (storyboard.ExportResult, error) {
		return o.pdf.Render(ctx, doc)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Warn().Err(err).Str("run_id", run.RunID).Str("step", StepExport).Msg("PDF render failed, reporting placeholder")
		run.warn("pdf export failed: %v", err)
		res = storyboard.ExportResult{
			PDFPath: filepath.Join(o.cfg.ExportDir, pdf.FileName(title, o.now())),
			Title:   title,
			Summary: storyboard.ExportSummary{
				TotalScenes: len(run.Scenes),
				TotalImages: storyboard.CountImages(run.Scenes),
			},
		}
	}
	if res.Title == "" {
		res.Title = title
	}
	run.Export = res

	elapsed := time.Since(start)
	stepMetric(StepExport, elapsed).Metric("PDFSizeBytes", float64(res.Summary.PDFSize), metrics.UnitBytes).Flush()
	log.Info().
		Str("run_id", run.RunID).
		Str("step", StepExport).
		Str("pdf", res.PDFPath).
		Int64("size", res.Summary.PDFSize).
		Dur("duration", elapsed).
		Msg("Storyboard exported")
	return nil
}

// uploadExport is step 5. It never fails the run.
func (o *Orchestrator) uploadExport(ctx context.Context, run *RunResult, opts UploadOptions) {
	start := time.Now()
	if o.uploader == nil {
		run.Upload = &storyboard.UploadResult{Status: storyboard.UploadSkipped}
		log.Info().Str("run_id", run.RunID).Str("step", StepUpload).Msg("Upload not configured, skipping")
		return
	}

	callCtx := ctx
	if o.cfg.Timeouts.Upload > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeouts.Upload)
		defer cancel()
	}

	res, err := o.uploader.Upload(callCtx, upload.Request{
		FilePath:        run.Export.PDFPath,
		DesiredFilename: opts.DesiredFilename,
		Bucket:          opts.Bucket,
	})
	switch {
	case err == nil:
	case upload.IsNotConfigured(err):
		res = storyboard.UploadResult{Status: storyboard.UploadSkipped}
		log.Info().Str("run_id", run.RunID).Str("step", StepUpload).Msg("Upload not configured, skipping")
	default:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &gateway.Error{Kind: gateway.KindTimeout, Op: "upload", Err: err}
		}
		res.Status = storyboard.UploadFailed
		res.Success = false
		res.Error = err.Error()
		log.Warn().Err(err).Str("run_id", run.RunID).Str("step", StepUpload).Msg("Upload failed")
		run.warn("upload failed: %v", err)
	}
	run.Upload = &res

	stepMetric(StepUpload, time.Since(start)).Property("status", string(res.Status)).Flush()
	log.Info().
		Str("run_id", run.RunID).
		Str("step", StepUpload).
		Str("status", string(res.Status)).
		Str("s3_url", res.S3URL).
		Dur("duration", time.Since(start)).
		Msg("Upload step finished")
}
