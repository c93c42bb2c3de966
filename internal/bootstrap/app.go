package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/consistency"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/events"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
)

// ErrRunNotFound is returned when an evaluation names an unknown run.
var ErrRunNotFound = errors.New("run not found")

// EvaluateRequest asks for a consistency evaluation. When RunID names a
// stored run, missing images, description and roster are taken from it and
// the report is recorded against the run.
type EvaluateRequest struct {
	RunID   string              `json:"runId,omitempty"`
	Images  []string            `json:"images,omitempty"`
	Context consistency.Context `json:"context"`
}

// EvaluateResponse is a report plus the evaluation ID it was stored under.
type EvaluateResponse struct {
	EvalID string              `json:"evalId,omitempty"`
	Report *consistency.Report `json:"report"`
}

// Evaluate runs the consistency evaluator. Only stored runs produce a
// persisted evaluation and an event.
func (a *App) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	refs, ec := req.Images, req.Context
	if req.RunID != "" {
		run, err := a.LoadRun(ctx, req.RunID)
		if err != nil {
			return nil, err
		}
		refs, ec = fillFromRun(run, refs, ec)
	}

	report, err := a.Evaluator.Evaluate(ctx, refs, ec)
	if err != nil {
		return nil, err
	}
	resp := &EvaluateResponse{Report: report}
	if req.RunID == "" {
		return resp, nil
	}

	resp.EvalID = uuid.NewString()
	data, _ := json.Marshal(report)
	eval := &store.Evaluation{
		ID:         resp.EvalID,
		Score:      report.Score,
		Reason:     report.Reason,
		ImageCount: report.TotalImages,
		ResultJSON: string(data),
	}
	if err := a.Runs.PutEvaluation(ctx, req.RunID, eval); err != nil {
		log.Warn().Err(err).Str("run_id", req.RunID).Msg("Failed to persist evaluation")
	}
	if a.Events != nil {
		err := a.Events.EvaluationRecorded(ctx, events.EvaluationRecorded{
			RunID:      req.RunID,
			EvalID:     resp.EvalID,
			Score:      report.Score,
			ImageCount: report.TotalImages,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Warn().Err(err).Str("run_id", req.RunID).Msg("Failed to publish evaluation event")
		}
	}
	return resp, nil
}

// LoadRun returns the stored result of a finished run.
func (a *App) LoadRun(ctx context.Context, runID string) (*pipeline.RunResult, error) {
	rec, err := a.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.ResultJSON == "" {
		return nil, fmt.Errorf("run %s has no stored result (status %s)", runID, rec.Status)
	}
	var res pipeline.RunResult
	if err := json.Unmarshal([]byte(rec.ResultJSON), &res); err != nil {
		return nil, fmt.Errorf("decode stored run %s: %w", runID, err)
	}
	return &res, nil
}

func fillFromRun(run *pipeline.RunResult, refs []string, ec consistency.Context) ([]string, consistency.Context) {
	if len(refs) == 0 {
		for _, sc := range run.Scenes {
			if sc.ImagePath != "" {
				refs = append(refs, sc.ImagePath)
			}
		}
	}
	if ec.Description == "" {
		ec.Description = run.Request.StoryIdea
	}
	if ec.StoryboardJSON == "" {
		if data, err := json.Marshal(run.Storyboard); err == nil {
			ec.StoryboardJSON = string(data)
		}
	}
	if len(ec.Characters) == 0 {
		ec.Characters = run.Storyboard.Characters
	}
	return refs, ec
}
