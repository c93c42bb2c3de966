// Package api serves the storyboard pipeline, the consistency evaluator and
// the heuristic metrics over HTTP. The same handler runs behind the local
// `storyboard serve` command and the Lambda function URL.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/consistency"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/evals"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/store"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/webhook"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ai-storyboard-generator"

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context, req storyboard.StoryRequest) (*pipeline.RunResult, error)
	RunWithUpload(ctx context.Context, req storyboard.StoryRequest, opts pipeline.UploadOptions) (*pipeline.RunResult, error)
}

// Evaluator judges character consistency.
type Evaluator interface {
	Evaluate(ctx context.Context, req bootstrap.EvaluateRequest) (*bootstrap.EvaluateResponse, error)
}

// Deps are the handler's collaborators.
type Deps struct {
	Runner        Runner
	Evaluator     Evaluator
	Runs          store.RunStore
	WebhookSecret string
}

// FromApp wires Deps from a bootstrapped application.
func FromApp(app *bootstrap.App) Deps {
	return Deps{
		Runner:        app.Orchestrator,
		Evaluator:     app,
		Runs:          app.Runs,
		WebhookSecret: app.Config.Upload.WebhookSecret,
	}
}

// NewHandler returns the API mux wrapped with request metrics.
func NewHandler(deps Deps) http.Handler {
	s := &server{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/score/{metric}", s.handleScore)
	mux.Handle("POST /api/webhooks/drive", webhook.NewDriveHandler(deps.Runs, deps.WebhookSecret))
	return withMetrics(mux)
}

type server struct {
	deps Deps
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

// runRequest is the body of POST /api/runs.
type runRequest struct {
	storyboard.StoryRequest
	Upload          bool   `json:"upload,omitempty"`
	DesiredFilename string `json:"desiredFilename,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
}

func (s *server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StoryIdea) == "" {
		httpError(w, http.StatusBadRequest, "storyIdea is required")
		return
	}

	var (
		res *pipeline.RunResult
		err error
	)
	if req.Upload {
		res, err = s.deps.Runner.RunWithUpload(r.Context(), req.StoryRequest, pipeline.UploadOptions{
			DesiredFilename: req.DesiredFilename,
			Bucket:          req.Bucket,
		})
	} else {
		res, err = s.deps.Runner.Run(r.Context(), req.StoryRequest)
	}
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpError(w, http.StatusServiceUnavailable, "run cancelled", err.Error())
		case pipeline.IsAnchorError(err):
			httpError(w, http.StatusBadGateway, "consistency anchoring failed", err.Error())
		default:
			httpError(w, http.StatusInternalServerError, "storyboard run failed", err.Error())
		}
		return
	}

	log.Info().
		Str("run_id", res.RunID).
		Int("scenes", len(res.Scenes)).
		Bool("fallback", res.FallbackUsed).
		Msg("Run completed via API")
	respondJSON(w, http.StatusOK, res)
}

// runResponse is a stored run with its decoded result and evaluations.
type runResponse struct {
	*store.Run
	Result      json.RawMessage     `json:"result,omitempty"`
	Evaluations []*store.Evaluation `json:"evaluations"`
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.deps.Runs.GetRun(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load run", err.Error())
		return
	}
	if run == nil {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	evaluations, err := s.deps.Runs.ListEvaluations(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load evaluations", err.Error())
		return
	}
	if evaluations == nil {
		evaluations = []*store.Evaluation{}
	}

	resp := runResponse{Run: run, Evaluations: evaluations}
	if run.ResultJSON != "" && json.Valid([]byte(run.ResultJSON)) {
		resp.Result = json.RawMessage(run.ResultJSON)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req bootstrap.EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.deps.Evaluator.Evaluate(r.Context(), req)
	if err != nil {
		var ve *consistency.ValidationError
		switch {
		case errors.As(err, &ve):
			log.Warn().Err(err).Str("field", ve.Field).Msg("Judge response failed validation")
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "judge response failed validation",
				"field":  ve.Field,
				"reason": ve.Reason,
				"score":  0,
			})
		case errors.Is(err, bootstrap.ErrRunNotFound):
			httpError(w, http.StatusNotFound, "run not found")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpError(w, http.StatusServiceUnavailable, "evaluation cancelled", err.Error())
		default:
			httpError(w, http.StatusInternalServerError, "evaluation failed", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// scoreRequest is the body of POST /api/score/{metric}.
type scoreRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("metric")
	if !evals.Known(name) {
		httpError(w, http.StatusNotFound, "unknown metric: "+name)
		return
	}
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := evals.ScoreHeuristic(name, req.Input, req.Output)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "scoring failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"metric": name,
		"score":  res.Score,
		"info":   res.Info,
	})
}
