package main

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/consistency"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/evals"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

type generateInput struct {
	StoryIdea string `json:"storyIdea" jsonschema:"one or two sentences describing the story"`
	Style     string `json:"style,omitempty" jsonschema:"visual style applied to every scene"`
	Title     string `json:"title,omitempty" jsonschema:"storyboard title"`
	Genre     string `json:"genre,omitempty" jsonschema:"genre hint for the screenplay"`
	Tone      string `json:"tone,omitempty" jsonschema:"tone hint for the screenplay"`
	Upload    bool   `json:"upload,omitempty" jsonschema:"upload the PDF and notify the webhook"`
}

type generateOutput struct {
	RunID        string   `json:"runId"`
	Title        string   `json:"title"`
	SceneCount   int      `json:"sceneCount"`
	ImageCount   int      `json:"imageCount"`
	Characters   []string `json:"characters"`
	PDFPath      string   `json:"pdfPath"`
	S3URL        string   `json:"s3Url,omitempty"`
	FallbackUsed bool     `json:"fallbackUsed"`
	Warnings     []string `json:"warnings"`
}

type evaluateInput struct {
	RunID          string                 `json:"runId,omitempty" jsonschema:"evaluate the images of a stored run"`
	Images         []string               `json:"images,omitempty" jsonschema:"image paths, URLs, s3:// URIs or data URIs"`
	Description    string                 `json:"description,omitempty" jsonschema:"story description"`
	StoryboardJSON string                 `json:"storyboardJson,omitempty" jsonschema:"storyboard JSON for scene context"`
	Characters     []storyboard.Character `json:"characters,omitempty" jsonschema:"character roster"`
}

type scoreInput struct {
	Metric string `json:"metric" jsonschema:"heuristic metric name"`
	Input  string `json:"input,omitempty" jsonschema:"the input the output was produced from"`
	Output string `json:"output" jsonschema:"JSON model output to score"`
}

type scoreOutput struct {
	Metric string         `json:"metric"`
	Score  float64        `json:"score"`
	Level  string         `json:"level"`
	Info   map[string]any `json:"info"`
}

type toolset struct {
	runner    runner
	evaluator evaluator
}

// runner and evaluator are the parts of bootstrap.App the tools call.
type runner interface {
	Run(ctx context.Context, req storyboard.StoryRequest) (*pipeline.RunResult, error)
	RunWithUpload(ctx context.Context, req storyboard.StoryRequest, opts pipeline.UploadOptions) (*pipeline.RunResult, error)
}

type evaluator interface {
	Evaluate(ctx context.Context, req bootstrap.EvaluateRequest) (*bootstrap.EvaluateResponse, error)
}

func newServer(app *bootstrap.App) *mcp.Server {
	return newServerWith(toolset{runner: app.Orchestrator, evaluator: app})
}

func newServerWith(t toolset) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "storyboard", Version: bootstrap.CommitHash}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_storyboard",
		Description: "Generate a screenplay, storyboard, scene images and PDF from a story idea",
	}, t.generate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_consistency",
		Description: "Judge how consistently characters and environments are drawn across images",
	}, t.evaluate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "score_output",
		Description: "Score JSON model output with a heuristic quality metric",
	}, t.score)
	return server
}

func (t toolset) generate(ctx context.Context, _ *mcp.CallToolRequest, in generateInput) (*mcp.CallToolResult, generateOutput, error) {
	req := storyboard.StoryRequest{
		StoryIdea: in.StoryIdea,
		Style:     in.Style,
		Title:     in.Title,
		Genre:     in.Genre,
		Tone:      in.Tone,
	}
	var (
		res *pipeline.RunResult
		err error
	)
	if in.Upload {
		res, err = t.runner.RunWithUpload(ctx, req, pipeline.UploadOptions{})
	} else {
		res, err = t.runner.Run(ctx, req)
	}
	if err != nil {
		log.Warn().Err(err).Msg("generate_storyboard failed")
		return nil, generateOutput{}, err
	}

	out := generateOutput{
		RunID:        res.RunID,
		Title:        res.Storyboard.Title,
		SceneCount:   len(res.Scenes),
		ImageCount:   storyboard.CountImages(res.Scenes),
		Characters:   []string{},
		PDFPath:      res.Export.PDFPath,
		FallbackUsed: res.FallbackUsed,
		Warnings:     append([]string{}, res.Warnings...),
	}
	for _, c := range res.Storyboard.Characters {
		out.Characters = append(out.Characters, c.Name)
	}
	if res.Upload != nil {
		out.S3URL = res.Upload.S3URL
	}
	return nil, out, nil
}

func (t toolset) evaluate(ctx context.Context, _ *mcp.CallToolRequest, in evaluateInput) (*mcp.CallToolResult, *bootstrap.EvaluateResponse, error) {
	resp, err := t.evaluator.Evaluate(ctx, bootstrap.EvaluateRequest{
		RunID:  in.RunID,
		Images: in.Images,
		Context: consistency.Context{
			Description:    in.Description,
			StoryboardJSON: in.StoryboardJSON,
			Characters:     in.Characters,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, resp, nil
}

func (t toolset) score(_ context.Context, _ *mcp.CallToolRequest, in scoreInput) (*mcp.CallToolResult, scoreOutput, error) {
	if !evals.Known(in.Metric) {
		return nil, scoreOutput{}, fmt.Errorf("%w: %q", evals.ErrUnknownMetric, in.Metric)
	}
	res, err := evals.ScoreHeuristic(in.Metric, in.Input, in.Output)
	if err != nil {
		return nil, scoreOutput{}, err
	}
	return nil, scoreOutput{
		Metric: in.Metric,
		Score:  res.Score,
		Level:  evals.Level(res.Score),
		Info:   res.Info,
	}, nil
}
