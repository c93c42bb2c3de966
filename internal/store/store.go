// Package store persists storyboard run history and consistency
// evaluations.
//
// The DynamoDB implementation uses a single-table design where all records
// for a run share a partition key (RUN#{runId}). Sort keys distinguish
// record types: META for the run itself and EVAL#{evalId} for each
// consistency evaluation recorded against it. A TTL attribute (expiresAt)
// auto-deletes records after RunTTL. MemoryStore implements the same
// interface for the CLI and tests.
package store

import (
	"context"
	"errors"
	"time"
)

// RunTTL is the time-to-live for all DynamoDB records.
const RunTTL = 7 * 24 * time.Hour

// ErrNotFound is returned by update operations on a run that does not exist.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunStore is the persistence interface for pipeline runs.
//
// Get methods return (nil, nil) when the record does not exist.
// Put methods perform full-item replacement.
type RunStore interface {
	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)

	// SetDriveURL records the Google Drive link reported for a run's PDF.
	// It returns ErrNotFound when the run is unknown.
	SetDriveURL(ctx context.Context, runID, url string) error

	PutEvaluation(ctx context.Context, runID string, eval *Evaluation) error
	ListEvaluations(ctx context.Context, runID string) ([]*Evaluation, error)
}

// Run is one pipeline execution (DynamoDB SK = META).
type Run struct {
	ID             string   `json:"id" dynamodbav:"-"`
	Status         string   `json:"status" dynamodbav:"status"`
	StoryIdea      string   `json:"storyIdea" dynamodbav:"storyIdea"`
	Title          string   `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Style          string   `json:"style,omitempty" dynamodbav:"style,omitempty"`
	SceneCount     int      `json:"sceneCount,omitempty" dynamodbav:"sceneCount,omitempty"`
	ImageCount     int      `json:"imageCount,omitempty" dynamodbav:"imageCount,omitempty"`
	FallbackUsed   bool     `json:"fallbackUsed,omitempty" dynamodbav:"fallbackUsed,omitempty"`
	PDFPath        string   `json:"pdfPath,omitempty" dynamodbav:"pdfPath,omitempty"`
	S3URL          string   `json:"s3Url,omitempty" dynamodbav:"s3Url,omitempty"`
	GoogleDriveURL string   `json:"googleDriveUrl,omitempty" dynamodbav:"googleDriveUrl,omitempty"`
	Warnings       []string `json:"warnings,omitempty" dynamodbav:"warnings,omitempty"`
	Error          string   `json:"error,omitempty" dynamodbav:"error,omitempty"`
	// ResultJSON is the serialized pipeline result of a finished run.
	ResultJSON string `json:"-" dynamodbav:"resultJson,omitempty"`
	CreatedAt  int64  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// Evaluation is one consistency judgement (DynamoDB SK = EVAL#{evalId}).
type Evaluation struct {
	ID         string  `json:"id" dynamodbav:"-"`
	RunID      string  `json:"runId" dynamodbav:"-"`
	Score      float64 `json:"score" dynamodbav:"score"`
	Reason     string  `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	ImageCount int     `json:"imageCount" dynamodbav:"imageCount"`
	ResultJSON string  `json:"-" dynamodbav:"resultJson,omitempty"`
	CreatedAt  int64   `json:"createdAt" dynamodbav:"createdAt"`
}
