// Package events publishes run lifecycle events to Amazon EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// Source is the EventBridge source of every event emitted here.
const Source = "ai-storyboard-generator"

// Detail types.
const (
	DetailRunCompleted       = "StoryboardRunCompleted"
	DetailEvaluationRecorded = "ConsistencyEvaluationRecorded"
)

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// RunCompleted is the detail of a StoryboardRunCompleted event.
type RunCompleted struct {
	RunID        string  `json:"runId"`
	Title        string  `json:"title"`
	Style        string  `json:"style"`
	SceneCount   int     `json:"sceneCount"`
	ImageCount   int     `json:"imageCount"`
	FallbackUsed bool    `json:"fallbackUsed"`
	PDFPath      string  `json:"pdfPath,omitempty"`
	UploadStatus string  `json:"uploadStatus,omitempty"`
	S3URL        string  `json:"s3Url,omitempty"`
	Warnings     int     `json:"warnings"`
	DurationMs   int64   `json:"durationMs"`
	Timestamp    string  `json:"timestamp"`
	Score        float64 `json:"score,omitempty"`
}

// EvaluationRecorded is the detail of a ConsistencyEvaluationRecorded event.
type EvaluationRecorded struct {
	RunID      string  `json:"runId,omitempty"`
	EvalID     string  `json:"evalId"`
	Score      float64 `json:"score"`
	ImageCount int     `json:"imageCount"`
	Timestamp  string  `json:"timestamp"`
}

// Publisher emits events onto one bus.
type Publisher struct {
	client  PutEventsAPI
	busName string
}

// NewPublisher creates a publisher. An empty busName targets the default bus.
func NewPublisher(client PutEventsAPI, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// RunCompleted emits a StoryboardRunCompleted event.
func (p *Publisher) RunCompleted(ctx context.Context, event RunCompleted) error {
	return p.put(ctx, DetailRunCompleted, event.RunID, event)
}

// EvaluationRecorded emits a ConsistencyEvaluationRecorded event.
func (p *Publisher) EvaluationRecorded(ctx context.Context, event EvaluationRecorded) error {
	return p.put(ctx, DetailEvaluationRecorded, event.RunID, event)
}

func (p *Publisher) put(ctx context.Context, detailType, runID string, event any) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(detailType),
		Detail:     aws.String(string(detail)),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Str("detail_type", detailType).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("run_id", runID).
					Str("detail_type", detailType).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("run_id", runID).Str("detail_type", detailType).Msg("Event emitted to EventBridge")
	return nil
}
