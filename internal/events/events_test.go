package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

type fakeBus struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (f *fakeBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestRunCompleted(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "storyboard-bus")

	err := p.RunCompleted(context.Background(), RunCompleted{RunID: "r1", SceneCount: 5, ImageCount: 4})
	if err != nil {
		t.Fatalf("RunCompleted: %v", err)
	}
	if len(bus.inputs) != 1 {
		t.Fatalf("got %d PutEvents calls", len(bus.inputs))
	}
	entry := bus.inputs[0].Entries[0]
	if aws.ToString(entry.Source) != Source || aws.ToString(entry.DetailType) != DetailRunCompleted || aws.ToString(entry.EventBusName) != "storyboard-bus" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	var detail RunCompleted
	if err := json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.RunID != "r1" || detail.SceneCount != 5 || detail.ImageCount != 4 {
		t.Errorf("unexpected detail: %+v", detail)
	}
}

func TestDefaultBus(t *testing.T) {
	bus := &fakeBus{}
	if err := NewPublisher(bus, "").EvaluationRecorded(context.Background(), EvaluationRecorded{EvalID: "e"}); err != nil {
		t.Fatal(err)
	}
	if bus.inputs[0].Entries[0].EventBusName != nil {
		t.Error("EventBusName should be unset for the default bus")
	}
}

func TestPutEventsErrors(t *testing.T) {
	if err := NewPublisher(&fakeBus{err: errors.New("throttled")}, "").RunCompleted(context.Background(), RunCompleted{}); err == nil {
		t.Error("expected client error")
	}

	failed := &fakeBus{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []eventbridgetypes.PutEventsResultEntry{
			{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
		},
	}}
	if err := NewPublisher(failed, "").RunCompleted(context.Background(), RunCompleted{}); err == nil {
		t.Error("expected entry failure")
	}
}
