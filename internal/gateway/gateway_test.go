package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"empty", fmt.Errorf("gemini: %w", ErrEmptyResponse), KindBadResponse},
		{"genai 401", &genai.APIError{Code: 401, Message: "bad key"}, KindAuth},
		{"genai 429", &genai.APIError{Code: 429}, KindQuota},
		{"genai 503", &genai.APIError{Code: 503}, KindUnavailable},
		{"genai 400", &genai.APIError{Code: 400}, KindInvalidRequest},
		{"genai value 500", fmt.Errorf("generate: %w", genai.APIError{Code: 500}), KindUnavailable},
		{"status 502", &StatusError{Code: 502, Body: "bad gateway"}, KindUnavailable},
		{"status 404", &StatusError{Code: 404}, KindInvalidRequest},
		{"message quota", errors.New("Resource exhausted: quota"), KindQuota},
		{"message key", errors.New("API key not valid. Please pass a valid API key."), KindAuth},
		{"message dial", errors.New("dial tcp: lookup host: no such host"), KindNetwork},
		{"unknown", errors.New("something odd"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op", tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %s, want %s", tt.err, got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap the original")
			}
		})
	}
}

func TestClassify_KeepsExistingKind(t *testing.T) {
	orig := &Error{Kind: KindQuota, Err: errors.New("slow down")}
	got := Classify("text.generate", fmt.Errorf("wrapped: %w", orig))
	if got != orig || got.Op != "text.generate" {
		t.Errorf("got %+v", got)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "text", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Code: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "text", func(ctx context.Context) (string, error) {
		calls++
		return "", &StatusError{Code: 400, Body: "bad prompt"}
	})
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	if !IsKind(err, KindInvalidRequest) {
		t.Errorf("expected invalid_request, got %v", err)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "image", func(ctx context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 429}
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !IsKind(err, KindQuota) {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	p := fastPolicy(2)
	p.Timeout = 10 * time.Millisecond
	calls := 0
	_, err := Do(context.Background(), p, "pdf", func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	if calls != 2 {
		t.Errorf("timeouts should be retried, got %d calls", calls)
	}
	if !IsKind(err, KindTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestDo_ParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(5), "text", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", &StatusError{Code: 503}
	})
	if calls != 1 {
		t.Errorf("expected 1 call after cancellation, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}
