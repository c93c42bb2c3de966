package chat

import (
	"context"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/gateway"
)

// RetryingText applies a retry policy and per-attempt timeout to a
// TextGateway. Errors it returns are *gateway.Error.
type RetryingText struct {
	Next   TextGateway
	Policy gateway.Policy
	Op     string
}

// WithRetry wraps next.
func WithRetry(next TextGateway, policy gateway.Policy, op string) *RetryingText {
	return &RetryingText{Next: next, Policy: policy, Op: op}
}

func (r *RetryingText) Generate(ctx context.Context, req TextRequest) (string, error) {
	return gateway.Do(ctx, r.Policy, r.Op, func(ctx context.Context) (string, error) {
		return r.Next.Generate(ctx, req)
	})
}
