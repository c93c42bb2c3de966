// Package gateway holds what every external-service adapter shares: the
// GenerationError taxonomy, classification of provider errors into it, and
// bounded retry with per-attempt timeouts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// Kind categorizes a gateway failure.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindAuth           Kind = "auth"
	KindQuota          Kind = "quota"
	KindUnavailable    Kind = "unavailable"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindBadResponse    Kind = "bad_response"
	KindCanceled       Kind = "canceled"
	KindUnknown        Kind = "unknown"
)

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindQuota, KindUnavailable, KindTimeout, KindNetwork, KindBadResponse:
		return true
	}
	return false
}

// ErrEmptyResponse is returned by adapters when the provider answered
// successfully but with no usable content.
var ErrEmptyResponse = errors.New("empty response")

// Error is a classified failure of one gateway operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is returned by REST adapters for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == k
}

// Classify maps err onto a Kind. Errors that are already classified keep
// their kind; op is filled in when missing.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var gerr *Error
	if errors.As(err, &gerr) {
		if gerr.Op == "" {
			gerr.Op = op
		}
		return gerr
	}

	return &Error{Kind: classifyKind(err), Op: op, Err: err}
}

func classifyKind(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrEmptyResponse):
		return KindBadResponse
	}

	// The SDK returns APIError by value; older call paths wrap a pointer.
	var apiVal genai.APIError
	if errors.As(err, &apiVal) {
		return kindForStatus(apiVal.Code)
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.Code)
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return kindForStatus(oaiErr.StatusCode)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return kindForStatus(statusErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "api_key_invalid"),
		strings.Contains(msg, "permission denied"):
		return KindAuth
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "rate limit"):
		return KindQuota
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "unreachable"):
		return KindNetwork
	}
	return KindUnknown
}

func kindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 408:
		return KindTimeout
	case code == 429:
		return KindQuota
	case code >= 500:
		return KindUnavailable
	case code >= 400:
		return KindInvalidRequest
	}
	return KindUnknown
}
