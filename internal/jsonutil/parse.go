// Package jsonutil extracts and parses JSON payloads from LLM responses that
// may be wrapped in markdown code fences or embedded in prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrParseFailure is returned (wrapped) whenever no JSON object can be
// located in a response or the located candidate does not decode.
var ErrParseFailure = errors.New("structured output parse failure")

const fence = "```"

// StripMarkdownFences removes a ```json ... ``` or ``` ... ``` wrapper from
// text. A fence only counts at the start of the text or of a line, so
// backticks inside JSON string values are left alone. Prose before the
// opening fence and after the closing fence is dropped. Text without a fence
// is returned trimmed and otherwise unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	open := fenceStart(text)
	if open == -1 {
		return text
	}

	// The opening fence line may carry a language tag ("```json").
	body := text[open+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(strings.TrimLeft(body, " \t"), "json")
	}

	if end := closingFence(body); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func fenceStart(text string) int {
	if strings.HasPrefix(text, fence) {
		return 0
	}
	if i := strings.Index(text, "\n"+fence); i != -1 {
		return i + 1
	}
	return -1
}

// closingFence finds the last fence that starts a line or ends body.
func closingFence(body string) int {
	trimmed := strings.TrimRight(body, " \t\r\n")
	if strings.HasSuffix(trimmed, fence) {
		return len(trimmed) - len(fence)
	}
	if i := strings.LastIndex(body, "\n"+fence); i != -1 {
		return i + 1
	}
	return -1
}

// ExtractObject returns the span from the first '{' to the last '}' in text.
// The match is greedy: trailing prose that itself contains a closing brace is
// captured too and will then fail to decode.
func ExtractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("%w: no opening brace found", ErrParseFailure)
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", fmt.Errorf("%w: no closing brace found", ErrParseFailure)
	}
	return text[start : end+1], nil
}

// ParseObject strips fences from raw, extracts the greedy brace span and
// unmarshals it into T. When the fence-stripped text yields nothing usable
// the raw text is tried once more. Every failure wraps ErrParseFailure.
func ParseObject[T any](raw string) (T, error) {
	stripped := StripMarkdownFences(raw)
	result, err := decodeObject[T](stripped, len(raw))
	if err != nil && stripped != strings.TrimSpace(raw) {
		if retry, rerr := decodeObject[T](raw, len(raw)); rerr == nil {
			return retry, nil
		}
	}
	return result, err
}

func decodeObject[T any](text string, rawLen int) (T, error) {
	var zero T

	candidate, err := ExtractObject(text)
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, rawLen)
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return zero, fmt.Errorf("%w: invalid JSON: %v (text: %s)", ErrParseFailure, err, Preview(candidate, 200))
	}
	return result, nil
}

// ParseMap is ParseObject into a generic map, used by scorers that probe for
// loosely shaped fields.
func ParseMap(raw string) (map[string]any, error) {
	return ParseObject[map[string]any](raw)
}

// Preview truncates s to at most n bytes without splitting a rune,
// appending "..." when cut.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
