// Package evals holds the heuristic quality metrics: pure, deterministic
// scorers over the JSON a step produced. Every scorer strips markdown
// fences, decodes the output and awards a fixed weight per satisfied check.
// Metrics never fail on bad output; they score it 0 and say why in
// Result.Info["reason"].
package evals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/jsonutil"
)

// ErrUnknownMetric is returned by ScoreHeuristic for a name not in the
// registry.
var ErrUnknownMetric = errors.New("unknown metric")

// Result is one metric outcome.
type Result struct {
	Score float64        `json:"score"`
	Info  map[string]any `json:"info"`
}

// scorer receives the caller's input and the decoded output document.
type scorer func(input string, doc map[string]any) Result

type metric struct {
	label string
	score scorer
}

var registry = map[string]metric{}

func register(name, label string, fn scorer) {
	registry[name] = metric{label: label, score: fn}
}

// Names lists every registered metric, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a registered metric.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// ScoreHeuristic runs the named metric. The only error is ErrUnknownMetric;
// unparseable output yields score 0.
func ScoreHeuristic(name, input, output string) (Result, error) {
	m, ok := registry[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(jsonutil.StripMarkdownFences(output)), &doc); err != nil || doc == nil {
		reason := "output is not a JSON object"
		info := map[string]any{
			"reason":        fmt.Sprintf("Error evaluating %s: %s", m.label, reason),
			"outputPreview": jsonutil.Preview(output, 200),
		}
		if err != nil {
			info["error"] = err.Error()
		}
		return Result{Score: 0, Info: info}, nil
	}
	return m.score(input, doc), nil
}

// check is one weighted condition. Weight is awarded in full when ok, or
// scaled by fraction for partial checks.
type check struct {
	key      string
	weight   float64
	ok       bool
	fraction *float64
}

func pass(key string, weight float64, ok bool) check {
	return check{key: key, weight: weight, ok: ok}
}

func part(key string, weight, fraction float64) check {
	return check{key: key, weight: weight, fraction: &fraction}
}

func (c check) earned() float64 {
	if c.fraction != nil {
		return c.weight * clamp(*c.fraction)
	}
	if c.ok {
		return c.weight
	}
	return 0
}

// sumChecks adds the earned weights, caps the total at 1 and records every
// check in the info map.
func sumChecks(label string, checks []check, extra map[string]any) Result {
	var total float64
	info := make(map[string]any, len(checks)+len(extra)+2)
	for _, c := range checks {
		total += c.earned()
		if c.fraction != nil {
			info[c.key] = round(*c.fraction)
		} else {
			info[c.key] = c.ok
		}
	}
	for k, v := range extra {
		info[k] = v
	}
	score := round(clamp(total))
	info["reason"] = fmt.Sprintf("%s: %.1f%%", label, score*100)
	info["totalChecks"] = len(checks)
	return Result{Score: score, Info: info}
}

func fail(reason string) Result {
	return Result{Score: 0, Info: map[string]any{"reason": reason}}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// round trims float noise so repeated sums compare equal in callers.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// --- loose JSON probes ---

// truthy follows JSON-document truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func anyTruthy(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if truthy(m[k]) {
			return true
		}
	}
	return false
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

func str(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func unitInterval(v any) bool {
	f, ok := number(v)
	return ok && f >= 0 && f <= 1
}
