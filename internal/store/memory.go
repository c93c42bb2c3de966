package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process RunStore. Records never expire.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]Run
	evals map[string]map[string]Evaluation
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]Run),
		evals: make(map[string]map[string]Evaluation),
	}
}

func (m *MemoryStore) PutRun(ctx context.Context, run *Run) error {
	now := time.Now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	cp.Warnings = append([]string(nil), run.Warnings...)
	m.runs[run.ID] = cp
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	run.Warnings = append([]string(nil), run.Warnings...)
	return &run, nil
}

func (m *MemoryStore) SetDriveURL(ctx context.Context, runID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("set drive url %s: %w", runID, ErrNotFound)
	}
	run.GoogleDriveURL = url
	run.UpdatedAt = time.Now().Unix()
	m.runs[runID] = run
	return nil
}

func (m *MemoryStore) PutEvaluation(ctx context.Context, runID string, eval *Evaluation) error {
	if eval.CreatedAt == 0 {
		eval.CreatedAt = time.Now().Unix()
	}
	eval.RunID = runID

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.evals[runID] == nil {
		m.evals[runID] = make(map[string]Evaluation)
	}
	m.evals[runID][eval.ID] = *eval
	return nil
}

// ListEvaluations returns evaluations ordered by ID, matching the sort-key
// order DynamoDB would return.
func (m *MemoryStore) ListEvaluations(ctx context.Context, runID string) ([]*Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Evaluation, 0, len(m.evals[runID]))
	for _, e := range m.evals[runID] {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
