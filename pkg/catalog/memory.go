package catalog

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	modules []string
	runs    []Run
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ReplaceModules(_ context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules = sortedCopy(names)
	return nil
}

func (m *Memory) Modules(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.modules...), nil
}

func (m *Memory) RecordRun(_ context.Context, r Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *Memory) Runs(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	runs := make([]Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		runs = append(runs, m.runs[i])
	}
	m.mu.Unlock()
	return newestFirst(runs, limit), nil
}

func (m *Memory) Close() error { return nil }
