// Package catalog stores the list of known test modules and the history of
// dispatched runs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/config"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// ErrDisabled is returned by Open when the catalog backend is "none".
var ErrDisabled = errors.New("catalog disabled")

// Run is one dispatched case as kept in history.
type Run struct {
	ID       string        `json:"id"`
	Module   string        `json:"module"`
	Case     string        `json:"case"`
	Method   string        `json:"method"`
	Email    string        `json:"email,omitempty"`
	Notify   []string      `json:"notify,omitempty"`
	Serial   string        `json:"serial,omitempty"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Store persists module names and run history.
type Store interface {
	// ReplaceModules drops the stored module list and stores names instead.
	ReplaceModules(ctx context.Context, names []string) error
	// Modules returns the stored module names, sorted.
	Modules(ctx context.Context) ([]string, error)
	// RecordRun appends a run to history.
	RecordRun(ctx context.Context, r Run) error
	// Runs returns up to limit runs, newest first. limit <= 0 means all.
	Runs(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Catalog) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.Prefix)
	case "memory":
		return NewMemory(), nil
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.Backend)
	}
}

// Sync replaces the stored module list with the modules registered in r
// and returns the names written.
func Sync(ctx context.Context, s Store, r *suite.Registry) ([]string, error) {
	names := r.Names()
	if err := s.ReplaceModules(ctx, names); err != nil {
		return nil, fmt.Errorf("sync modules: %w", err)
	}
	return names, nil
}

func sortedCopy(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// newestFirst orders runs by start time, latest first, and applies limit.
func newestFirst(runs []Run, limit int) []Run {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Started.After(runs[j].Started) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}
