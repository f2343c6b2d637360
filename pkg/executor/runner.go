// Package executor runs batches of cases through dispatch workers, one
// device at a time or spread over several devices.
package executor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/report"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Item names one case to run.
type Item struct {
	Module string
	Case   string
}

func (i Item) String() string { return i.Module + "." + i.Case }

// ModuleItems lists every case of m except the aggregate, in registration order.
func ModuleItems(m *suite.Module) []Item {
	entries := m.Entries()
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, Item{Module: m.Name, Case: e.Case.Name})
	}
	return items
}

// RunnerConfig holds the request fields shared by every item of a batch.
type RunnerConfig struct {
	Method    string
	Email     string
	Notify    []string
	Params    map[string]string
	CaseDelay time.Duration // pause between two cases on the same device
	Out       io.Writer     // progress lines; nil for none
}

func (c RunnerConfig) request(it Item) dispatch.Request {
	return dispatch.Request{
		Module: it.Module,
		Case:   it.Case,
		Method: c.Method,
		Email:  c.Email,
		Notify: c.Notify,
		Params: c.Params,
	}
}

// CaseResult is the outcome of one item.
type CaseResult struct {
	Item   Item
	Index  int
	Serial string
	Report dispatch.Report
}

// Status maps the dispatch outcome to a report status.
func (r CaseResult) Status() report.Status {
	if r.Report.Err != nil {
		return report.StatusFailed
	}
	return report.StatusOf(r.Report.Result.Outcome)
}

// RunResult aggregates a batch.
type RunResult struct {
	Status   report.Status
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
	Results  []CaseResult
}

// Runner executes items one after another on a single worker.
type Runner struct {
	worker *dispatch.Worker
	config RunnerConfig
}

// New creates a sequential runner.
func New(worker *dispatch.Worker, config RunnerConfig) *Runner {
	return &Runner{worker: worker, config: config}
}

// Run executes items in order, waiting CaseDelay between them. A cancelled
// context stops the batch; items not reached are reported skipped.
func (r *Runner) Run(ctx context.Context, items []Item) (*RunResult, error) {
	start := time.Now()
	results := make([]CaseResult, len(items))
	for i, it := range items {
		results[i] = notRun(it, i)
	}

	var serial string
	if r.worker.ADB != nil {
		serial = r.worker.ADB.Serial
	}
	for i, it := range items {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := wait(ctx, r.config.CaseDelay); err != nil {
				break
			}
		}
		r.printf("[%d/%d] %s\n", i+1, len(items), it)
		rep := r.worker.Run(ctx, r.config.request(it))
		res := CaseResult{Item: it, Index: i, Serial: serial, Report: rep}
		results[i] = res
		r.printf("[%d/%d] %s - %s (%s)\n", i+1, len(items), it,
			statusLabel(res.Status()), formatDuration(rep.Result.Duration.Milliseconds()))
		if res.Status() == report.StatusFailed && rep.Result.Error != "" {
			r.printf("  Error: %s\n", firstLine(rep.Result.Error))
		}
	}
	return buildRunResult(results, time.Since(start)), ctx.Err()
}

func (r *Runner) printf(format string, args ...interface{}) {
	if r.config.Out != nil {
		fmt.Fprintf(r.config.Out, format, args...)
	}
}

func notRun(it Item, index int) CaseResult {
	return CaseResult{
		Item:  it,
		Index: index,
		Report: dispatch.Report{
			Request: dispatch.Request{Module: it.Module, Case: it.Case},
			Result:  suite.Result{Module: it.Module, Case: it.Case, Outcome: suite.Skipped, Error: "not run"},
		},
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func statusLabel(s report.Status) string {
	switch s {
	case report.StatusPassed:
		return "✓ Passed"
	case report.StatusSkipped:
		return "- Skipped"
	default:
		return "✗ Failed"
	}
}

// formatDuration formats milliseconds as human-readable duration
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	secs := int(seconds) % 60
	return fmt.Sprintf("%dm%ds", minutes, secs)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
