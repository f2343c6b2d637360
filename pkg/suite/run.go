package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Outcome is the final status of a case.
type Outcome string

// Case outcomes.
const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
)

// Result describes one finished case.
type Result struct {
	Module   string
	Case     string
	Outcome  Outcome
	Error    string // failure messages or skip reason
	Status   string // status the case reported itself, see State.SetStatus
	Start    time.Time
	Duration time.Duration
	Sub      []Result // per-case results of an aggregate run
}

// Err returns the failure as an error, nil unless the case failed.
func (r Result) Err() error {
	if r.Outcome != Failed {
		return nil
	}
	return errors.New(r.Error)
}

// Run executes one case of m with its fixtures and returns the outcome.
func Run(ctx context.Context, env *Env, m *Module, e Entry) Result {
	if e.Case.aggregate {
		return runAggregate(ctx, env, m, e.Case)
	}
	return runCase(ctx, env, m, e)
}

func runCase(ctx context.Context, env *Env, m *Module, e Entry) Result {
	start := env.now()
	res := Result{Module: m.Name, Case: e.Case.Name, Start: start}

	if e.Case.Skip != "" {
		env.log().Infof("[SKIPPED] %s: %s", e.Case.Name, e.Case.Skip)
		res.Outcome = Skipped
		res.Error = e.Case.Skip
		return res
	}

	s := newState(ctx, env, m, e.Case.Name)
	s.Logf("[TEST START] %s", e.Case.Name)

	var teardowns []Func
	setups := []struct{ setup, teardown Func }{{m.Setup, m.Teardown}}
	if e.Group != nil {
		setups = append(setups, struct{ setup, teardown Func }{e.Group.Setup, e.Group.Teardown})
	}
	ready := true
	for _, fx := range setups {
		if !s.runPhase(fx.setup) {
			ready = false
			break
		}
		teardowns = append(teardowns, fx.teardown)
	}
	if ready {
		s.runPhase(e.Case.Func)
	}
	for i := len(teardowns) - 1; i >= 0; i-- {
		s.runPhase(teardowns[i])
	}
	s.runCleanups()

	s.Logf("[TEST END] %s", e.Case.Name)
	res.Duration = env.now().Sub(start)
	s.mu.Lock()
	defer s.mu.Unlock()
	res.Status = s.status
	switch {
	case s.failed:
		res.Outcome = Failed
		res.Error = strings.Join(s.errs, "\n")
	case s.skipped:
		res.Outcome = Skipped
		res.Error = s.skipReason
	default:
		res.Outcome = Passed
	}
	return res
}

// runPhase runs fn on its own goroutine so Fatal and Skip can stop it.
// It reports whether the case may continue.
func (s *State) runPhase(fn Func) bool {
	if fn == nil {
		return !s.stopped()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
				s.Log().Error(msg)
				s.fail(msg)
			}
		}()
		fn(s)
	}()
	<-done
	return !s.stopped()
}

func runAggregate(ctx context.Context, env *Env, m *Module, c *Case) Result {
	start := env.now()
	s := newState(ctx, env, m, c.Name)
	res := Result{Module: m.Name, Case: c.Name, Start: start}

	entries := m.Entries()
	if env.Order != nil {
		entries = env.Order(entries)
	}

	var failed []string
	s.runPhase(func(s *State) {
		for i, e := range entries {
			if i > 0 && m.Interval > 0 {
				s.Sleep(m.Interval)
			}
			s.Logf("[RUNNING] %s", e.Case.Name)
			sub := runCase(ctx, env, m, e)
			res.Sub = append(res.Sub, sub)
			switch sub.Outcome {
			case Passed:
				s.Logf("[PASSED] %s", e.Case.Name)
			case Skipped:
				s.Logf("[SKIPPED] %s: %s", e.Case.Name, sub.Error)
			default:
				s.Log().Errorf("[FAILED] %s with error: %s", e.Case.Name, sub.Error)
				failed = append(failed, e.Case.Name)
			}
		}
		if m.Summary != nil {
			m.Summary(s, res.Sub)
		}
	})

	if len(failed) > 0 {
		summary := fmt.Sprintf("%d test(s) failed: %s", len(failed), strings.Join(failed, ", "))
		s.Log().Errorf("[SUMMARY] %s", summary)
		s.fail(summary)
	} else if !s.stopped() {
		s.Logf("[SUMMARY] All %s tests executed successfully.", m.Name)
	}

	res.Duration = env.now().Sub(start)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		res.Outcome = Failed
		res.Error = strings.Join(s.errs, "\n")
	} else {
		res.Outcome = Passed
	}
	return res
}
