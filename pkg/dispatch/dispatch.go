// Package dispatch resolves a (module, case) pair by name, runs it with its
// output captured and renders the run report shown to the operator.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
	"github.com/devicelab-dev/droidprobe/pkg/catalog"
	"github.com/devicelab-dev/droidprobe/pkg/logging"
	"github.com/devicelab-dev/droidprobe/pkg/report"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Execution methods.
const (
	MethodDefault    = "Default"
	MethodRandomized = "Randomized"
)

// Methods lists the selectable methods in display order.
var Methods = []string{MethodDefault, MethodRandomized}

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrCaseNotFound   = errors.New("test case not found")
)

// ModuleError reports an unknown module name.
type ModuleError struct {
	Module string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module 'tests.%s' not found", e.Module)
}

func (e *ModuleError) Is(target error) bool { return target == ErrModuleNotFound }

// CaseError reports a case name the module does not define.
type CaseError struct {
	Module string
	Case   string
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("test case '%s' not found in module '%s'", e.Case, e.Module)
}

func (e *CaseError) Is(target error) bool { return target == ErrCaseNotFound }

// Request selects one case to run.
type Request struct {
	Module string
	Case   string
	Method string // MethodDefault when empty
	Email  string
	Notify []string // "PRE", "POST"
	Params map[string]string
}

// Report is the outcome of one dispatch.
type Report struct {
	RunID   string
	Request Request
	Result  suite.Result
	Err     error  // set when the case could not be resolved or run
	Output  string // captured console and log output
	Text    string // rendered report
	Entry   *report.CaseEntry
}

// OK reports whether the case ran and did not fail.
func (r Report) OK() bool {
	return r.Err == nil && r.Result.Outcome != suite.Failed
}

// Sink receives finished cases, typically a *report.Recorder.
type Sink interface {
	Add(res suite.Result, output, logcatFile string) (report.CaseEntry, error)
	CaptureLogcat(ctx context.Context, client *adb.Client, module, name string) string
}

// Worker runs dispatched cases against one device.
type Worker struct {
	Registry   *suite.Registry
	ADB        *adb.Client
	Log        *logrus.Logger
	OutDir     string
	SleepScale float64
	Params     map[string]string // defaults under Request.Params
	Prompt     func(name string) (string, bool)
	History    catalog.Store // optional
	Recorder   Sink          // optional
	Now        func() time.Time
	Shuffle    func(n int, swap func(i, j int)) // rand.Shuffle when nil

	inflight atomic.Int32
}

func (w *Worker) registry() *suite.Registry {
	if w.Registry == nil {
		return suite.Default
	}
	return w.Registry
}

func (w *Worker) log() *logrus.Logger {
	if w.Log == nil {
		return logging.Discard()
	}
	return w.Log
}

// Busy reports whether a case is running.
func (w *Worker) Busy() bool {
	return w.inflight.Load() > 0
}

// Resolve finds the module and the case by name. Module-level cases win over
// group cases; groups are searched in name order.
func (w *Worker) Resolve(module, name string) (*suite.Module, suite.Entry, error) {
	m, ok := w.registry().Module(module)
	if !ok {
		return nil, suite.Entry{}, &ModuleError{Module: module}
	}
	e, ok := m.Lookup(name)
	if !ok {
		return nil, suite.Entry{}, &CaseError{Module: module, Case: name}
	}
	return m, e, nil
}

// Start runs req on a new goroutine. The channel delivers exactly one report
// and is then closed.
func (w *Worker) Start(ctx context.Context, req Request) <-chan Report {
	ch := make(chan Report, 1)
	w.inflight.Add(1)
	go func() {
		defer close(ch)
		defer w.inflight.Add(-1)
		ch <- w.Run(ctx, req)
	}()
	return ch
}

// Run resolves and executes req, blocking until the case finished.
func (w *Worker) Run(ctx context.Context, req Request) Report {
	w.inflight.Add(1)
	defer w.inflight.Add(-1)

	if req.Method == "" {
		req.Method = MethodDefault
	}
	rep := Report{RunID: uuid.NewString(), Request: req}
	log := w.log().WithFields(logrus.Fields{"module": req.Module, "case": req.Case})

	m, entry, err := w.Resolve(req.Module, req.Case)
	if err == nil {
		err = checkMethod(req.Method)
	}
	if err != nil {
		log.Errorf("dispatch: %v", err)
		rep.Err = err
		rep.Result = suite.Result{Module: req.Module, Case: req.Case, Outcome: suite.Failed, Error: err.Error(), Start: w.now()}
		rep.Text = render(req, "", err.Error())
		w.record(ctx, &rep)
		return rep
	}

	log.Infof("Dispatching %s.%s (method=%s)", req.Module, req.Case, req.Method)
	var buf captureBuffer
	env := &suite.Env{
		ADB:        w.ADB,
		Log:        logging.Capture(w.Log, &buf),
		Out:        &buf,
		OutDir:     w.OutDir,
		SleepScale: w.SleepScale,
		Params:     w.params(req.Params),
		Prompt:     w.Prompt,
		Order:      w.order(req.Method),
		Now:        w.Now,
	}

	done := make(chan suite.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- suite.Result{
					Module:  req.Module,
					Case:    req.Case,
					Outcome: suite.Failed,
					Error:   fmt.Sprintf("panic: %v\n%s", r, debug.Stack()),
					Start:   w.now(),
				}
			}
		}()
		done <- suite.Run(ctx, env, m, entry)
	}()
	rep.Result = <-done
	rep.Output = buf.String()

	if rep.Result.Outcome == suite.Failed {
		rep.Text = render(req, "", rep.Result.Error)
	} else {
		rep.Text = render(req, rep.Output, "")
	}
	log.Infof("Finished %s.%s: %s in %v", req.Module, req.Case, rep.Result.Outcome, rep.Result.Duration)

	w.record(ctx, &rep)
	return rep
}

func (w *Worker) record(ctx context.Context, rep *Report) {
	if w.Recorder != nil {
		var logcat string
		if w.ADB != nil && rep.Err == nil {
			logcat = w.Recorder.CaptureLogcat(ctx, w.ADB, rep.Result.Module, rep.Result.Case)
		}
		entry, err := w.Recorder.Add(rep.Result, rep.Output, logcat)
		if err != nil {
			w.log().Warnf("record report: %v", err)
		} else {
			rep.Entry = &entry
		}
	}

	if w.History == nil {
		return
	}
	run := catalog.Run{
		ID:       rep.RunID,
		Module:   rep.Request.Module,
		Case:     rep.Request.Case,
		Method:   rep.Request.Method,
		Email:    rep.Request.Email,
		Notify:   rep.Request.Notify,
		Outcome:  string(rep.Result.Outcome),
		Error:    firstLine(rep.Result.Error),
		Started:  rep.Result.Start,
		Duration: rep.Result.Duration,
	}
	if w.ADB != nil {
		run.Serial = w.ADB.Serial
	}
	if err := w.History.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		w.log().Warnf("record run history: %v", err)
	}
}

// params layers the request values over the worker defaults.
func (w *Worker) params(req map[string]string) map[string]string {
	if len(w.Params) == 0 {
		return req
	}
	out := make(map[string]string, len(w.Params)+len(req))
	for k, v := range w.Params {
		out[k] = v
	}
	for k, v := range req {
		out[k] = v
	}
	return out
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func checkMethod(method string) error {
	for _, m := range Methods {
		if m == method {
			return nil
		}
	}
	return fmt.Errorf("unknown method %q", method)
}

// order returns the aggregate sub-case ordering for method.
func (w *Worker) order(method string) func([]suite.Entry) []suite.Entry {
	if method != MethodRandomized {
		return nil
	}
	shuffle := w.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return func(in []suite.Entry) []suite.Entry {
		out := append([]suite.Entry(nil), in...)
		shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
}

// render formats the operator report. A non-empty errText selects the error form.
func render(req Request, output, errText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Module]        %s\n", req.Module)
	fmt.Fprintf(&b, "[Test Case]     %s\n", req.Case)
	if errText != "" {
		b.WriteString("❌ Error:\n")
		b.WriteString(errText)
		return strings.TrimSpace(b.String())
	}
	notify := "None"
	if len(req.Notify) > 0 {
		notify = strings.Join(req.Notify, ", ")
	}
	fmt.Fprintf(&b, "[Method]        %s\n", req.Method)
	fmt.Fprintf(&b, "[Email]         %s\n", req.Email)
	fmt.Fprintf(&b, "[Notify]        %s\n", notify)
	b.WriteString("\n✅ Output:\n")
	b.WriteString(strings.TrimSpace(output))
	return strings.TrimSpace(b.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// captureBuffer collects output written from case goroutines and log hooks.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
