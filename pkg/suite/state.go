package suite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

// Env is what every case of one run shares.
type Env struct {
	ADB        *adb.Client
	Log        logrus.FieldLogger
	Out        io.Writer // raw console output of the case (Printf)
	OutDir     string    // per-run artifact directory
	SleepScale float64   // multiplier for State.Sleep; zero skips sleeps
	Params     map[string]string
	Prompt     func(name string) (string, bool) // asked when a param is missing
	Order      func([]Entry) []Entry            // aggregate sub-case order
	Now        func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// State is handed to a case body. Fatal and Skip stop the calling goroutine,
// so they must only be called from the case's own goroutine.
type State struct {
	ctx    context.Context
	env    *Env
	module *Module
	name   string

	mu         sync.Mutex
	failed     bool
	skipped    bool
	skipReason string
	status     string
	errs       []string
	cleanups   []func()
}

func newState(ctx context.Context, env *Env, m *Module, name string) *State {
	return &State{ctx: ctx, env: env, module: m, name: name}
}

// Cleanup registers fn to run after the case and its fixtures finished,
// in last-added-first order.
func (s *State) Cleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

func (s *State) runCleanups() {
	s.mu.Lock()
	fns := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fn := fns[i]
		s.runPhase(func(*State) { fn() })
	}
}

// Name returns the running case name.
func (s *State) Name() string { return s.name }

// ModuleName returns the owning module name.
func (s *State) ModuleName() string { return s.module.Name }

// Ctx returns the run context.
func (s *State) Ctx() context.Context { return s.ctx }

// ADB returns the device client.
func (s *State) ADB() *adb.Client { return s.env.ADB }

// Log returns the run logger.
func (s *State) Log() logrus.FieldLogger {
	return s.env.log()
}

// Logf logs at INFO.
func (s *State) Logf(format string, args ...interface{}) {
	s.Log().Infof(format, args...)
}

// Warnf logs at WARNING.
func (s *State) Warnf(format string, args ...interface{}) {
	s.Log().Warnf(format, args...)
}

// Printf writes to the case console, like a print statement.
func (s *State) Printf(format string, args ...interface{}) {
	if s.env.Out == nil {
		return
	}
	fmt.Fprintf(s.env.Out, format, args...)
}

// Println writes one line to the case console.
func (s *State) Println(args ...interface{}) {
	if s.env.Out == nil {
		return
	}
	fmt.Fprintln(s.env.Out, args...)
}

// Errorf logs an error and marks the case failed without stopping it.
func (s *State) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.Log().Error(msg)
	s.fail(msg)
}

// Fatalf is Errorf followed by stopping the case.
func (s *State) Fatalf(format string, args ...interface{}) {
	s.Errorf(format, args...)
	runtime.Goexit()
}

// Fatal stops the case with err.
func (s *State) Fatal(err error) {
	s.Fatalf("%v", err)
}

// Assert fails the case with msg unless cond holds.
func (s *State) Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		s.Fatalf(format, args...)
	}
}

// SetStatus records the status the case reports for itself, such as a
// parsed PASS or UNKNOWN. It does not change the outcome.
func (s *State) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Skipf marks the case skipped and stops it.
func (s *State) Skipf(format string, args ...interface{}) {
	reason := fmt.Sprintf(format, args...)
	s.Log().Infof("[SKIPPED] %s: %s", s.name, reason)
	s.mu.Lock()
	s.skipped = true
	s.skipReason = reason
	s.mu.Unlock()
	runtime.Goexit()
}

func (s *State) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.errs = append(s.errs, msg)
}

// Failed reports whether the case has failed so far.
func (s *State) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *State) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed || s.skipped
}

// Sleep pauses for d scaled by the run's sleep scale. A cancelled run stops the case.
func (s *State) Sleep(d time.Duration) {
	scaled := time.Duration(float64(d) * s.env.SleepScale)
	if scaled <= 0 {
		return
	}
	t := time.NewTimer(scaled)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		s.Fatalf("interrupted: %v", s.ctx.Err())
	case <-t.C:
	}
}

// Param returns a named input, asking the prompter when it was not supplied.
func (s *State) Param(name string) string {
	if v, ok := s.env.Params[name]; ok {
		return v
	}
	if s.env.Prompt != nil {
		if v, ok := s.env.Prompt(name); ok {
			return v
		}
	}
	return ""
}

// ParamOr returns Param(name), or def when it is empty.
func (s *State) ParamOr(name, def string) string {
	if v := strings.TrimSpace(s.Param(name)); v != "" {
		return v
	}
	return def
}

// OutDir returns the artifact directory, creating it on first use.
func (s *State) OutDir() string {
	dir := s.env.OutDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.Warnf("create output dir %s: %v", dir, err)
	}
	return dir
}

// Timestamp formats the current time for file names.
func (s *State) Timestamp() string {
	return s.env.now().Format("20060102_150405")
}

// Now returns the current time of the run clock.
func (s *State) Now() time.Time {
	return s.env.now()
}

// WriteFile writes name under OutDir and returns its path.
// name may contain subdirectories.
func (s *State) WriteFile(name, content string) string {
	path := filepath.Join(s.OutDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.Warnf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		s.Warnf("write %s: %v", path, err)
	}
	return path
}

// AppendFile appends content to name under OutDir and returns its path.
func (s *State) AppendFile(name, content string) string {
	path := filepath.Join(s.OutDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.Warnf("create %s: %v", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.Warnf("open %s: %v", path, err)
		return path
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		s.Warnf("append %s: %v", path, err)
	}
	return path
}

// ClearLogcat empties the device log, logging but tolerating failures.
func (s *State) ClearLogcat() {
	if err := s.ADB().ClearLogcat(s.ctx); err != nil {
		s.Warnf("clear logcat: %v", err)
	}
}

// SaveLogcat writes the device log to name under OutDir. It returns the path,
// or "" when the dump failed.
func (s *State) SaveLogcat(name string) string {
	path := filepath.Join(s.OutDir(), name)
	if err := s.ADB().DumpLogcat(s.ctx, path); err != nil {
		s.Warnf("capture logcat: %v", err)
		return ""
	}
	return path
}

// DumpLogcat saves the device log as <label>_logcat_<timestamp>.txt in OutDir.
func (s *State) DumpLogcat(label string) string {
	path := s.SaveLogcat(fmt.Sprintf("%s_logcat_%s.txt", label, s.Timestamp()))
	if path != "" {
		s.Logf("Logcat saved to: %s", path)
	}
	return path
}
