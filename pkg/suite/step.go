package suite

import (
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

// Step defaults.
const (
	DefaultRetries    = 2
	DefaultRetryDelay = 2 * time.Second
)

type stepConfig struct {
	expect     []string
	reject     []string
	ignoreCase bool
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
}

// StepOption tunes State.Step.
type StepOption func(*stepConfig)

// Expect requires substr in the output.
func Expect(substr string) StepOption {
	return func(c *stepConfig) { c.expect = append(c.expect, substr) }
}

// ExpectAny requires at least one of substrs in the output.
func ExpectAny(substrs ...string) StepOption {
	return func(c *stepConfig) { c.expect = append(c.expect, substrs...) }
}

// Reject fails the step when substr appears in the output.
func Reject(substr string) StepOption {
	return func(c *stepConfig) { c.reject = append(c.reject, substr) }
}

// IgnoreCase compares expectations case-insensitively.
func IgnoreCase() StepOption {
	return func(c *stepConfig) { c.ignoreCase = true }
}

// Retries sets how many times an ERROR output is retried.
func Retries(n int) StepOption {
	return func(c *stepConfig) { c.retries = n }
}

// RetryDelay sets the pause between retries.
func RetryDelay(d time.Duration) StepOption {
	return func(c *stepConfig) { c.retryDelay = d }
}

// Timeout overrides the adb timeout for this step.
func Timeout(d time.Duration) StepOption {
	return func(c *stepConfig) { c.timeout = d }
}

func (s *State) client(timeout time.Duration) *adb.Client {
	c := s.ADB()
	if timeout <= 0 {
		return c
	}
	cp := *c
	cp.Timeout = timeout
	return &cp
}

// Step runs one adb command with logging, retries ERROR outputs and fails the
// case when the command keeps failing or an expectation is not met.
func (s *State) Step(desc string, args []string, opts ...StepOption) string {
	cfg := stepConfig{retries: DefaultRetries, retryDelay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := s.client(cfg.timeout)

	for attempt := 0; ; attempt++ {
		s.Logf("[STEP] %s", desc)
		s.Logf("[COMMAND] adb %s", strings.Join(args, " "))

		out := client.Exec(s.ctx, args...).Text()
		s.Logf("[OUTPUT] %s", out)

		if adb.IsErrorText(out) {
			if attempt < cfg.retries {
				s.Sleep(cfg.retryDelay)
				continue
			}
			s.Fatalf("%s", out)
		}

		if len(cfg.expect) > 0 && !containsAny(out, cfg.expect, cfg.ignoreCase) {
			s.Fatalf("Expected '%s' not found in output", strings.Join(cfg.expect, "' or '"))
		}
		for _, r := range cfg.reject {
			if containsAny(out, []string{r}, cfg.ignoreCase) {
				s.Fatalf("Unexpected '%s' found in output", r)
			}
		}
		return out
	}
}

// Check runs a command and returns its text without judging it.
func (s *State) Check(desc string, args ...string) string {
	if desc != "" {
		s.Logf("[CHECK] %s", desc)
	}
	out := s.ADB().Exec(s.ctx, args...).Text()
	s.Log().Debugf("[OUTPUT] %s", out)
	return out
}

// Shell is Check for "adb shell" commands without a description.
func (s *State) Shell(args ...string) string {
	return s.Check("", append([]string{"shell"}, args...)...)
}

func containsAny(out string, subs []string, ignoreCase bool) bool {
	if ignoreCase {
		out = strings.ToLower(out)
	}
	for _, sub := range subs {
		if ignoreCase {
			sub = strings.ToLower(sub)
		}
		if strings.Contains(out, sub) {
			return true
		}
	}
	return false
}
