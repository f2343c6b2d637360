// Package adb runs the Android Debug Bridge as a subprocess and normalizes
// its output for test steps.
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout is applied to every command unless the client overrides it.
const DefaultTimeout = 15 * time.Second

// Output texts produced by Result.Text.
const (
	ErrorPrefix = "ERROR"
	TimeoutText = "ERROR: ADB command timed out"
	SuccessText = "SUCCESS"
)

// Client invokes adb, optionally bound to one device serial.
type Client struct {
	Path    string        // adb binary; resolved by Locate when empty
	Serial  string        // passed as -s when set
	Timeout time.Duration // per command; DefaultTimeout when zero
}

// Option configures a Client.
type Option func(*Client)

// WithPath sets the adb binary path.
func WithPath(path string) Option {
	return func(c *Client) { c.Path = path }
}

// WithSerial binds the client to one device.
func WithSerial(serial string) Option {
	return func(c *Client) { c.Serial = serial }
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

// New creates a client. The adb binary is located once here.
func New(opts ...Option) *Client {
	c := &Client{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.Path == "" {
		c.Path = Locate()
	}
	return c
}

// ForSerial returns a copy of the client bound to another device.
func (c *Client) ForSerial(serial string) *Client {
	cp := *c
	cp.Serial = serial
	return &cp
}

// Result holds the outcome of one adb invocation.
type Result struct {
	Args     []string // arguments after "adb" (without -s)
	Stdout   string
	Stderr   string
	ExitCode int   // -1 when adb did not run to completion
	Err      error // spawn failure or non-zero exit
	TimedOut bool
	Duration time.Duration
}

// OK reports whether the command exited zero.
func (r *Result) OK() bool {
	return r.Err == nil && !r.TimedOut
}

// Text returns trimmed stdout, or an ERROR-prefixed description of the failure.
func (r *Result) Text() string {
	if r.TimedOut {
		return TimeoutText
	}
	if r.Err != nil {
		var exitErr *exec.ExitError
		if errors.As(r.Err, &exitErr) {
			msg := strings.TrimSpace(r.Stderr)
			if msg == "" {
				msg = "Unknown error"
			}
			return ErrorPrefix + ": " + msg
		}
		return ErrorPrefix + ": " + r.Err.Error()
	}
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
		return errOut
	}
	return SuccessText
}

// CommandError is returned by Run when adb fails.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("adb %s: %s", strings.Join(e.Args, " "), e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsErrorText reports whether a Result.Text value describes a failure.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

func (c *Client) binary() string {
	if c.Path == "" {
		return "adb"
	}
	return c.Path
}

// args prefixes args with the device selector.
func (c *Client) args(args ...string) []string {
	if c.Serial == "" {
		return args
	}
	return append([]string{"-s", c.Serial}, args...)
}

// Exec runs adb with args and never returns nil.
func (c *Client) Exec(ctx context.Context, args ...string) *Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary(), c.args(args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      err,
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}
	res.ExitCode = -1
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	return res
}

// Run executes adb and returns Result.Text. A failure also yields a *CommandError.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	res := c.Exec(ctx, args...)
	text := res.Text()
	if !res.OK() {
		err := res.Err
		if res.TimedOut {
			err = context.DeadlineExceeded
		}
		return text, &CommandError{Args: args, Output: text, Err: err}
	}
	return text, nil
}

// Shell runs "adb shell <args>".
func (c *Client) Shell(ctx context.Context, args ...string) (string, error) {
	return c.Run(ctx, append([]string{"shell"}, args...)...)
}
