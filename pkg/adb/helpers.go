package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ClearLogcat empties the device log buffer.
func (c *Client) ClearLogcat(ctx context.Context) error {
	_, err := c.Run(ctx, "logcat", "-c")
	return err
}

// DumpLogcat writes the current log buffer to path.
func (c *Client) DumpLogcat(ctx context.Context, path string) error {
	res := c.Exec(ctx, "logcat", "-d")
	if !res.OK() {
		return &CommandError{Args: res.Args, Output: res.Text(), Err: res.Err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create logcat dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(res.Stdout), 0o644); err != nil {
		return fmt.Errorf("write logcat: %w", err)
	}
	return nil
}

// Pull copies a device file to the host.
func (c *Client) Pull(ctx context.Context, remote, local string) (string, error) {
	if dir := filepath.Dir(local); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create pull dir: %w", err)
		}
	}
	return c.Run(ctx, "pull", remote, local)
}

// WaitForDevice blocks until adb reports the device online.
func (c *Client) WaitForDevice(ctx context.Context) error {
	_, err := c.Run(ctx, "wait-for-device")
	return err
}

// WaitForBoot polls sys.boot_completed until it reads 1 or ctx ends.
func (c *Client) WaitForBoot(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		out, err := c.Shell(ctx, "getprop", "sys.boot_completed")
		if err == nil && strings.TrimSpace(out) == "1" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for boot: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// StartLogcat streams `logcat` into path until stop is called or ctx ends.
// It does not apply the per-command timeout.
func (c *Client) StartLogcat(ctx context.Context, path string) (stop func() error, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create logcat dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create logcat file: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, c.binary(), c.args("logcat")...)
	cmd.Stdout = f
	if err := cmd.Start(); err != nil {
		cancel()
		f.Close()
		return nil, fmt.Errorf("start logcat: %w", err)
	}
	return func() error {
		cancel()
		_ = cmd.Wait()
		return f.Close()
	}, nil
}
