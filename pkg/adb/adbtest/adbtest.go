// Package adbtest provides a scriptable stand-in for the adb binary.
package adbtest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

// Rule answers invocations whose joined arguments contain Match.
// Rules are tried in order; the first match wins.
type Rule struct {
	Match  string
	Stdout string
	Stderr string
	Exit   int
}

// Fake is a generated adb script plus the log of its invocations.
type Fake struct {
	Path    string
	logPath string
}

// New writes a fake adb into t.TempDir. Unmatched invocations exit 0 silently.
func New(t testing.TB, rules ...Rule) *Fake {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake adb needs a POSIX shell")
	}
	dir := t.TempDir()
	f := &Fake{
		Path:    filepath.Join(dir, "adb"),
		logPath: filepath.Join(dir, "calls.log"),
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString(`args="$*"` + "\n")
	fmt.Fprintf(&b, "printf '%%s\\n' \"$args\" >> %s\n", quote(f.logPath))
	b.WriteString("case \"$args\" in\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "  *%s*)\n", quote(r.Match))
		if r.Stdout != "" {
			fmt.Fprintf(&b, "    printf '%%s\\n' %s\n", quote(r.Stdout))
		}
		if r.Stderr != "" {
			fmt.Fprintf(&b, "    printf '%%s\\n' %s >&2\n", quote(r.Stderr))
		}
		fmt.Fprintf(&b, "    exit %d ;;\n", r.Exit)
	}
	b.WriteString("esac\nexit 0\n")

	if err := os.WriteFile(f.Path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write fake adb: %v", err)
	}
	return f
}

// Client returns an adb client bound to the fake.
func (f *Fake) Client(opts ...adb.Option) *adb.Client {
	base := []adb.Option{adb.WithPath(f.Path), adb.WithTimeout(5 * time.Second)}
	return adb.New(append(base, opts...)...)
}

// Calls returns every invocation's arguments, one string per call.
func (f *Fake) Calls() []string {
	data, err := os.ReadFile(f.logPath)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

// Called reports whether any invocation contained substr.
func (f *Fake) Called(substr string) bool {
	for _, c := range f.Calls() {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

// quote single-quotes s for sh.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
