// Package logging configures the logrus loggers used by the runner.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimeLayout matches the "asctime" style: date, time and milliseconds.
const TimeLayout = "2006-01-02 15:04:05,000"

// LogFileName is the file written under the log directory.
const LogFileName = "droidprobe.log"

// Formatter renders "<time> - <LEVEL> - <message>" lines.
type Formatter struct{}

// Format implements logrus.Formatter.
func (Formatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimeLayout))
	b.WriteString(" - ")
	b.WriteString(levelName(e.Level))
	b.WriteString(" - ")
	b.WriteString(e.Message)
	for _, k := range sortedKeys(e.Data) {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// MessageFormatter renders the bare message, as shown in run reports.
type MessageFormatter struct{}

// Format implements logrus.Formatter.
func (MessageFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

func levelName(l logrus.Level) string {
	if l == logrus.WarnLevel {
		return "WARNING"
	}
	return strings.ToUpper(l.String())
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writerHook sends entries at or above a level to one writer.
type writerHook struct {
	w         io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func newWriterHook(w io.Writer, min logrus.Level) *writerHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return &writerHook{w: w, formatter: Formatter{}, levels: levels}
}

func (h *writerHook) Levels() []logrus.Level { return h.levels }

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

// Options controls New.
type Options struct {
	Dir     string    // file log directory; no file when empty
	Verbose bool      // console at DEBUG instead of INFO
	Console io.Writer // defaults to os.Stderr
}

// New builds the base logger: console at INFO (DEBUG when verbose), file at DEBUG.
// The returned close func releases the log file.
func New(opts Options) (*logrus.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetFormatter(Formatter{})
	log.SetLevel(logrus.DebugLevel)

	consoleLevel := logrus.InfoLevel
	if opts.Verbose {
		consoleLevel = logrus.DebugLevel
	}
	log.AddHook(newWriterHook(console, consoleLevel))

	closeFn := func() error { return nil }
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		log.AddHook(newWriterHook(f, logrus.DebugLevel))
		closeFn = f.Close
	}

	return log, closeFn, nil
}

// Capture derives a logger that writes the bare messages of INFO and above
// to w in addition to every destination of base. base itself is not modified.
func Capture(base *logrus.Logger, w io.Writer) *logrus.Logger {
	child := logrus.New()
	child.SetOutput(io.Discard)
	child.SetFormatter(Formatter{})
	child.SetLevel(logrus.DebugLevel)

	hooks := make(logrus.LevelHooks)
	if base != nil {
		for level, hs := range base.Hooks {
			hooks[level] = append([]logrus.Hook(nil), hs...)
		}
	}
	child.ReplaceHooks(hooks)
	capture := newWriterHook(w, logrus.InfoLevel)
	capture.formatter = MessageFormatter{}
	child.AddHook(capture)
	return child
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
