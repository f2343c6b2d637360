package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// File names inside a run directory.
const (
	IndexFile   = "report.json"
	SummaryFile = "summary.csv"
	JUnitFile   = "junit-report.xml"
	HTMLFile    = "report.html"
	casesDir    = "cases"
)

var summaryHeader = []string{"Module", "Test Case", "Status", "Duration (s)", "Error", "Log File", "Timestamp"}

// Recorder collects the results of one run under <base>/<run-id>.
// It is safe for concurrent use.
type Recorder struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	index Index
}

// NewRecorder creates the run directory and an initial index.
func NewRecorder(base, runID, serial string) (*Recorder, error) {
	r := &Recorder{dir: filepath.Join(base, runID), now: time.Now}
	if err := os.MkdirAll(filepath.Join(r.dir, casesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	now := r.now()
	r.index = Index{
		Version:     Version,
		RunID:       runID,
		Status:      StatusRunning,
		StartTime:   now,
		LastUpdated: now,
		Serial:      serial,
	}
	if err := r.writeIndex(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the run directory.
func (r *Recorder) Dir() string { return r.dir }

// CaptureLogcat dumps the device log to <module>.<case>_logcat.txt and
// returns the file name relative to Dir, or "" on failure.
func (r *Recorder) CaptureLogcat(ctx context.Context, client *adb.Client, module, name string) string {
	rel := caseFile(module, name) + "_logcat.txt"
	if err := client.DumpLogcat(ctx, filepath.Join(r.dir, rel)); err != nil {
		return ""
	}
	return rel
}

func caseFile(module, name string) string {
	return module + "." + name
}

// Add records a finished case with its captured console output.
func (r *Recorder) Add(res suite.Result, output, logcatFile string) (CaseEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := len(r.index.Cases)
	ms := res.Duration.Milliseconds()
	entry := CaseEntry{
		Index:      i,
		ID:         fmt.Sprintf("case-%03d", i),
		Module:     res.Module,
		Name:       res.Case,
		Status:     StatusOf(res.Outcome),
		StartTime:  res.Start,
		Duration:   &ms,
		LogFile:    caseFile(res.Module, res.Case) + ".txt",
		LogcatFile: logcatFile,
	}
	entry.DataFile = filepath.ToSlash(filepath.Join(casesDir, entry.ID+".json"))
	if res.Error != "" {
		msg := res.Error
		entry.Error = &msg
	}

	detail := CaseDetail{
		ID:        entry.ID,
		Module:    res.Module,
		Name:      res.Case,
		Status:    entry.Status,
		StartTime: res.Start,
		Duration:  &ms,
		Error:     res.Error,
		Output:    output,
	}
	for _, sub := range res.Sub {
		detail.Sub = append(detail.Sub, SubResult{
			Name:     sub.Case,
			Status:   StatusOf(sub.Outcome),
			Duration: sub.Duration.Milliseconds(),
			Error:    sub.Error,
		})
	}

	if err := os.WriteFile(filepath.Join(r.dir, entry.LogFile), []byte(output), 0o644); err != nil {
		return entry, fmt.Errorf("write case log: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(r.dir, entry.DataFile), detail); err != nil {
		return entry, fmt.Errorf("write case detail: %w", err)
	}
	row := []string{
		res.Module, res.Case, string(entry.Status),
		strconv.FormatFloat(res.Duration.Seconds(), 'f', 2, 64),
		res.Error, entry.LogFile, res.Start.Format("2006-01-02 15:04:05"),
	}
	if err := suite.AppendCSV(filepath.Join(r.dir, SummaryFile), summaryHeader, row); err != nil {
		return entry, err
	}

	r.index.Cases = append(r.index.Cases, entry)
	r.index.Summary.add(entry.Status)
	return entry, r.writeIndex()
}

// Finish closes the index and renders the JUnit and HTML reports.
func (r *Recorder) Finish() (*Index, error) {
	r.mu.Lock()
	end := r.now()
	r.index.EndTime = &end
	r.index.Status = runStatus(r.index.Summary)
	err := r.writeIndex()
	idx := r.index
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := GenerateJUnit(r.dir); err != nil {
		return nil, err
	}
	if err := GenerateHTML(r.dir, HTMLConfig{}); err != nil {
		return nil, err
	}
	return &idx, nil
}

// writeIndex must be called with mu held.
func (r *Recorder) writeIndex() error {
	r.index.LastUpdated = r.now()
	r.index.UpdateSeq++
	if err := atomicWriteJSON(filepath.Join(r.dir, IndexFile), r.index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func runStatus(s Summary) Status {
	switch {
	case s.Failed > 0:
		return StatusFailed
	case s.Running > 0 || s.Pending > 0:
		return StatusRunning
	default:
		return StatusPassed
	}
}
