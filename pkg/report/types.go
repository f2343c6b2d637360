// Package report writes the artifacts of a run (per-case logs, CSV summary,
// JSON index, JUnit XML and HTML) and reads them back for consumers.
package report

import (
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Version of the report.json layout.
const Version = "1.0.0"

// Status of a run or case.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// StatusOf maps a case outcome to a report status.
func StatusOf(o suite.Outcome) Status {
	switch o {
	case suite.Passed:
		return StatusPassed
	case suite.Skipped:
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Summary counts cases by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

func (s *Summary) add(st Status) {
	s.Total++
	switch st {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusRunning:
		s.Running++
	case StatusPending:
		s.Pending++
	}
}

// Index is report.json.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Serial      string      `json:"serial,omitempty"`
	Summary     Summary     `json:"summary"`
	Cases       []CaseEntry `json:"cases"`
}

// CaseEntry is the index line of one case.
type CaseEntry struct {
	Index      int       `json:"index"`
	ID         string    `json:"id"`
	Module     string    `json:"module"`
	Name       string    `json:"name"`
	Source     string    `json:"source,omitempty"`
	Status     Status    `json:"status"`
	StartTime  time.Time `json:"startTime"`
	Duration   *int64    `json:"duration,omitempty"` // ms
	Error      *string   `json:"error,omitempty"`
	LogFile    string    `json:"logFile"`
	LogcatFile string    `json:"logcatFile,omitempty"`
	DataFile   string    `json:"dataFile"`
}

// CaseDetail is cases/<id>.json.
type CaseDetail struct {
	ID        string      `json:"id"`
	Module    string      `json:"module"`
	Name      string      `json:"name"`
	Status    Status      `json:"status"`
	StartTime time.Time   `json:"startTime"`
	Duration  *int64      `json:"duration,omitempty"`
	Error     string      `json:"error,omitempty"`
	Output    string      `json:"output"`
	Sub       []SubResult `json:"sub,omitempty"`
}

// SubResult is one case run inside an aggregate case.
type SubResult struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Duration int64  `json:"duration"`
	Error    string `json:"error,omitempty"`
}
