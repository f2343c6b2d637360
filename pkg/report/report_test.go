package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusPassed, true},
		{StatusFailed, true},
		{StatusSkipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func sampleResults() []suite.Result {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []suite.Result{
		{Module: "test_wifi", Case: "test_tc001", Outcome: suite.Passed, Start: start, Duration: 1200 * time.Millisecond},
		{Module: "test_wifi", Case: "test_tc002", Outcome: suite.Failed, Start: start, Duration: 300 * time.Millisecond,
			Error: "Expected 'enabled' not found in output"},
		{Module: "test_display", Case: "test_00_test_all_conditions", Outcome: suite.Failed, Start: start, Duration: 5 * time.Second,
			Error: "1 test(s) failed: test_brightness", Sub: []suite.Result{
				{Case: "test_rotation", Outcome: suite.Passed, Duration: time.Second},
				{Case: "test_brightness", Outcome: suite.Failed, Error: "ERROR: device offline", Duration: time.Second},
			}},
		{Module: "test_display", Case: "test_hdr", Outcome: suite.Skipped, Start: start, Error: "needs root"},
	}
}

func record(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir(), "run-1", "emulator-5554")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	for _, res := range sampleResults() {
		if _, err := r.Add(res, "[STEP] "+res.Case+"\n", ""); err != nil {
			t.Fatalf("Add(%s) error = %v", res.Case, err)
		}
	}
	return r
}

func TestRecorder_IndexAndFiles(t *testing.T) {
	r := record(t)

	index, err := ReadIndex(filepath.Join(r.Dir(), IndexFile))
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if index.Status != StatusRunning {
		t.Errorf("Status before Finish = %s", index.Status)
	}
	want := Summary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}
	if diff := cmp.Diff(want, index.Summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if index.Cases[1].DataFile != "cases/case-001.json" || index.Cases[1].LogFile != "test_wifi.test_tc002.txt" {
		t.Errorf("entry = %+v", index.Cases[1])
	}

	log, err := os.ReadFile(filepath.Join(r.Dir(), "test_wifi.test_tc001.txt"))
	if err != nil || string(log) != "[STEP] test_tc001\n" {
		t.Errorf("case log = %q, %v", log, err)
	}

	f, err := os.Open(filepath.Join(r.Dir(), SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 || rows[0][0] != "Module" || rows[2][2] != "failed" || rows[1][3] != "1.20" {
		t.Errorf("summary rows = %v", rows)
	}
}

func TestRecorder_Finish(t *testing.T) {
	r := record(t)
	index, err := r.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if index.Status != StatusFailed || index.EndTime == nil {
		t.Errorf("Finish() = status %s, end %v", index.Status, index.EndTime)
	}

	xml, err := os.ReadFile(filepath.Join(r.Dir(), JUnitFile))
	if err != nil {
		t.Fatalf("junit not written: %v", err)
	}
	for _, want := range []string{
		`<testsuite name="test_wifi" tests="2" failures="1" skipped="0"`,
		`<testsuite name="test_display" tests="2" failures="1" skipped="1"`,
		`type="AssertionError"`,
		`type="AggregateError">test_brightness: ERROR: device offline</failure>`,
		`<skipped message="needs root"/>`,
		`<property name="device.serial" value="emulator-5554"/>`,
	} {
		if !strings.Contains(string(xml), want) {
			t.Errorf("junit missing %q", want)
		}
	}

	html, err := os.ReadFile(filepath.Join(r.Dir(), HTMLFile))
	if err != nil {
		t.Fatalf("html not written: %v", err)
	}
	for _, want := range []string{"test_display / test_00_test_all_conditions", "Failed 2", "Expected &#39;enabled&#39; not found"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestReadReport(t *testing.T) {
	r := record(t)
	index, cases, err := ReadReport(r.Dir())
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if len(cases) != len(index.Cases) {
		t.Fatalf("cases = %d, entries = %d", len(cases), len(index.Cases))
	}
	agg := cases[2]
	want := []SubResult{
		{Name: "test_rotation", Status: StatusPassed, Duration: 1000},
		{Name: "test_brightness", Status: StatusFailed, Duration: 1000, Error: "ERROR: device offline"},
	}
	if diff := cmp.Diff(want, agg.Sub); diff != "" {
		t.Errorf("Sub mismatch (-want +got):\n%s", diff)
	}
}

func TestRecover(t *testing.T) {
	r := record(t)
	path := filepath.Join(r.Dir(), IndexFile)
	index, _ := ReadIndex(path)
	index.Cases[0].Status = StatusRunning
	index.Summary = Summary{}
	if err := atomicWriteJSON(path, index); err != nil {
		t.Fatal(err)
	}

	if err := Recover(r.Dir()); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	got, _ := ReadIndex(path)
	if got.Status != StatusFailed || got.Cases[0].Status != StatusFailed || *got.Cases[0].Error != "Run interrupted" {
		t.Errorf("recovered index = %+v", got)
	}
	if got.Summary.Failed != 3 || got.EndTime == nil {
		t.Errorf("Summary = %+v, EndTime = %v", got.Summary, got.EndTime)
	}
}

func TestFailureType(t *testing.T) {
	tests := map[string]string{
		"panic: boom\ngoroutine 1":           "PanicError",
		"ERROR: ADB command timed out":       "TimeoutError",
		"Expected 'x' not found in output":   "AssertionError",
		"Unexpected 'Error' found in output": "AssertionError",
		"ERROR: closed":                      "CommandError",
		"2 test(s) failed: test_a, test_b":   "AggregateError",
		"app com.example is not installed":   "TestError",
	}
	for msg, want := range tests {
		if got := failureType(msg); got != want {
			t.Errorf("failureType(%q) = %s, want %s", msg, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	ms := func(v int64) *int64 { return &v }
	tests := []struct {
		in   *int64
		want string
	}{
		{nil, "-"},
		{ms(450), "450ms"},
		{ms(2500), "2.5s"},
		{ms(125000), "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration() = %q, want %q", got, tt.want)
		}
	}
}
