package gui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/droidprobe/pkg/catalog"
	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", nil},
		{"blank lines and comments", "\n# note\n  \n", nil},
		{"pairs", "numbers = 9876543210,9123456789\nselection=3", map[string]string{
			"numbers": "9876543210,9123456789", "selection": "3",
		}},
		{"value with equals", "url=https://x.io/?a=b", map[string]string{"url": "https://x.io/?a=b"}},
		{"bare key", "network_restored", map[string]string{"network_restored": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseParams(tt.in)); diff != "" {
				t.Errorf("ParseParams mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func sampleRegistry(t *testing.T) *suite.Registry {
	t.Helper()
	r := suite.NewRegistry()
	noop := func(*suite.State) {}
	if err := r.Add(&suite.Module{Name: "test_clock", Cases: []*suite.Case{
		{Name: "test_alarm", Func: noop}, {Name: "test_timer", Func: noop},
	}}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestModuleNames(t *testing.T) {
	reg := sampleRegistry(t)
	ctx := context.Background()

	if got := moduleNames(ctx, nil, reg, nil); !cmp.Equal(got, []string{"test_clock"}) {
		t.Errorf("registry fallback = %v", got)
	}

	store := catalog.NewMemory()
	if err := store.ReplaceModules(ctx, []string{"test_wifi", "test_audio_module"}); err != nil {
		t.Fatal(err)
	}
	if got := moduleNames(ctx, store, reg, nil); !cmp.Equal(got, []string{"test_audio_module", "test_wifi"}) {
		t.Errorf("catalog names = %v", got)
	}

	if got := moduleNames(ctx, nil, suite.NewRegistry(), nil); !cmp.Equal(got, []string{NoModules}) {
		t.Errorf("empty = %v", got)
	}
}

func TestCaseNames(t *testing.T) {
	reg := sampleRegistry(t)
	want := []string{suite.AggregateName, "test_alarm", "test_timer"}
	if diff := cmp.Diff(want, caseNames(reg, "test_clock")); diff != "" {
		t.Errorf("caseNames mismatch (-want +got):\n%s", diff)
	}
	if got := caseNames(reg, NoModules); !cmp.Equal(got, []string{NoTestCases}) {
		t.Errorf("unknown module = %v", got)
	}
}

func TestNew_FormDefaults(t *testing.T) {
	a := test.NewTempApp(t)
	reg := sampleRegistry(t)
	u := New(a, Options{Registry: reg, Worker: &dispatch.Worker{Registry: reg}})

	if u.module.Selected != "test_clock" {
		t.Errorf("module = %q", u.module.Selected)
	}
	if u.testcase.Selected != suite.AggregateName {
		t.Errorf("testcase = %q", u.testcase.Selected)
	}

	u.pre.SetChecked(true)
	u.email.SetText(" qa@example.com ")
	u.params.SetText("selection=2")
	got := u.Request()
	want := dispatch.Request{
		Module: "test_clock",
		Case:   suite.AggregateName,
		Method: dispatch.MethodDefault,
		Email:  "qa@example.com",
		Notify: []string{"PRE"},
		Params: map[string]string{"selection": "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Request mismatch (-want +got):\n%s", diff)
	}
}

func TestLaunch_DisabledUntilReport(t *testing.T) {
	a := test.NewTempApp(t)
	release := make(chan struct{})
	var runs atomic.Int32
	reg := suite.NewRegistry()
	err := reg.Add(&suite.Module{Name: "test_wait", Cases: []*suite.Case{{Name: "test_block", Func: func(s *suite.State) {
		runs.Add(1)
		<-release
		s.Printf("released\n")
	}}}})
	if err != nil {
		t.Fatal(err)
	}
	w := &dispatch.Worker{Registry: reg, OutDir: t.TempDir()}
	u := New(a, Options{Registry: reg, Worker: w})

	u.Launch()
	if !u.launch.Disabled() {
		t.Error("launch button enabled while the case runs")
	}
	if u.console.Text != Launching {
		t.Errorf("console = %q, want %q", u.console.Text, Launching)
	}
	if !w.Busy() {
		t.Error("worker not busy after Launch")
	}
	u.Launch()

	close(release)
	var text string
	var enabled bool
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		fyne.DoAndWait(func() {
			text = u.console.Text
			enabled = !u.launch.Disabled()
		})
		if enabled {
			break
		}
	}
	if !enabled {
		t.Fatal("launch button not re-enabled after the report")
	}
	if !strings.HasPrefix(text, "[Module]        test_wait\n[Test Case]     test_block\n") || !strings.Contains(text, "released") {
		t.Errorf("console = %q", text)
	}
	if n := runs.Load(); n != 1 {
		t.Errorf("case ran %d times, want 1", n)
	}
}
