package suite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/droidprobe/pkg/adb/adbtest"
	"github.com/devicelab-dev/droidprobe/pkg/logging"
)

func noop(*State) {}

func testEnv(t *testing.T, fake *adbtest.Fake) (*Env, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	env := &Env{
		Log:    logging.Capture(nil, &logs),
		Out:    &logs,
		OutDir: t.TempDir(),
	}
	if fake != nil {
		env.ADB = fake.Client()
	}
	return env, &logs
}

func TestRegistry_AddsAggregate(t *testing.T) {
	r := NewRegistry()
	m := &Module{
		Name: "test_sample",
		Cases: []*Case{
			{Name: "test_one", Func: noop},
			{Name: "test_two", Func: noop},
		},
	}
	if err := r.Add(m); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	want := []string{"test_00_test_all_conditions", "test_one", "test_two"}
	if diff := cmp.Diff(want, m.CaseNames()); diff != "" {
		t.Errorf("CaseNames() mismatch (-want +got):\n%s", diff)
	}
	e, ok := m.Lookup(AggregateName)
	if !ok || !e.Case.Aggregate() {
		t.Errorf("Lookup(%q) = %+v, %v", AggregateName, e, ok)
	}
}

func TestRegistry_SingleCaseHasNoAggregate(t *testing.T) {
	r := NewRegistry()
	m := &Module{Name: "test_single", Cases: []*Case{{Name: "test_only", Func: noop}}}
	if err := r.Add(m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Lookup(AggregateName); ok {
		t.Error("single-case module should not get an aggregate case")
	}
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  *Module
	}{
		{"no name", &Module{}},
		{"bad prefix", &Module{Name: "m", Cases: []*Case{{Name: "check_x", Func: noop}}}},
		{"no body", &Module{Name: "m", Cases: []*Case{{Name: "test_x"}}}},
		{"group case without name", &Module{Name: "m", Groups: []*Group{{Name: "G", Cases: []*Case{{Func: noop}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Add(tt.mod); err == nil {
				t.Error("Add() error = nil, want error")
			}
		})
	}
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&Module{Name: "m", Cases: []*Case{{Name: "test_a", Func: noop}}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(&Module{Name: "m", Cases: []*Case{{Name: "test_b", Func: noop}}}); err == nil {
		t.Error("second Add() error = nil, want duplicate error")
	}
}

func TestRegistry_ModulesSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"test_wifi", "Message", "test_audio_module"} {
		if err := r.Add(&Module{Name: n, Cases: []*Case{{Name: "test_x", Func: noop}}}); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"Message", "test_audio_module", "test_wifi"}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup_GroupOrder(t *testing.T) {
	zeta := &Case{Name: "test_shared", Func: noop}
	alpha := &Case{Name: "test_shared", Func: noop}
	m := &Module{
		Name: "m",
		Groups: []*Group{
			{Name: "Zeta", Cases: []*Case{zeta}},
			{Name: "Alpha", Cases: []*Case{alpha}},
		},
	}
	e, ok := m.Lookup("test_shared")
	if !ok {
		t.Fatal("Lookup() not found")
	}
	if e.Case != alpha || e.Group.Name != "Alpha" {
		t.Errorf("Lookup() picked group %q, want Alpha", e.Group.Name)
	}

	top := &Case{Name: "test_shared", Func: noop}
	m.Cases = []*Case{top}
	if e, _ := m.Lookup("test_shared"); e.Case != top || e.Group != nil {
		t.Error("module-level case should win over group cases")
	}
}

func TestRun_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		c       *Case
		want    Outcome
		wantErr string
	}{
		{"pass", &Case{Name: "test_p", Func: noop}, Passed, ""},
		{"errorf continues", &Case{Name: "test_e", Func: func(s *State) {
			s.Errorf("first")
			s.Errorf("second")
		}}, Failed, "first\nsecond"},
		{"fatal stops", &Case{Name: "test_f", Func: func(s *State) {
			s.Fatalf("stop here")
			s.Errorf("unreachable")
		}}, Failed, "stop here"},
		{"skip", &Case{Name: "test_s", Func: func(s *State) {
			s.Skipf("needs root")
		}}, Skipped, "needs root"},
		{"registered skip", &Case{Name: "test_r", Skip: "Requires special permissions"}, Skipped, "Requires special permissions"},
		{"assert", &Case{Name: "test_a", Func: func(s *State) {
			s.Assert(1 == 2, "1 != %d", 2)
		}}, Failed, "1 != 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := testEnv(t, nil)
			m := &Module{Name: "m", Cases: []*Case{tt.c}}
			res := Run(context.Background(), env, m, Entry{Case: tt.c})
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.want)
			}
			if res.Error != tt.wantErr {
				t.Errorf("Error = %q, want %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	env, _ := testEnv(t, nil)
	c := &Case{Name: "test_panic", Func: func(*State) { panic("boom") }}
	res := Run(context.Background(), env, &Module{Name: "m"}, Entry{Case: c})

	if res.Outcome != Failed {
		t.Fatalf("Outcome = %s, want failed", res.Outcome)
	}
	if !strings.HasPrefix(res.Error, "panic: boom") || !strings.Contains(res.Error, "goroutine") {
		t.Errorf("Error = %q, want panic message with stack", res.Error)
	}
}

func TestRun_FixtureOrder(t *testing.T) {
	env, _ := testEnv(t, nil)
	var order []string
	rec := func(name string) Func { return func(*State) { order = append(order, name) } }

	c := &Case{Name: "test_body", Func: rec("case")}
	g := &Group{Name: "G", Setup: rec("group-setup"), Teardown: rec("group-teardown"), Cases: []*Case{c}}
	m := &Module{Name: "m", Setup: rec("module-setup"), Teardown: rec("module-teardown"), Groups: []*Group{g}}

	Run(context.Background(), env, m, Entry{Group: g, Case: c})

	want := []string{"module-setup", "group-setup", "case", "group-teardown", "module-teardown"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CleanupAfterTeardown(t *testing.T) {
	env, _ := testEnv(t, nil)
	var order []string
	c := &Case{Name: "test_body", Func: func(s *State) {
		s.Cleanup(func() { order = append(order, "first") })
		s.Cleanup(func() { order = append(order, "second") })
		s.Fatalf("stop")
	}}
	m := &Module{Name: "m", Teardown: func(*State) { order = append(order, "teardown") }, Cases: []*Case{c}}

	Run(context.Background(), env, m, Entry{Case: c})

	want := []string{"teardown", "second", "first"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestState_AppendFile(t *testing.T) {
	env, _ := testEnv(t, nil)
	c := &Case{Name: "test_body", Func: func(s *State) {
		s.AppendFile("logs/a.txt", "one\n")
		s.AppendFile("logs/a.txt", "two\n")
	}}
	Run(context.Background(), env, &Module{Name: "m", Cases: []*Case{c}}, Entry{Case: c})

	data, err := os.ReadFile(filepath.Join(env.OutDir, "logs", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRun_TeardownAfterFatal(t *testing.T) {
	env, _ := testEnv(t, nil)
	tornDown := false
	c := &Case{Name: "test_body", Func: func(s *State) { s.Fatalf("fail") }}
	m := &Module{Name: "m", Teardown: func(*State) { tornDown = true }, Cases: []*Case{c}}

	res := Run(context.Background(), env, m, Entry{Case: c})
	if res.Outcome != Failed || !tornDown {
		t.Errorf("Outcome = %s, tornDown = %v", res.Outcome, tornDown)
	}
}

func TestRun_SetupFailureSkipsBody(t *testing.T) {
	env, _ := testEnv(t, nil)
	ran := false
	c := &Case{Name: "test_body", Func: func(*State) { ran = true }}
	m := &Module{Name: "m", Setup: func(s *State) { s.Fatalf("device offline") }, Cases: []*Case{c}}

	res := Run(context.Background(), env, m, Entry{Case: c})
	if ran {
		t.Error("case body ran after setup failure")
	}
	if res.Error != "device offline" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestRun_Aggregate(t *testing.T) {
	env, logs := testEnv(t, nil)
	r := NewRegistry()
	m := &Module{
		Name: "test_bluetooth",
		Cases: []*Case{
			{Name: "test_01_ok", Func: noop},
			{Name: "test_02_bad", Func: func(s *State) { s.Fatalf("not enabled") }},
			{Name: "test_03_skip", Skip: "no headset"},
			{Name: "test_04_worse", Func: func(s *State) { s.Fatalf("no MAC") }},
		},
	}
	if err := r.Add(m); err != nil {
		t.Fatal(err)
	}

	e, _ := m.Lookup(AggregateName)
	res := Run(context.Background(), env, m, e)

	if res.Outcome != Failed {
		t.Fatalf("Outcome = %s, want failed", res.Outcome)
	}
	if want := "2 test(s) failed: test_02_bad, test_04_worse"; res.Error != want {
		t.Errorf("Error = %q, want %q", res.Error, want)
	}
	if len(res.Sub) != 4 {
		t.Errorf("len(Sub) = %d, want 4", len(res.Sub))
	}
	for _, line := range []string{"[RUNNING] test_01_ok", "[PASSED] test_01_ok", "[FAILED] test_02_bad with error: not enabled", "[SKIPPED] test_03_skip"} {
		if !strings.Contains(logs.String(), line) {
			t.Errorf("log missing %q", line)
		}
	}
}

func TestRun_AggregateAllPass(t *testing.T) {
	env, logs := testEnv(t, nil)
	m := &Module{Name: "test_clock", Cases: []*Case{{Name: "test_a", Func: noop}, {Name: "test_b", Func: noop}}}
	if err := NewRegistry().Add(m); err != nil {
		t.Fatal(err)
	}
	var seen []string
	env.Order = func(entries []Entry) []Entry {
		for _, e := range entries {
			seen = append(seen, e.Case.Name)
		}
		return []Entry{entries[1], entries[0]}
	}

	e, _ := m.Lookup(AggregateName)
	res := Run(context.Background(), env, m, e)
	if res.Outcome != Passed {
		t.Fatalf("Outcome = %s, error %q", res.Outcome, res.Error)
	}
	if diff := cmp.Diff([]string{"test_a", "test_b"}, seen); diff != "" {
		t.Errorf("Order input mismatch (-want +got):\n%s", diff)
	}
	if res.Sub[0].Case != "test_b" {
		t.Errorf("first sub-case = %s, want test_b", res.Sub[0].Case)
	}
	if !strings.Contains(logs.String(), "[SUMMARY] All test_clock tests executed successfully.") {
		t.Errorf("missing summary line in %q", logs.String())
	}
}

func TestState_SleepScaled(t *testing.T) {
	env, _ := testEnv(t, nil)
	env.SleepScale = 0
	c := &Case{Name: "test_sleep", Func: func(s *State) { s.Sleep(time.Hour) }}

	done := make(chan Result, 1)
	go func() { done <- Run(context.Background(), env, &Module{Name: "m"}, Entry{Case: c}) }()
	select {
	case res := <-done:
		if res.Outcome != Passed {
			t.Errorf("Outcome = %s", res.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep with zero scale blocked")
	}
}

func TestState_SleepCancelled(t *testing.T) {
	env, _ := testEnv(t, nil)
	env.SleepScale = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Case{Name: "test_sleep", Func: func(s *State) { s.Sleep(time.Hour) }}

	res := Run(ctx, env, &Module{Name: "m"}, Entry{Case: c})
	if res.Outcome != Failed || !strings.Contains(res.Error, "interrupted") {
		t.Errorf("Run() = %s %q, want interrupted failure", res.Outcome, res.Error)
	}
}

func TestState_Param(t *testing.T) {
	env, _ := testEnv(t, nil)
	env.Params = map[string]string{"package": "com.android.chrome"}
	asked := []string{}
	env.Prompt = func(name string) (string, bool) {
		asked = append(asked, name)
		if name == "search_term" {
			return "maps", true
		}
		return "", false
	}

	var got []string
	c := &Case{Name: "test_params", Func: func(s *State) {
		got = append(got, s.Param("package"), s.Param("search_term"), s.ParamOr("permission", "android.permission.CAMERA"))
	}}
	Run(context.Background(), env, &Module{Name: "m"}, Entry{Case: c})

	if diff := cmp.Diff([]string{"com.android.chrome", "maps", "android.permission.CAMERA"}, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"search_term", "permission"}, asked); diff != "" {
		t.Errorf("prompted mismatch (-want +got):\n%s", diff)
	}
}

func TestState_AppendCSV(t *testing.T) {
	env, _ := testEnv(t, nil)
	c := &Case{Name: "test_csv", Func: func(s *State) {
		header := []string{"Test Case ID", "Result", "Timestamp"}
		s.AppendCSV("camera.csv", header, []string{"TC_CAM_001", "PASS", "t1"})
		s.AppendCSV("camera.csv", header, []string{"TC_CAM_002", "FAIL, retry", "t2"})
	}}
	Run(context.Background(), env, &Module{Name: "m"}, Entry{Case: c})

	data, err := os.ReadFile(filepath.Join(env.OutDir, "camera.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Test Case ID,Result,Timestamp\nTC_CAM_001,PASS,t1\nTC_CAM_002,\"FAIL, retry\",t2\n"
	if string(data) != want {
		t.Errorf("csv = %q, want %q", data, want)
	}
}

func TestState_Printf(t *testing.T) {
	env, out := testEnv(t, nil)
	c := &Case{Name: "test_print", Func: func(s *State) { s.Printf("Status: %s\n", "PASS") }}
	Run(context.Background(), env, &Module{Name: "m"}, Entry{Case: c})
	if !strings.Contains(out.String(), "Status: PASS\n") {
		t.Errorf("console = %q", out.String())
	}
}

func TestRun_ReportedStatus(t *testing.T) {
	env, _ := testEnv(t, nil)
	m := &Module{Name: "test_status", Cases: []*Case{
		{Name: "test_unknown", Func: func(s *State) { s.SetStatus("UNKNOWN") }},
		{Name: "test_failed", Func: func(s *State) { s.SetStatus("FAIL"); s.Errorf("reported FAIL") }},
	}}

	tests := []struct {
		name    string
		outcome Outcome
		status  string
	}{
		{"test_unknown", Passed, "UNKNOWN"},
		{"test_failed", Failed, "FAIL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := m.Lookup(tt.name)
			res := Run(context.Background(), env, m, e)
			if res.Outcome != tt.outcome || res.Status != tt.status {
				t.Errorf("Run() = %s/%q, want %s/%q", res.Outcome, res.Status, tt.outcome, tt.status)
			}
		})
	}
}
