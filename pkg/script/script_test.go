package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/droidprobe/pkg/adb/adbtest"
	"github.com/devicelab-dev/droidprobe/pkg/logging"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const sampleModule = `
name: test_sample
desc: Sample checks
setup:
  - cmd: [logcat, -c]
cases:
  - name: test_volume
    desc: Raise volume
    steps:
      - desc: Volume up
        cmd: [shell, input, keyevent, "24"]
  - name: test_battery
    params: [level]
    steps:
      - cmd: [shell, dumpsys, battery]
        expect: "level: ${level}"
        retries: 0
  - name: test_volume
    skip: duplicate entry
  - name: helper_not_a_test
    skip: not collected
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleModule), "sample.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Name != "test_sample" || len(f.Cases) != 4 || len(f.Setup) != 1 {
		t.Errorf("Parse() = %+v", f)
	}
	if got := f.Cases[1].Steps[0]; got.Retries == nil || *got.Retries != 0 {
		t.Errorf("retries = %v, want explicit 0", got.Retries)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "empty module file"},
		{"unknown key", "name: m\ncases:\n  - name: test_a\n    stepz: []\n", "stepz"},
		{"missing cmd", "name: m\ncases:\n  - name: test_a\n    steps:\n      - desc: nothing\n", "cmd is required"},
		{"no steps", "name: m\ncases:\n  - name: test_a\n", "has no steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "m.yaml")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParse_NameFromFile(t *testing.T) {
	f, err := Parse([]byte("cases:\n  - name: test_a\n    steps:\n      - cmd: [devices]\n"), "/x/test_from_file.yml")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "test_from_file" {
		t.Errorf("Name = %q", f.Name)
	}
}

func TestDiscover(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sample.yaml", sampleModule)
	got, err := Discover(path)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []string{"test_battery", "test_volume"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Discover() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SortedAndSkipsUnderscore(t *testing.T) {
	dir := t.TempDir()
	one := "name: %s\ncases:\n  - name: test_a\n    steps:\n      - cmd: [devices]\n"
	writeFile(t, dir, "b.yaml", strings.Replace(one, "%s", "test_b", 1))
	writeFile(t, dir, "a.yml", strings.Replace(one, "%s", "test_a", 1))
	writeFile(t, dir, "_draft.yaml", "not: [valid")
	writeFile(t, dir, "notes.txt", "ignored")

	mods, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var names []string
	for _, m := range mods {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"test_a", "test_b"}, names); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister_MissingDir(t *testing.T) {
	n, err := Register(suite.NewRegistry(), filepath.Join(t.TempDir(), "absent"))
	if err != nil || n != 0 {
		t.Errorf("Register() = %d, %v", n, err)
	}
}

func TestModuleRunsSteps(t *testing.T) {
	fake := adbtest.New(t, adbtest.Rule{Match: "dumpsys battery", Stdout: "  level: 80"})
	f, err := Parse([]byte(sampleModule), "sample.yaml")
	if err != nil {
		t.Fatal(err)
	}
	r := suite.NewRegistry()
	m := f.Module()
	if err := r.Add(m); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	tests := []struct {
		level string
		want  suite.Outcome
	}{
		{"80", suite.Passed},
		{"15", suite.Failed},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var out bytes.Buffer
			env := &suite.Env{
				ADB:    fake.Client(),
				Log:    logging.Capture(nil, &out),
				OutDir: t.TempDir(),
				Params: map[string]string{"level": tt.level},
			}
			e, ok := m.Lookup("test_battery")
			if !ok {
				t.Fatal("test_battery not found")
			}
			res := suite.Run(context.Background(), env, m, e)
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s (%s), want %s", res.Outcome, res.Error, tt.want)
			}
		})
	}
	if !fake.Called("logcat -c") {
		t.Error("setup step not run")
	}
}
