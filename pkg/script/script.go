// Package script loads test modules declared in YAML files, so new device
// checks can be added without rebuilding the binary.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// File is one parsed module file.
type File struct {
	SourcePath string     `yaml:"-"`
	Name       string     `yaml:"name"`
	Desc       string     `yaml:"desc"`
	Interval   int        `yaml:"interval"` // ms between cases of the aggregate run
	Setup      []Step     `yaml:"setup"`
	Teardown   []Step     `yaml:"teardown"`
	Cases      []CaseSpec `yaml:"cases"`
}

// CaseSpec declares one test case.
type CaseSpec struct {
	Name   string   `yaml:"name"`
	Desc   string   `yaml:"desc"`
	Skip   string   `yaml:"skip"`
	Params []string `yaml:"params"`
	Steps  []Step   `yaml:"steps"`
}

// Step is one adb invocation. Cmd arguments and expectations may reference
// case parameters as ${name}.
type Step struct {
	Desc       string   `yaml:"desc"`
	Cmd        []string `yaml:"cmd"`
	Expect     string   `yaml:"expect"`
	ExpectAny  []string `yaml:"expectAny"`
	Reject     string   `yaml:"reject"`
	IgnoreCase bool     `yaml:"ignoreCase"`
	Retries    *int     `yaml:"retries"` // nil = suite default
	Timeout    int      `yaml:"timeout"` // ms, 0 = client default
	Sleep      int      `yaml:"sleep"`   // ms to wait after the step
}

// Parse decodes a module file. Unknown keys are rejected.
func Parse(data []byte, sourcePath string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty module file", sourcePath)
		}
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	f.SourcePath = sourcePath
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	return &f, nil
}

// ParseFile reads and parses path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module file: %w", err)
	}
	return Parse(data, path)
}

func (f *File) validate() error {
	check := func(where string, steps []Step) error {
		for i, st := range steps {
			if len(st.Cmd) == 0 {
				return fmt.Errorf("%s step %d: cmd is required", where, i+1)
			}
		}
		return nil
	}
	if err := check("setup", f.Setup); err != nil {
		return err
	}
	if err := check("teardown", f.Teardown); err != nil {
		return err
	}
	for _, c := range f.Cases {
		if c.Skip == "" && len(c.Steps) == 0 {
			return fmt.Errorf("case %q has no steps", c.Name)
		}
		if err := check("case "+c.Name, c.Steps); err != nil {
			return err
		}
	}
	return nil
}

// Module converts the file into a runnable suite module. Only cases named
// test_* are collected; a repeated name keeps its first declaration.
func (f *File) Module() *suite.Module {
	m := &suite.Module{
		Name:     f.Name,
		Desc:     f.Desc,
		Interval: time.Duration(f.Interval) * time.Millisecond,
		Source:   f.SourcePath,
		Setup:    stepsFunc(f.Setup),
		Teardown: stepsFunc(f.Teardown),
	}
	seen := make(map[string]bool)
	for _, c := range f.Cases {
		if !strings.HasPrefix(c.Name, "test_") || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		m.Cases = append(m.Cases, &suite.Case{
			Name:   c.Name,
			Desc:   c.Desc,
			Skip:   c.Skip,
			Params: c.Params,
			Func:   stepsFunc(c.Steps),
		})
	}
	return m
}

var paramRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expand(s *suite.State, arg string) string {
	return paramRef.ReplaceAllStringFunc(arg, func(ref string) string {
		return s.Param(paramRef.FindStringSubmatch(ref)[1])
	})
}

func stepsFunc(steps []Step) suite.Func {
	if len(steps) == 0 {
		return nil
	}
	return func(s *suite.State) {
		for _, st := range steps {
			args := make([]string, len(st.Cmd))
			for i, a := range st.Cmd {
				args[i] = expand(s, a)
			}
			desc := st.Desc
			if desc == "" {
				desc = strings.Join(args, " ")
			}
			s.Step(desc, args, st.options(s)...)
			if st.Sleep > 0 {
				s.Sleep(time.Duration(st.Sleep) * time.Millisecond)
			}
		}
	}
}

func (st Step) options(s *suite.State) []suite.StepOption {
	var opts []suite.StepOption
	if st.Expect != "" {
		opts = append(opts, suite.Expect(expand(s, st.Expect)))
	}
	if len(st.ExpectAny) > 0 {
		alts := make([]string, len(st.ExpectAny))
		for i, e := range st.ExpectAny {
			alts[i] = expand(s, e)
		}
		opts = append(opts, suite.ExpectAny(alts...))
	}
	if st.Reject != "" {
		opts = append(opts, suite.Reject(expand(s, st.Reject)))
	}
	if st.IgnoreCase {
		opts = append(opts, suite.IgnoreCase())
	}
	if st.Retries != nil {
		opts = append(opts, suite.Retries(*st.Retries))
	}
	if st.Timeout > 0 {
		opts = append(opts, suite.Timeout(time.Duration(st.Timeout)*time.Millisecond))
	}
	return opts
}

// files lists module files in dir, sorted, skipping names starting with "_".
func files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read modules dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		switch filepath.Ext(name) {
		case ".yaml", ".yml":
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load parses every module file in dir.
func Load(dir string) ([]*suite.Module, error) {
	paths, err := files(dir)
	if err != nil {
		return nil, err
	}
	mods := make([]*suite.Module, 0, len(paths))
	for _, p := range paths {
		f, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		mods = append(mods, f.Module())
	}
	return mods, nil
}

// Register loads dir into r and returns the number of modules added.
// A missing directory is not an error.
func Register(r *suite.Registry, dir string) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	mods, err := Load(dir)
	if err != nil {
		return 0, err
	}
	for _, m := range mods {
		if err := r.Add(m); err != nil {
			return 0, fmt.Errorf("%s: %w", m.Source, err)
		}
	}
	return len(mods), nil
}

// Discover returns the sorted, de-duplicated names of the test cases
// declared in a module file.
func Discover(path string) ([]string, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, c := range f.Cases {
		if !strings.HasPrefix(c.Name, "test_") || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}
