// Package suite defines test modules, their cases and the registry the
// dispatcher resolves them from.
//
// Modules register themselves from init, in the style of:
//
//	func init() {
//		suite.AddModule(&suite.Module{
//			Name:  "test_bluetooth",
//			Cases: []*suite.Case{{Name: "test_01_enable_bluetooth", Func: enableBluetooth}},
//		})
//	}
package suite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// AggregateName is the case added to every module with more than one case.
const AggregateName = "test_00_test_all_conditions"

// Func is the body of a test case or fixture.
type Func func(s *State)

// Case is one runnable test case.
type Case struct {
	Name   string
	Desc   string
	Func   Func
	Skip   string   // non-empty registers the case as skipped with this reason
	Params []string // parameter names read through State.Param

	aggregate bool
}

// Aggregate reports whether the case runs all other cases of its module.
func (c *Case) Aggregate() bool {
	return c.aggregate
}

// Group bundles cases sharing a fixture that runs around each of them.
type Group struct {
	Name     string
	Setup    Func
	Teardown Func
	Cases    []*Case
}

// Module is a named collection of cases. Setup and Teardown run around every
// case, module-level and grouped alike.
type Module struct {
	Name     string
	Desc     string
	Setup    Func
	Teardown Func
	Cases    []*Case
	Groups   []*Group
	Interval time.Duration // pause between cases in the aggregate run
	// Summary is called at the end of the aggregate run.
	Summary func(s *State, results []Result)
	Source  string // file the module was loaded from, if any
}

// Entry is a resolved case with the group that owns it (nil for module level).
type Entry struct {
	Group *Group
	Case  *Case
}

// Lookup finds a case by name: module-level cases first, then groups in name order.
func (m *Module) Lookup(name string) (Entry, bool) {
	for _, c := range m.Cases {
		if c.Name == name {
			return Entry{Case: c}, true
		}
	}
	for _, g := range m.sortedGroups() {
		for _, c := range g.Cases {
			if c.Name == name {
				return Entry{Group: g, Case: c}, true
			}
		}
	}
	return Entry{}, false
}

func (m *Module) sortedGroups() []*Group {
	groups := append([]*Group(nil), m.Groups...)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// Entries lists every non-aggregate case in registration order: module-level
// cases first, then each group's cases.
func (m *Module) Entries() []Entry {
	var out []Entry
	for _, c := range m.Cases {
		if !c.aggregate {
			out = append(out, Entry{Case: c})
		}
	}
	for _, g := range m.Groups {
		for _, c := range g.Cases {
			if !c.aggregate {
				out = append(out, Entry{Group: g, Case: c})
			}
		}
	}
	return out
}

// CaseNames returns all case names sorted, aggregate included.
func (m *Module) CaseNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(c *Case) {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	for _, c := range m.Cases {
		add(c)
	}
	for _, g := range m.Groups {
		for _, c := range g.Cases {
			add(c)
		}
	}
	sort.Strings(names)
	return names
}

func (m *Module) validate() error {
	if m.Name == "" {
		return errors.New("module has no name")
	}
	check := func(c *Case) error {
		if c == nil || c.Name == "" {
			return fmt.Errorf("module %s: case without name", m.Name)
		}
		if !strings.HasPrefix(c.Name, "test_") {
			return fmt.Errorf("module %s: case %q must start with test_", m.Name, c.Name)
		}
		if c.Func == nil && c.Skip == "" {
			return fmt.Errorf("module %s: case %s has no body", m.Name, c.Name)
		}
		return nil
	}
	for _, c := range m.Cases {
		if err := check(c); err != nil {
			return err
		}
	}
	for _, g := range m.Groups {
		for _, c := range g.Cases {
			if err := check(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// addAggregate appends the all-conditions case when the module has more than one case.
func (m *Module) addAggregate() {
	if _, ok := m.Lookup(AggregateName); ok {
		return
	}
	if len(m.Entries()) < 2 {
		return
	}
	m.Cases = append(m.Cases, &Case{
		Name:      AggregateName,
		Desc:      "Run every case of the module and report all failures",
		aggregate: true,
	})
}

// Registry holds modules by name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Add registers a module, replacing any earlier one with the same name.
func (r *Registry) Add(m *Module) error {
	if err := m.validate(); err != nil {
		return err
	}
	m.addAggregate()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.modules[m.Name]; dup {
		return fmt.Errorf("module %q already registered", m.Name)
	}
	r.modules[m.Name] = m
	return nil
}

// Module returns a module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns all modules sorted by name.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns sorted module names.
func (r *Registry) Names() []string {
	mods := r.Modules()
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return names
}

// Default is the registry built-in modules add themselves to.
var Default = NewRegistry()

// AddModule registers m in Default and panics on an invalid module.
// It is meant to be called from init.
func AddModule(m *Module) {
	if err := Default.Add(m); err != nil {
		panic(err)
	}
}
