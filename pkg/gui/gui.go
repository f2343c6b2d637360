// Package gui is the desktop front end: pick a module and case, launch it on
// the dispatch worker and read the report in the console pane.
package gui

import (
	"context"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/droidprobe/pkg/catalog"
	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Placeholder entries shown when a list is empty.
const (
	NoModules   = "No modules found"
	NoTestCases = "No test cases found"
	Launching   = "⏳ Launching test... please wait."
)

// Options wires the window to the runner.
type Options struct {
	Worker   *dispatch.Worker
	Registry *suite.Registry
	Catalog  catalog.Store // module list source; registry when nil or empty
	Log      logrus.FieldLogger
}

// UI is the main window and its widgets.
type UI struct {
	opts   Options
	app    fyne.App
	window fyne.Window
	dark   bool

	module   *widget.Select
	testcase *widget.Select
	method   *widget.Select
	email    *widget.Entry
	pre      *widget.Check
	post     *widget.Check
	params   *widget.Entry
	launch   *widget.Button
	console  *widget.Entry
}

// Run opens the window and blocks until it is closed.
func Run(opts Options) {
	a := app.NewWithID("dev.devicelab.droidprobe")
	u := New(a, opts)
	if opts.Log != nil {
		opts.Log.Info("Starting GUI window...")
	}
	u.window.ShowAndRun()
}

// New builds the window on a.
func New(a fyne.App, opts Options) *UI {
	if opts.Registry == nil {
		opts.Registry = suite.Default
	}
	u := &UI{opts: opts, app: a}
	u.window = a.NewWindow("droidprobe")

	u.testcase = widget.NewSelect(nil, nil)
	u.module = widget.NewSelect(moduleNames(context.Background(), opts.Catalog, opts.Registry, opts.Log), u.updateTestcases)
	u.module.SetSelectedIndex(0)

	u.method = widget.NewSelect(dispatch.Methods, nil)
	u.method.SetSelected(dispatch.MethodDefault)

	u.email = widget.NewEntry()
	u.email.SetPlaceHolder("Enter your email")
	u.pre = widget.NewCheck("Notify PRE", nil)
	u.post = widget.NewCheck("Notify POST", nil)

	u.params = widget.NewMultiLineEntry()
	u.params.SetPlaceHolder("key=value, one per line")
	u.params.SetMinRowsVisible(3)

	u.launch = widget.NewButtonWithIcon("🚀 Launch Test", theme.MediaPlayIcon(), u.Launch)
	u.launch.Importance = widget.HighImportance

	u.console = widget.NewMultiLineEntry()
	u.console.SetPlaceHolder("📝 Report console will appear here...")
	u.console.TextStyle = fyne.TextStyle{Monospace: true}
	u.console.Wrapping = fyne.TextWrapWord

	form := widget.NewForm(
		widget.NewFormItem("Module:", u.module),
		widget.NewFormItem("Test Case:", u.testcase),
		widget.NewFormItem("Method:", u.method),
		widget.NewFormItem("Email:", u.email),
		widget.NewFormItem("Job Trigger Notifications:", container.NewHBox(u.pre, u.post)),
		widget.NewFormItem("Params:", u.params),
	)

	title := widget.NewLabelWithStyle("droidprobe", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	toggle := widget.NewButton("🌗 Toggle Theme", u.ToggleTheme)
	sidebar := container.NewVBox(title, layout.NewSpacer(), toggle)

	config := container.NewVBox(form, u.launch)
	split := container.NewHSplit(config, u.console)
	split.Offset = 0.45

	u.window.SetContent(container.NewBorder(nil, nil, sidebar, nil, split))
	u.window.Resize(fyne.NewSize(1400, 800))
	u.applyTheme()
	return u
}

// Window returns the main window.
func (u *UI) Window() fyne.Window { return u.window }

// moduleNames prefers the catalog and falls back to the registry.
func moduleNames(ctx context.Context, store catalog.Store, reg *suite.Registry, log logrus.FieldLogger) []string {
	var names []string
	if store != nil {
		stored, err := store.Modules(ctx)
		if err != nil && log != nil {
			log.Warnf("fetch modules from catalog: %v", err)
		}
		names = stored
	}
	if len(names) == 0 {
		names = reg.Names()
	}
	if len(names) == 0 {
		return []string{NoModules}
	}
	return names
}

// caseNames lists the cases of module, or the placeholder.
func caseNames(reg *suite.Registry, module string) []string {
	m, ok := reg.Module(module)
	if !ok {
		return []string{NoTestCases}
	}
	names := m.CaseNames()
	if len(names) == 0 {
		return []string{NoTestCases}
	}
	return names
}

func (u *UI) updateTestcases(module string) {
	u.testcase.SetOptions(caseNames(u.opts.Registry, module))
	u.testcase.SetSelectedIndex(0)
}

// Request builds the dispatch request from the form.
func (u *UI) Request() dispatch.Request {
	var notify []string
	if u.pre.Checked {
		notify = append(notify, "PRE")
	}
	if u.post.Checked {
		notify = append(notify, "POST")
	}
	return dispatch.Request{
		Module: u.module.Selected,
		Case:   u.testcase.Selected,
		Method: u.method.Selected,
		Email:  strings.TrimSpace(u.email.Text),
		Notify: notify,
		Params: ParseParams(u.params.Text),
	}
}

// Launch starts the selected case. The button stays disabled until the
// report arrives.
func (u *UI) Launch() {
	if u.opts.Worker == nil || u.opts.Worker.Busy() {
		return
	}
	u.launch.Disable()
	u.console.SetText(Launching)

	done := u.opts.Worker.Start(context.Background(), u.Request())
	go func() {
		rep := <-done
		fyne.Do(func() {
			u.console.SetText(rep.Text)
			u.launch.Enable()
		})
	}()
}

// ToggleTheme switches between the light and dark variants.
func (u *UI) ToggleTheme() {
	u.dark = !u.dark
	u.applyTheme()
}

func (u *UI) applyTheme() {
	v := theme.VariantLight
	if u.dark {
		v = theme.VariantDark
	}
	u.app.Settings().SetTheme(&variantTheme{Theme: theme.DefaultTheme(), variant: v})
}

// variantTheme pins the default theme to one variant.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t *variantTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(n, t.variant)
}

// ParseParams reads key=value lines. Blank lines and lines starting with #
// are ignored; a line without = is a key with an empty value.
func ParseParams(text string) map[string]string {
	params := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, _ := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		params[k] = strings.TrimSpace(v)
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
