package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/droidprobe/pkg/catalog"
	"github.com/devicelab-dev/droidprobe/pkg/device"
	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/executor"
	"github.com/devicelab-dev/droidprobe/pkg/gui"
	"github.com/devicelab-dev/droidprobe/pkg/report"
	"github.com/devicelab-dev/droidprobe/pkg/script"
)

var requestFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "method",
		Usage: "Execution method (Default, Randomized)",
		Value: dispatch.MethodDefault,
	},
	&cli.StringFlag{
		Name:  "email",
		Usage: "Email recorded with the run",
	},
	&cli.StringSliceFlag{
		Name:  "notify",
		Usage: "Job trigger notifications (PRE, POST)",
	},
	&cli.StringSliceFlag{
		Name:    "param",
		Aliases: []string{"e"},
		Usage:   "Case parameter as KEY=VALUE (repeatable)",
	},
}

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "List modules, or the cases of one module or module file",
	ArgsUsage: "[module | file.yaml]",
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		out := c.App.Writer
		if c.NArg() == 0 {
			for _, m := range s.registry.Modules() {
				fmt.Fprintln(out, m.Name)
			}
			return nil
		}
		arg := c.Args().First()
		names, err := caseNames(s, arg)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run one test case and print its report",
	ArgsUsage: "<module> <case>",
	Flags:     requestFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("run needs <module> <case>")
		}
		params, err := parseParams(c.StringSlice("param"))
		if err != nil {
			return err
		}
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.bindDevice(c.Context); err != nil {
			return err
		}

		rec, err := report.NewRecorder(s.cfg.ReportDir, uuid.NewString(), s.adb.Serial)
		if err != nil {
			return err
		}
		w := s.worker(os.Stdin, c.App.Writer, rec)

		rep := w.Run(c.Context, dispatch.Request{
			Module: c.Args().Get(0),
			Case:   c.Args().Get(1),
			Method: c.String("method"),
			Email:  c.String("email"),
			Notify: normalizeNotify(c.StringSlice("notify")),
			Params: params,
		})
		fmt.Fprintln(c.App.Writer, rep.Text)

		if _, err := rec.Finish(); err != nil {
			s.log.Warnf("finish report: %v", err)
		}
		fmt.Fprintf(c.App.Writer, "\nReport: %s\n", rec.Dir())
		if !rep.OK() {
			return cli.Exit("", 1)
		}
		return nil
	},
}

var runAllCommand = &cli.Command{
	Name:      "run-all",
	Usage:     "Run every case of one or more modules",
	ArgsUsage: "<module>...",
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:  "devices",
			Usage: "Spread cases over these device serials",
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "Pause between cases (default from config case_delay)",
		},
	}, requestFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("run-all needs at least one module")
		}
		params, err := parseParams(c.StringSlice("param"))
		if err != nil {
			return err
		}
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		var items []executor.Item
		for _, name := range c.Args().Slice() {
			m, ok := s.registry.Module(name)
			if !ok {
				return &dispatch.ModuleError{Module: name}
			}
			items = append(items, executor.ModuleItems(m)...)
		}

		cfg := executor.RunnerConfig{
			Method:    c.String("method"),
			Email:     c.String("email"),
			Notify:    normalizeNotify(c.StringSlice("notify")),
			Params:    params,
			CaseDelay: s.cfg.CaseDelay,
			Out:       c.App.Writer,
		}
		if c.IsSet("delay") {
			cfg.CaseDelay = c.Duration("delay")
		}

		serials := splitList(c.StringSlice("devices"))
		if len(serials) == 0 {
			if err := s.bindDevice(c.Context); err != nil {
				return err
			}
			serials = []string{s.adb.Serial}
		}
		rec, err := report.NewRecorder(s.cfg.ReportDir, uuid.NewString(), strings.Join(serials, ","))
		if err != nil {
			return err
		}
		base := s.worker(os.Stdin, c.App.Writer, rec)

		var res *executor.RunResult
		var runErr error
		if len(serials) > 1 {
			res, runErr = executor.NewParallelRunner(executor.NewDeviceWorkers(base, serials), cfg).Run(c.Context, items)
		} else {
			res, runErr = executor.New(base, cfg).Run(c.Context, items)
		}
		if _, err := rec.Finish(); err != nil {
			s.log.Warnf("finish report: %v", err)
		}
		if runErr != nil && res == nil {
			return runErr
		}

		fmt.Fprintf(c.App.Writer, "\n%d case(s): %d passed, %d failed, %d skipped in %s\nReport: %s\n",
			res.Total, res.Passed, res.Failed, res.Skipped, res.Duration.Round(time.Millisecond), rec.Dir())
		if runErr != nil {
			return runErr
		}
		if res.Failed > 0 {
			return cli.Exit("", 1)
		}
		return nil
	},
}

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List devices attached to adb",
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()

		devices, err := device.ListDevices(c.Context, s.adb)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return device.ErrNoDevices
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERIAL\tSTATE\tTYPE")
		for _, d := range devices {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Serial, d.State, d.Type)
		}
		return tw.Flush()
	},
}

var syncCommand = &cli.Command{
	Name:  "sync-modules",
	Usage: "Store the registered module names in the catalog",
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		store, err := s.requireStore()
		if err != nil {
			return err
		}
		names, err := catalog.Sync(c.Context, store, s.registry)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Inserted %d modules.\n", len(names))
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Show recent dispatched runs",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of runs (0 for all)"},
	},
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		store, err := s.requireStore()
		if err != nil {
			return err
		}
		runs, err := store.Runs(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tMODULE\tCASE\tMETHOD\tOUTCOME\tDURATION\tERROR")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Started.Local().Format("2006-01-02 15:04:05"), r.Module, r.Case, r.Method,
				r.Outcome, r.Duration.Round(time.Millisecond), r.Error)
		}
		return tw.Flush()
	},
}

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "Regenerate reports of a finished run",
	Subcommands: []*cli.Command{
		{
			Name:      "junit",
			Usage:     "Write junit-report.xml",
			ArgsUsage: "<run-dir>",
			Action: func(c *cli.Context) error {
				return reportAction(c, report.GenerateJUnit)
			},
		},
		{
			Name:      "html",
			Usage:     "Write report.html",
			ArgsUsage: "<run-dir>",
			Action: func(c *cli.Context) error {
				return reportAction(c, func(dir string) error {
					return report.GenerateHTML(dir, report.HTMLConfig{})
				})
			},
		},
		{
			Name:      "recover",
			Usage:     "Close a run left open by a crash",
			ArgsUsage: "<run-dir>",
			Action: func(c *cli.Context) error {
				return reportAction(c, report.Recover)
			},
		},
	},
}

func reportAction(c *cli.Context, fn func(dir string) error) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%s needs <run-dir>", c.Command.Name)
	}
	dir := c.Args().First()
	if err := fn(dir); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s report written to %s\n", c.Command.Name, dir)
	return nil
}

var guiCommand = &cli.Command{
	Name:  "gui",
	Usage: "Open the desktop launcher",
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.bindDevice(c.Context); err != nil {
			s.log.Warnf("%v; cases will fail until a device is attached", err)
		}
		rec, err := report.NewRecorder(s.cfg.ReportDir, uuid.NewString(), s.adb.Serial)
		if err != nil {
			return err
		}
		w := s.worker(nil, nil, rec)
		gui.Run(gui.Options{Worker: w, Registry: s.registry, Catalog: s.store, Log: s.log})
		if _, err := rec.Finish(); err != nil {
			s.log.Warnf("finish report: %v", err)
		}
		return nil
	},
}

// caseNames lists a registered module's cases, or the cases declared in a
// module file that need not be under modules_dir.
func caseNames(s *session, arg string) ([]string, error) {
	if ext := filepath.Ext(arg); ext == ".yaml" || ext == ".yml" {
		return script.Discover(arg)
	}
	m, ok := s.registry.Module(arg)
	if !ok {
		return nil, &dispatch.ModuleError{Module: arg}
	}
	return m.CaseNames(), nil
}

// parseParams turns KEY=VALUE flags into a map.
func parseParams(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid param %q, expected KEY=VALUE", kv)
		}
		params[strings.TrimSpace(k)] = v
	}
	return params, nil
}

// normalizeNotify upper-cases and splits comma lists.
func normalizeNotify(in []string) []string {
	out := splitList(in)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}

// splitList splits comma lists and drops empty entries.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// newPrompter asks for missing case parameters on the terminal.
func newPrompter(in io.Reader, out io.Writer) func(name string) (string, bool) {
	if in == nil || out == nil {
		return nil
	}
	var mu sync.Mutex
	sc := bufio.NewScanner(in)
	return func(name string) (string, bool) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "%s: ", name)
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}
}
