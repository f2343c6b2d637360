// Package cli provides the command-line interface for droidprobe.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
	"github.com/devicelab-dev/droidprobe/pkg/catalog"
	"github.com/devicelab-dev/droidprobe/pkg/config"
	"github.com/devicelab-dev/droidprobe/pkg/device"
	"github.com/devicelab-dev/droidprobe/pkg/dispatch"
	"github.com/devicelab-dev/droidprobe/pkg/logging"
	"github.com/devicelab-dev/droidprobe/pkg/report"
	"github.com/devicelab-dev/droidprobe/pkg/script"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to droidprobe.yaml",
		EnvVars: []string{"DROIDPROBE_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "adb",
		Usage: "Path to the adb binary",
	},
	&cli.StringFlag{
		Name:    "serial",
		Aliases: []string{"s"},
		Usage:   "Device serial to run on",
		EnvVars: []string{"ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:  "log-dir",
		Usage: "Directory for droidprobe.log",
	},
	&cli.StringFlag{
		Name:  "report-dir",
		Usage: "Directory for run reports",
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable verbose logging",
	},
}

// NewApp builds the application writing to out.
func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "droidprobe",
		Usage:   "Android device test runner over adb",
		Version: Version,
		Description: `droidprobe runs device test modules over adb and reports the results.

Examples:
  droidprobe list
  droidprobe list test_wifi
  droidprobe run test_wifi test_tc001 --email qa@example.com --notify PRE
  droidprobe run Message test_multiple_recipients --param numbers=9876543210,9123456789
  droidprobe run-all test_display --devices emulator-5554,emulator-5556
  droidprobe report html reports/<run-id>`,
		Flags:  GlobalFlags,
		Writer: out,
		Commands: []*cli.Command{
			listCommand,
			runCommand,
			runAllCommand,
			devicesCommand,
			syncCommand,
			historyCommand,
			reportCommand,
			guiCommand,
		},

		// --param values may contain commas
		DisableSliceFlagSeparator: true,
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is the state shared by one command invocation.
type session struct {
	cfg      *config.Config
	log      *logrus.Logger
	adb      *adb.Client
	registry *suite.Registry
	store    catalog.Store // nil when disabled or unavailable

	closeLog func() error
}

// newSession loads config, applies flag overrides and opens the logger,
// registry and catalog.
func newSession(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("adb") {
		cfg.ADBPath = c.String("adb")
	}
	if c.IsSet("serial") {
		cfg.Serial = c.String("serial")
	}
	if c.IsSet("log-dir") {
		cfg.LogDir = c.String("log-dir")
	}
	if c.IsSet("report-dir") {
		cfg.ReportDir = c.String("report-dir")
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}

	log, closeLog, err := logging.New(logging.Options{Dir: cfg.LogDir, Verbose: cfg.Verbose, Console: c.App.ErrWriter})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closeLog: closeLog}

	s.adb = adb.New(adb.WithPath(cfg.ADBPath), adb.WithSerial(cfg.Serial), adb.WithTimeout(cfg.ADBTimeout))

	s.registry = suite.NewRegistry()
	for _, m := range suite.Default.Modules() {
		if err := s.registry.Add(m); err != nil {
			s.Close()
			return nil, err
		}
	}
	n, err := script.Register(s.registry, cfg.ModulesDir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load modules from %s: %w", cfg.ModulesDir, err)
	}
	log.Debugf("Loaded %d module(s) from %s", n, cfg.ModulesDir)

	store, err := catalog.Open(c.Context, cfg.Catalog)
	switch {
	case errors.Is(err, catalog.ErrDisabled):
	case err != nil:
		log.Warnf("catalog unavailable: %v", err)
	default:
		s.store = store
	}
	return s, nil
}

// Close releases the catalog and the log file.
func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warnf("close catalog: %v", err)
		}
	}
	if s.closeLog != nil {
		_ = s.closeLog()
	}
}

// requireStore fails commands that need the catalog.
func (s *session) requireStore() (catalog.Store, error) {
	if s.store == nil {
		return nil, fmt.Errorf("catalog backend %q is not available", s.cfg.Catalog.Backend)
	}
	return s.store, nil
}

// bindDevice picks the first online device when no serial was configured,
// waiting up to device_wait for one to come online.
func (s *session) bindDevice(ctx context.Context) error {
	if s.adb.Serial != "" {
		return nil
	}
	var (
		d   *device.ConnectedDevice
		err error
	)
	if s.cfg.DeviceWait > 0 {
		s.log.Debugf("Waiting up to %v for a device", s.cfg.DeviceWait)
		d, err = device.WaitForAny(ctx, s.adb, s.cfg.DeviceWait, 2*time.Second)
	} else {
		d, err = device.FirstAvailable(ctx, s.adb)
	}
	if err != nil {
		return err
	}
	s.log.Infof("Using device %s", d.Serial)
	s.adb = s.adb.ForSerial(d.Serial)
	return nil
}

// worker builds the dispatcher for this session. Case artifacts land in the
// recorder's run directory when rec is set.
func (s *session) worker(in io.Reader, out io.Writer, rec *report.Recorder) *dispatch.Worker {
	w := &dispatch.Worker{
		Registry:   s.registry,
		ADB:        s.adb,
		Log:        s.log,
		OutDir:     s.cfg.ReportDir,
		SleepScale: s.cfg.SleepScale,
		Params:     s.cfg.Params,
		Prompt:     newPrompter(in, out),
		History:    s.store,
	}
	if rec != nil {
		w.Recorder = rec
		w.OutDir = rec.Dir()
	}
	return w
}
