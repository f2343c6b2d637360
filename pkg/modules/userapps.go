package modules

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func init() {
	suite.AddModule(&suite.Module{
		Name: "test_userapps",
		Desc: "Installed application management",
		Groups: []*suite.Group{{
			Name:  "UserApps",
			Setup: startAppLog,
			Cases: []*suite.Case{
				{Name: "test_launch_app", Desc: "Launch App", Params: []string{"package", "activity"}, Func: launchApp},
				{Name: "test_app_installed", Desc: "Check if App Installed", Params: []string{"package"}, Func: func(s *suite.State) {
					pkg := strings.TrimSpace(s.Param("package"))
					installed := appInstalled(s, pkg)
					s.Printf("App '%s' installed: %t\n", pkg, installed)
					s.Assert(installed, "app %s is not installed", pkg)
				}},
				{Name: "test_uninstall_app", Desc: "Uninstall App", Params: []string{"package"}, Func: uninstallApp},
				{Name: "test_grant_permission", Desc: "Grant Permission", Params: []string{"package", "permission"}, Func: grantPermission},
				{Name: "test_battery_info", Desc: "Get Battery Info", Func: batteryInfo},
				{Name: "test_notification_service", Desc: "Call Notification Service", Func: func(s *suite.State) {
					out := appShell(s, "calling notification service", "service", "call", "notification", "1")
					s.Printf("📡 Notification service call result:\n%s\n", out)
				}},
				{Name: "test_force_stop_app", Desc: "Force Stop App", Params: []string{"package"}, Func: func(s *suite.State) {
					pkg := requireInstalled(s)
					appShell(s, "force-stopping app", "am", "force-stop", pkg)
					s.Printf("✅ App '%s' force-stopped successfully.\n", pkg)
				}},
				{Name: "test_storage_info", Desc: "Get Storage Info", Func: func(s *suite.State) {
					out := appShell(s, "fetching storage info", "df", "-h")
					s.Printf("📦 Device Storage Usage (df -h):\n\n%s\n", out)
				}},
				{Name: "test_list_packages", Desc: "List Installed Packages", Func: listPackages},
				{Name: "test_send_enter_key", Desc: "Send ENTER Key", Func: func(s *suite.State) {
					appShell(s, "sending keyevent", "input", "keyevent", "66")
					s.Printf("✅ ENTER keyevent (KEYCODE 66) sent successfully.\n")
				}},
			},
		}},
	})
}

// startAppLog streams logcat into adb_log_<ts>.txt for the duration of the case.
func startAppLog(s *suite.State) {
	path := filepath.Join(s.OutDir(), fmt.Sprintf("adb_log_%s.txt", s.Now().Format("2006-01-02_15-04-05")))
	stop, err := s.ADB().StartLogcat(s.Ctx(), path)
	if err != nil {
		s.Warnf("start adb log: %v", err)
		return
	}
	s.Printf("📥 Started adb logging to %s\n", path)
	s.Cleanup(func() {
		if err := stop(); err != nil {
			s.Warnf("stop adb log: %v", err)
		}
		s.Printf("📴 Stopped adb logging.\n")
	})
}

// appShell runs a shell command and fails the case when it wrote to stderr.
func appShell(s *suite.State, what string, args ...string) string {
	res := s.ADB().Exec(s.Ctx(), shell(args...)...)
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		s.Printf("❌ Error %s: %s\n", what, msg)
		s.Fatalf("error %s: %s", what, msg)
	}
	if !res.OK() {
		s.Fatalf("error %s: %s", what, res.Text())
	}
	return strings.TrimSpace(res.Stdout)
}

func appInstalled(s *suite.State, pkg string) bool {
	res := s.ADB().Exec(s.Ctx(), shell("pm", "list", "packages", pkg)...)
	return pkg != "" && strings.Contains(res.Stdout, pkg)
}

func requireInstalled(s *suite.State) string {
	pkg := strings.TrimSpace(s.Param("package"))
	if !appInstalled(s, pkg) {
		s.Printf("❌ App '%s' is not installed on the device.\n", pkg)
		s.Fatalf("app %s is not installed", pkg)
	}
	return pkg
}

func launchApp(s *suite.State) {
	pkg := strings.TrimSpace(s.Param("package"))
	act := strings.TrimSpace(s.Param("activity"))
	res := s.ADB().Exec(s.Ctx(), shell("am", "start", "-n", pkg+"/"+act)...)
	if strings.Contains(res.Stderr, "Error") || strings.Contains(res.Stderr, "Exception") {
		s.Printf("❌ Failed to launch app: %s\n", strings.TrimSpace(res.Stderr))
		s.Fatalf("launch %s: %s", pkg, strings.TrimSpace(res.Stderr))
	}
	s.Printf("✅ App launched successfully: %s\n%s\n", pkg, strings.TrimSpace(res.Stdout))
}

func uninstallApp(s *suite.State) {
	pkg := strings.TrimSpace(s.Param("package"))
	res := s.ADB().Exec(s.Ctx(), "uninstall", pkg)
	if !strings.Contains(res.Stdout, "Success") {
		msg := strings.TrimSpace(strings.TrimSpace(res.Stdout) + " " + strings.TrimSpace(res.Stderr))
		s.Printf("❌ Failed to uninstall app: %s\n", msg)
		s.Fatalf("uninstall %s: %s", pkg, msg)
	}
	s.Printf("✅ App '%s' uninstalled successfully.\n", pkg)
}

func grantPermission(s *suite.State) {
	pkg := requireInstalled(s)
	perm := strings.TrimSpace(s.Param("permission"))
	appShell(s, "granting permission", "pm", "grant", pkg, perm)
	s.Printf("✅ Permission '%s' granted to '%s'.\n", perm, pkg)
}

type batteryField struct {
	Key, Value string
}

var batteryKeys = []struct{ prefix, label string }{
	{"level:", "Level"},
	{"status:", "Status"},
	{"AC powered:", "AC Powered"},
	{"USB powered:", "USB Powered"},
	{"Wireless powered:", "Wireless Powered"},
	{"temperature:", "Temperature (°C)"},
}

// parseBattery extracts the interesting fields of `dumpsys battery` in the
// order they appear. Temperature is reported in tenths of a degree.
func parseBattery(out string) ([]batteryField, error) {
	var fields []batteryField
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		for _, k := range batteryKeys {
			if !strings.HasPrefix(line, k.prefix) {
				continue
			}
			v := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
			if k.prefix == "temperature:" {
				t, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("parse temperature %q: %w", v, err)
				}
				v = strconv.FormatFloat(float64(t)/10, 'f', -1, 64)
			}
			fields = append(fields, batteryField{k.label, v})
			break
		}
	}
	return fields, nil
}

func batteryInfo(s *suite.State) {
	out := appShell(s, "retrieving battery info", "dumpsys", "battery")
	fields, err := parseBattery(out)
	if err != nil {
		s.Fatal(err)
	}
	s.Printf("🔋 Battery Information:\n")
	for _, f := range fields {
		s.Printf("%s: %s\n", f.Key, f.Value)
	}
}

func listPackages(s *suite.State) {
	out := appShell(s, "listing packages", "pm", "list", "packages")
	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		if p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "package:")); p != "" {
			pkgs = append(pkgs, p)
		}
	}
	s.Printf("📱 Installed App Packages:\n")
	for _, p := range pkgs {
		s.Printf("- %s\n", p)
	}
	s.Printf("\n🔢 Total Packages: %d\n", len(pkgs))
}
