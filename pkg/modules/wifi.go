package modules

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const wifiSummaryFile = "wifi_test_summary.csv"

var wifiSummaryHeader = []string{"Test Case ID", "Description", "Status", "Log File"}

// wifiRun collects the console output of one Wi-Fi case; the last
// "Status:" line it prints decides the result.
type wifiRun struct {
	s   *suite.State
	buf strings.Builder
}

func (w *wifiRun) println(format string, args ...interface{}) {
	fmt.Fprintf(&w.buf, format+"\n", args...)
}

func (w *wifiRun) status(ok bool) {
	w.println("Status: %s", passFail(ok))
}

// run fires a command and ignores its result.
func (w *wifiRun) run(args ...string) {
	w.s.Check("", args...)
}

// output returns stdout, failing like a checked subprocess call on non-zero exit.
func (w *wifiRun) output(args ...string) (string, error) {
	res := w.s.ADB().Exec(w.s.Ctx(), args...)
	if !res.OK() {
		return "", &adb.CommandError{Args: args, Output: res.Text(), Err: res.Err}
	}
	return res.Stdout, nil
}

type wifiBody func(w *wifiRun) error

func wifiCase(n int, body wifiBody) *suite.Case {
	id := fmt.Sprintf("TC%03d", n)
	desc := fmt.Sprintf("Automated WiFi Test %d", n)
	return &suite.Case{
		Name: fmt.Sprintf("test_tc%03d", n),
		Desc: desc,
		Func: func(s *suite.State) { runWiFiCase(s, id, desc, body) },
	}
}

func wifiLog(id string) string {
	return filepath.Join("logs", id+"_log.txt")
}

func runWiFiCase(s *suite.State, id, desc string, body wifiBody) {
	w := &wifiRun{s: s}
	var log strings.Builder
	stamp := func(text string) {
		fmt.Fprintf(&log, "%s - %s\n", s.Now().Format("2006-01-02 15:04:05.000000"), text)
	}

	pre := fmt.Sprintf("[%s] Pre-Config: Ensure device is connected and ready", id)
	s.Println(pre)
	stamp(pre)
	s.Check("", "wait-for-device")
	s.Check("", "root")

	status := "UNKNOWN"
	if err := body(w); err != nil {
		s.Println("[ERROR]", err)
		stamp(fmt.Sprintf("[ERROR] %v", err))
		status = "FAIL"
	} else {
		post := fmt.Sprintf("[%s] Post-Config: Cleaning up or resetting state", id)
		s.Println(post)
		stamp(post)
		s.Check("", shell("svc", "wifi", "enable")...)
		if st, ok := lastStatus(w.buf.String()); ok {
			status = st
		}
	}

	log.WriteString(w.buf.String())
	logPath := s.WriteFile(wifiLog(id), log.String())
	s.AppendCSV(filepath.Join("logs", wifiSummaryFile), wifiSummaryHeader, []string{id, desc, status, logPath})
	s.Printf("%s", w.buf.String())
	s.Printf("[✓] %s -> %s (Log: %s)\n", id, status, logPath)
	s.SetStatus(status)

	if status == "FAIL" {
		s.Errorf("%s reported Status: FAIL", id)
	}
}

// lastStatus returns the value of the last "Status:" line in out.
func lastStatus(out string) (string, bool) {
	var status string
	found := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Status:") {
			parts := strings.SplitN(line, ":", 3)
			status = strings.TrimSpace(parts[1])
			if f := strings.Fields(status); len(f) > 0 {
				status = f[0]
			}
			found = true
		}
	}
	return status, found
}

func wifiSummary(s *suite.State, results []suite.Result) {
	var b strings.Builder
	b.WriteString("\n========== 📋 TEST SUMMARY ==========\n")
	fmt.Fprintf(&b, "%-8s %-40s %s\n", "TC ID", "Description", "Status")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, r := range results {
		id := strings.ToUpper(strings.TrimPrefix(r.Case, "test_"))
		n := strings.TrimPrefix(id, "TC")
		status := r.Status
		if status == "" {
			// skipped, or stopped before it reported
			status = strings.ToUpper(string(r.Outcome))
		}
		fmt.Fprintf(&b, "%-8s %-40s %s\n", id, "Automated WiFi Test "+strings.TrimLeft(n, "0"), status)
	}
	b.WriteString(strings.Repeat("-", 60) + "\n")
	s.Printf("%s", b.String())
}

func init() {
	suite.AddModule(&suite.Module{
		Name: "test_wifi",
		Desc: "Wi-Fi radio, connectivity and settings",
		Groups: []*suite.Group{{
			Name: "WiFiModule",
			Cases: []*suite.Case{
				wifiCase(1, wifiEnable),
				wifiCase(2, wifiDisable),
				wifiCase(3, wifiToggleStress),
				wifiCase(4, wifiHasAddress),
				wifiCase(5, wifiRSSIPresent),
				wifiCase(6, wifiNoAddressWhenOff),
				wifiCase(7, wifiConnected),
				wifiCase(8, wifiFrequency),
				wifiCase(9, wifiAirplaneOff),
				wifiCase(10, wifiMAC),
				wifiCase(11, wifiSleepPolicy),
				wifiCase(12, wifiReenable),
				wifiCase(13, wifiToggleThrice),
				wifiCase(14, wifiScanResults),
				wifiCase(15, wifiDefaultRoute),
				wifiCase(16, wifiLowBattery),
				wifiCase(17, wifiSupplicant),
				wifiCase(18, wifiSleepPolicyVerbose),
				wifiCase(19, wifiRSSI),
				wifiCase(20, wifiRestart),
				wifiCase(21, wifiAirplaneReport),
				wifiCase(22, wifiPing),
				wifiCase(23, wifiStatusProp),
				wifiCase(24, wifiTetherSettings),
				wifiCase(25, wifiSavedConfigs),
			},
		}},
		Summary: wifiSummary,
	})
}

var (
	wifiOn   = shell("svc", "wifi", "enable")
	wifiOff  = shell("svc", "wifi", "disable")
	wifiDump = shell("dumpsys", "wifi")
)

func wifiEnable(w *wifiRun) error {
	w.run(wifiOn...)
	w.status(true)
	return nil
}

func wifiDisable(w *wifiRun) error {
	w.run(wifiOff...)
	w.status(true)
	return nil
}

func wifiToggleStress(w *wifiRun) error {
	w.println("[TC003] Stress test: Toggle WiFi ON/OFF 10 times")
	for i := 1; i <= 10; i++ {
		w.println("Cycle %d: Disable WiFi", i)
		w.run(wifiOff...)
		w.s.Sleep(time.Second)
		w.println("Cycle %d: Enable WiFi", i)
		w.run(wifiOn...)
		w.s.Sleep(time.Second)
	}
	w.println("Expected: No failure or crash during rapid toggling")
	w.println("Status:   PASS")
	return nil
}

func wifiHasAddress(w *wifiRun) error {
	w.run(wifiOn...)
	w.s.Sleep(2 * time.Second)
	out, err := w.output(shell("ip", "addr", "show", "wlan0")...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "inet "))
	return nil
}

func wifiRSSIPresent(w *wifiRun) error {
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "RSSI") || strings.Contains(out, "rssi"))
	return nil
}

func wifiNoAddressWhenOff(w *wifiRun) error {
	w.run(wifiOff...)
	w.s.Sleep(time.Second)
	out, err := w.output(shell("ip", "addr", "show", "wlan0")...)
	if err != nil {
		return err
	}
	w.status(!strings.Contains(out, "inet "))
	return nil
}

func wifiConnected(w *wifiRun) error {
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(strings.ToLower(out), "connected") || strings.Contains(out, "SSID"))
	return nil
}

func wifiFrequency(w *wifiRun) error {
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "frequency"))
	return nil
}

func setAirplane(w *wifiRun, on bool) {
	flag, state := "0", "false"
	if on {
		flag, state = "1", "true"
	}
	w.run(shell("settings", "put", "global", "airplane_mode_on", flag)...)
	w.run(shell("am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", state)...)
}

func wifiAirplaneOff(w *wifiRun) error {
	setAirplane(w, true)
	w.s.Sleep(2 * time.Second)
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	off := !strings.Contains(out, "enabled: true")
	setAirplane(w, false)
	w.status(off)
	return nil
}

func wifiMAC(w *wifiRun) error {
	out, err := w.output(shell("cat", "/sys/class/net/wlan0/address")...)
	if err != nil {
		return err
	}
	w.status(strings.TrimSpace(out) != "")
	return nil
}

func validSleepPolicy(v string) bool {
	return v == "0" || v == "1" || v == "2"
}

func wifiSleepPolicy(w *wifiRun) error {
	out, err := w.output(shell("settings", "get", "global", "wifi_sleep_policy")...)
	if err != nil {
		return err
	}
	w.status(validSleepPolicy(strings.TrimSpace(out)))
	return nil
}

func wifiReenable(w *wifiRun) error {
	w.run(wifiOff...)
	w.s.Sleep(time.Second)
	w.run(wifiOn...)
	w.s.Sleep(time.Second)
	w.status(true)
	return nil
}

func wifiToggleThrice(w *wifiRun) error {
	for i := 0; i < 3; i++ {
		w.run(wifiOff...)
		w.s.Sleep(time.Second)
		w.run(wifiOn...)
		w.s.Sleep(time.Second)
	}
	w.status(true)
	return nil
}

func wifiScanResults(w *wifiRun) error {
	out, err := w.output(shell("cmd", "wifi", "list-scan-results")...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "SSID"))
	return nil
}

func wifiDefaultRoute(w *wifiRun) error {
	out, err := w.output(shell("ip", "route", "get", "8.8.8.8")...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "wlan0"))
	return nil
}

func wifiLowBattery(w *wifiRun) error {
	w.run(shell("cmd", "battery", "set", "level", "5")...)
	w.run(shell("cmd", "battery", "reset")...)
	w.status(true)
	return nil
}

func wifiSupplicant(w *wifiRun) error {
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(strings.ToLower(out), "supplicant state"))
	return nil
}

func wifiSleepPolicyVerbose(w *wifiRun) error {
	w.println("[TC018] Check for WiFi sleep policy")
	out, err := w.output(shell("settings", "get", "global", "wifi_sleep_policy")...)
	if err != nil {
		w.println("Error occurred: %v", err)
		w.println("Status:   FAIL")
		return nil
	}
	policy := strings.TrimSpace(out)
	w.println("Sleep Policy: %s", policy)
	w.println("Expected: 2 = Never, 1 = Only when plugged, 0 = Always")
	w.status(validSleepPolicy(policy))
	return nil
}

func wifiRSSI(w *wifiRun) error {
	w.println(" Get RSSI (Signal Strength)")
	w.println("Checking WiFi status...")
	state, err := w.output(wifiDump...)
	if err != nil {
		w.println("[ERROR] %v", err)
		w.println("Status:   FAIL")
		return nil
	}
	if strings.Contains(state, "Wi-Fi is disabled") {
		w.println("WiFi is OFF. Enabling WiFi...")
		w.run(wifiOn...)
		w.s.Sleep(5 * time.Second)
	}

	out, err := w.output(wifiDump...)
	if err != nil {
		w.println("[ERROR] %v", err)
		w.println("Status:   FAIL")
		return nil
	}
	found := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(strings.ToLower(line), "rssi") {
			w.println("%s", strings.TrimSpace(line))
			found = true
		}
	}
	if found {
		w.println("Expected: RSSI should be a negative dBm value (e.g., -40)")
		w.println("Status:   PASS")
	} else {
		w.println("RSSI info not found. WiFi may not be connected.")
		w.println("Status:   FAIL")
	}
	return nil
}

func wifiRestart(w *wifiRun) error {
	w.run(wifiOff...)
	w.s.Sleep(2 * time.Second)
	w.run(wifiOn...)
	return nil
}

func wifiAirplaneReport(w *wifiRun) error {
	w.println("[TC021] Ensure WiFi is off in Airplane mode")
	setAirplane(w, true)
	w.s.Sleep(3 * time.Second)
	out, err := w.output(wifiDump...)
	if err != nil {
		return err
	}
	if strings.Contains(out, "enabled: true") {
		w.println("WiFi still ON in Airplane mode")
	} else {
		w.println("WiFi disabled in Airplane mode")
	}
	setAirplane(w, false)
	return nil
}

func wifiPing(w *wifiRun) error {
	out, err := w.output(shell("ping", "-c", "1", "8.8.8.8")...)
	if err != nil {
		return err
	}
	w.status(strings.Contains(out, "bytes from"))
	return nil
}

func wifiStatusProp(w *wifiRun) error {
	out, err := w.output(shell("getprop", "wifi.status")...)
	if err != nil {
		return err
	}
	w.status(out != "")
	return nil
}

func wifiTetherSettings(w *wifiRun) error {
	w.run(wifiOn...)
	w.s.Sleep(2 * time.Second)
	w.run(shell("am", "start", "-a", "android.settings.TETHER_SETTINGS")...)
	return nil
}

func wifiSavedConfigs(w *wifiRun) error {
	w.println("[TC025] List all saved WiFi configurations")
	out, err := w.output(shell("su", "-c", "cat /data/misc/wifi/WifiConfigStore.xml")...)
	if err != nil {
		w.println("Error reading saved WiFi configs: %v", err)
		w.println("Status: FAIL")
		return nil
	}
	if !strings.Contains(out, "SSID") {
		w.println("Status:   FAIL - No SSID found")
		return nil
	}
	w.println("Saved Configurations Found:")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "SSID") {
			w.println("%s", strings.TrimSpace(line))
		}
	}
	w.println("Status: PASS")
	return nil
}
