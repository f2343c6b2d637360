package modules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

type phoneTest struct {
	ID   string
	Name string
	Args []string
}

func (p phoneTest) title() string {
	return p.ID + " - " + p.Name
}

var phoneTests = []phoneTest{
	{"PHN_01", "Launch Dialer App", shell("am", "start", "-a", "android.intent.action.DIAL")},
	{"PHN_02", "End Call Test", shell("input", "keyevent", "KEYCODE_ENDCALL")},
	{"PHN_03", "Dump Call State", shell("dumpsys", "telecom")},
	{"PHN_04", "Toggle Speaker Mode", shell("input", "keyevent", "KEYCODE_SPEAKER")},
	{"PHN_05", "Simulate Incoming Call", shell("am", "start", "-a", "android.intent.action.CALL", "-d", "tel:1234567890")},
	{"PHN_06", "Microphone Test", shell("am", "start", "-n", "com.android.soundrecorder/.MainActivity")},
	{"PHN_07", "Call Forwarding Test", shell("service", "call", "phone", "1", "s16", "1234567890")},
	{"PHN_08", "Dump Network Info", shell("dumpsys", "telephony.registry")},
	{"PHN_09", "DTMF Test", shell("input", "keyevent", "KEYCODE_1")},
	{"PHN_10", "Airplane Mode Test", shell("settings", "put", "global", "airplane_mode_on", "1")},
	{"PHN_11", "Voicemail Test", shell("am", "start", "-a", "android.intent.action.CALL", "-d", "voicemail:")},
	{"PHN_12", "Call Drop Test", shell("svc", "data", "disable")},
	{"PHN_13", "Bluetooth Headset Test", shell("am", "start", "-a", "android.bluetooth.adapter.action.REQUEST_ENABLE")},
	{"PHN_14", "Call Duration Test", shell("dumpsys", "call_log")},
	{"PHN_15", "Multi-Call Test", shell("am", "start", "-a", "android.intent.action.CALL", "-d", "tel:9876543210")},
	{"PHN_16", "Open Call Settings", shell("am", "start", "-a", "android.settings.CALL_SETTINGS")},
	{"PHN_17", "Get Active Network Info", shell("dumpsys", "connectivity")},
	{"PHN_18", "Enable Do Not Disturb Mode", shell("settings", "put", "global", "zen_mode", "1")},
	{"PHN_19", "Disable Do Not Disturb Mode", shell("settings", "put", "global", "zen_mode", "0")},
}

var reportRule = strings.Repeat("-", 60)

func init() {
	cases := make([]*suite.Case, 0, len(phoneTests)+1)
	for _, p := range phoneTests {
		p := p
		cases = append(cases, &suite.Case{
			Name: "test_" + strings.ToLower(p.ID),
			Desc: p.title(),
			Func: func(s *suite.State) { runPhoneTests(s, []phoneTest{p}) },
		})
	}
	cases = append(cases, &suite.Case{
		Name:   "test_run_selected",
		Desc:   "Run the phone tests chosen by number (e.g. 1,3,5)",
		Params: []string{"selection"},
		Func:   runPhoneSelection,
	})

	suite.AddModule(&suite.Module{
		Name:  "test_phone",
		Desc:  "Dialer, telephony and call settings",
		Cases: cases,
	})
}

func runPhoneSelection(s *suite.State) {
	for i, p := range phoneTests {
		s.Printf("%d. %s\n", i+1, p.title())
	}
	idx, fellBack := parseSelection(s.Param("selection"), len(phoneTests), nil)
	if fellBack {
		s.Printf("[WARN] No valid test numbers selected. Running all tests.\n")
	}
	var selected []phoneTest
	for _, n := range idx {
		selected = append(selected, phoneTests[n-1])
	}
	runPhoneTests(s, selected)
}

// runPhoneTests executes tests, saving output and logcat per test and one text report.
func runPhoneTests(s *suite.State, tests []phoneTest) {
	stamp := s.Now().Format("2006-01-02_15-04-05")
	lines := []string{fmt.Sprintf("Phone Test Report - %s\n%s\n", stamp, strings.Repeat("=", 60))}

	for _, p := range tests {
		cmd := "adb " + strings.Join(p.Args, " ")
		res := s.ADB().Exec(s.Ctx(), p.Args...)
		output := strings.TrimSpace(res.Stdout)
		errOut := strings.TrimSpace(res.Stderr)

		var b strings.Builder
		fmt.Fprintf(&b, "Test: %s\nCommand: %s\nOutput:\n%s\n", p.title(), cmd, output)
		if errOut != "" {
			fmt.Fprintf(&b, "\nErrors:\n%s\n", errOut)
		}
		s.WriteFile(filepath.Join("logs", p.ID+"_output.txt"), b.String())
		s.SaveLogcat(filepath.Join("logs", p.ID+"_logcat.txt"))

		if res.Err != nil && res.ExitCode < 0 {
			// adb never ran
			lines = append(lines, fmt.Sprintf("Test: %s - ERROR: %v\n%s\n", p.title(), res.Err, reportRule))
			s.Errorf("%s: %v", p.ID, res.Err)
		} else {
			lines = append(lines, fmt.Sprintf("Test: %s\nCommand: %s\nOutput:\n%s\n%s\n", p.title(), cmd, output, reportRule))
			s.Logf("[%s] %s", p.ID, res.Text())
		}
		s.ClearLogcat()
	}

	path := s.WriteFile(filepath.Join("logs", fmt.Sprintf("phone_test_report_%s.txt", stamp)), strings.Join(lines, "\n"))
	s.Logf("Phone report saved to: %s", path)
}
