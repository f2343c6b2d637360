package modules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func init() {
	suite.AddModule(&suite.Module{
		Name: "test_bluetooth",
		Desc: "Bluetooth adapter control",
		Groups: []*suite.Group{{
			Name:     "TestBluetoothControl",
			Setup:    bluetoothOff,
			Teardown: bluetoothSaveLog,
			Cases: []*suite.Case{
				{Name: "test_01_enable_bluetooth", Func: btEnable},
				{Name: "test_02_disable_bluetooth", Func: btDisable},
				{Name: "test_03_toggle_bluetooth", Func: btToggle},
				{Name: "test_04_check_bluetooth_mac", Func: btMAC},
				{Name: "test_05_check_bt_state_with_dumpsys", Func: btDumpsysState},
				{Name: "test_06_scan_for_devices", Func: btScan},
				{Name: "test_07_check_discoverable_mode", Func: btDiscoverableTimeout},
				{Name: "test_08_make_device_discoverable", Func: btMakeDiscoverable},
				{Name: "test_09_check_paired_devices", Func: btPairedDevices},
				{Name: "test_10_enable_bt_via_settings_put", Func: btSettingsPut},
				{Name: "test_11_check_bt_stack", Func: btStack},
				{Name: "test_12_trigger_bt_settings_ui", Func: btSettingsUI},
				{Name: "test_13_bt_off_state_check", Func: btOffState},
				{Name: "test_14_bt_logcat_filter", Func: btLogcat},
				{Name: "test_15_restart_bluetooth_adapter", Func: btRestart},
			},
		}},
	})
}

var (
	btOn  = shell("svc", "bluetooth", "enable")
	btOff = shell("svc", "bluetooth", "disable")
	btDump = shell("dumpsys", "bluetooth_manager")
)

func bluetoothOff(s *suite.State) {
	s.Logf("[Precondition] Ensuring Bluetooth is OFF for %s", s.Name())
	s.Check("", btOff...)
	s.Check("", shell("logcat", "-c")...)
}

func bluetoothSaveLog(s *suite.State) {
	out := s.Check("", shell("logcat", "-d")...)
	path := s.WriteFile(fmt.Sprintf("%s_%s.log", s.Name(), s.Timestamp()), out)
	s.Logf("[Postcondition] Bluetooth OFF. Log saved: %s", path)
	s.Check("", btOff...)
}

// btStep runs a command and logs it without judging the output.
func btStep(s *suite.State, desc string, args []string) string {
	s.Logf("[TEST STEP] %s", desc)
	out := s.Check("", args...)
	s.Logf("[ADB OUTPUT] %s", out)
	return out
}

func btEnabled(s *suite.State) bool {
	return strings.Contains(strings.ToLower(s.Check("", btDump...)), "enabled")
}

func btEnable(s *suite.State) {
	btStep(s, "Enable Bluetooth", btOn)
	s.Assert(btEnabled(s), "Bluetooth not reported as enabled")
}

func btDisable(s *suite.State) {
	btStep(s, "Enable Bluetooth", btOn)
	btStep(s, "Disable Bluetooth", btOff)
	s.Assert(!btEnabled(s), "Bluetooth still reported as enabled")
}

func btToggle(s *suite.State) {
	btStep(s, "Toggle ON", btOn)
	btStep(s, "Toggle OFF", btOff)
	btStep(s, "Toggle ON again", btOn)
	s.Assert(btEnabled(s), "Bluetooth not reported as enabled")
}

func btMAC(s *suite.State) {
	mac := btStep(s, "Get Bluetooth MAC", shell("settings", "get", "secure", "bluetooth_address"))
	s.Assert(strings.Contains(strings.TrimSpace(mac), ":"), "invalid Bluetooth MAC %q", mac)
}

func btDumpsysState(s *suite.State) {
	out := strings.ToLower(btStep(s, "Check Bluetooth state", btDump))
	s.Assert(strings.Contains(out, "enabled") || strings.Contains(out, "disabled"), "Bluetooth state not found")
}

func btScan(s *suite.State) {
	btStep(s, "Start Bluetooth", btOn)
	out := strings.ToLower(btStep(s, "Start scanning", shell("am", "broadcast", "-a", "android.bluetooth.adapter.action.REQUEST_DISCOVERABLE")))
	s.Assert(strings.Contains(out, "broadcast completed") || strings.Contains(out, "result="), "broadcast not delivered")
}

func btDiscoverableTimeout(s *suite.State) {
	state := strings.TrimSpace(btStep(s, "Check discoverable mode", shell("settings", "get", "global", "bluetooth_discoverable_timeout")))
	s.Assert(isDigits(state), "discoverable timeout %q is not numeric", state)
}

func btMakeDiscoverable(s *suite.State) {
	out := strings.ToLower(btStep(s, "Make device discoverable", shell("am", "start", "-a", "android.bluetooth.adapter.action.REQUEST_DISCOVERABLE")))
	s.Assert(strings.Contains(out, "cmp=") || strings.Contains(out, "starting"), "activity not started")
}

func btPairedDevices(s *suite.State) {
	out := btStep(s, "Check paired devices", shell("cmd", "bluetooth_manager", "getPairedDevices"))
	s.Logf("Paired Devices: %s", out)
	s.Assert(strings.TrimSpace(out) != "", "no paired device output")
}

func btSettingsPut(s *suite.State) {
	btStep(s, "Enable BT via settings", shell("settings", "put", "global", "bluetooth_on", "1"))
	s.Assert(btEnabled(s), "Bluetooth not reported as enabled")
}

func btStack(s *suite.State) {
	out := strings.ToLower(btStep(s, "Get Bluetooth stack info", btDump))
	s.Assert(strings.Contains(out, "bluetoothmanager"), "bluetooth manager dump missing")
}

func btSettingsUI(s *suite.State) {
	out := strings.ToLower(btStep(s, "Trigger Bluetooth UI", shell("am", "start", "-a", "android.settings.BLUETOOTH_SETTINGS")))
	s.Assert(strings.Contains(out, "cmp=") || strings.Contains(out, "starting"), "activity not started")
}

func btOffState(s *suite.State) {
	btStep(s, "Turn off Bluetooth", btOff)
	out := strings.ToLower(btStep(s, "Check Bluetooth off state", btDump))
	s.Assert(!strings.Contains(out, "enabled"), "Bluetooth still reported as enabled")
}

func btLogcat(s *suite.State) {
	btStep(s, "Start Bluetooth", btOn)
	out := btStep(s, "Capture Bluetooth logs", shell("logcat", "-d"))
	s.Assert(strings.Contains(strings.ToLower(out), "bluetooth") || strings.TrimSpace(out) != "", "empty logcat")
}

func btRestart(s *suite.State) {
	btStep(s, "Disable Bluetooth", btOff)
	btStep(s, "Enable Bluetooth", btOn)
	out := s.Check("", btDump...)
	s.Assert(strings.Contains(strings.ToLower(out), "enabled"), "Bluetooth not reported as enabled")
}

func isDigits(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
