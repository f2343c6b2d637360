package modules

import (
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const clockPackage = "com.sec.android.app.clockpackage"

var clockTable = commandTable{
	Report:    "clock_test_report.csv",
	LogDir:    "clock_logs",
	ADBLogDir: "adb_logs",
	Rows: []tableCase{
		single("TC_CLK_001", "Set alarm 06:30", "shell", "am", "start", "-a", "android.intent.action.SET_ALARM", "--ei", "android.intent.extra.alarm.HOUR", "6", "--ei", "android.intent.extra.alarm.MINUTES", "30", "--ez", "android.intent.extra.alarm.SKIP_UI", "true"),
		single("TC_CLK_002", "Set 2 minute timer", "shell", "am", "start", "-a", "android.intent.action.SET_TIMER", "--ei", "android.intent.extra.alarm.LENGTH", "120", "--ez", "android.intent.extra.alarm.SKIP_UI", "true"),
		single("TC_CLK_003", "Enable do not disturb", "shell", "settings", "put", "global", "zen_mode", "1"),
		single("TC_CLK_004", "Disable do not disturb", "shell", "settings", "put", "global", "zen_mode", "0"),
		single("TC_CLK_005", "Dump alarms", "shell", "dumpsys", "alarm"),
		single("TC_CLK_006", "Power key", "shell", "input", "keyevent", "26"),
		single("TC_CLK_007", "Set time zone", "shell", "settings", "put", "global", "time_zone", "Asia/Kolkata"),
		single("TC_CLK_008", "Tap alarm list", "shell", "input", "tap", "400", "1300"),
		single("TC_CLK_009", "Clear clock data", "shell", "pm", "clear", clockPackage),
		single("TC_CLK_010", "Tap alarm toggle", "shell", "input", "tap", "700", "850"),
		single("TC_CLK_011", "Set alarm volume", "shell", "settings", "put", "system", "alarm_volume", "7"),
		single("TC_CLK_012", "Vibrate when ringing", "shell", "settings", "put", "system", "vibrate_when_ringing", "1"),
		single("TC_CLK_013", "Launch clock", "shell", "am", "start", "-n", clockPackage+"/.ClockPackage"),
		single("TC_CLK_014", "Force stop clock", "shell", "am", "force-stop", clockPackage),
		single("TC_CLK_015", "Reboot", "reboot"),
		single("TC_CLK_016", "Read 12/24 hour format", "shell", "settings", "get", "system", "time_12_24"),
		single("TC_CLK_017", "Read time zone", "shell", "settings", "get", "global", "time_zone"),
		single("TC_CLK_018", "Stay awake", "shell", "svc", "power", "stayon", "true"),
		single("TC_CLK_019", "Open date and time settings", "shell", "am", "start", "-n", "com.android.settings/.Settings$DateTimeSettingsActivity"),
		{
			ID:   "TC_CLK_020",
			Desc: "Wake and unlock",
			Commands: []command{
				{ID: "TC_CLK_020_KEY", Args: []string{"shell", "input", "keyevent", "224"}},
				{ID: "TC_CLK_020_SWIPE", Args: []string{"shell", "input", "swipe", "500", "1500", "500", "500"}},
			},
		},
		single("TC_CLK_021", "Monkey on clock", "shell", "monkey", "-p", clockPackage, "-v", "10"),
		single("TC_CLK_022", "Dump job scheduler", "shell", "dumpsys", "jobscheduler"),
		single("TC_CLK_023", "Show alarms", "shell", "am", "start", "-a", "android.intent.action.SHOW_ALARMS"),
		single("TC_CLK_024", "Query alarm provider", "shell", "content", "query", "--uri", "content://com.android.deskclock/alarm"),
		single("TC_CLK_025", "Dump alarms again", "shell", "dumpsys", "alarm"),
	},
}

func init() {
	suite.AddModule(&suite.Module{
		Name:     "test_clock",
		Desc:     "Alarm, timer and clock settings",
		Cases:    clockTable.cases(),
		Interval: 15 * time.Second,
	})
}
