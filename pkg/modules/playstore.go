package modules

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const playStoreActivity = "com.android.vending/com.google.android.finsky.activities.MainActivity"

var playResultHeader = []string{"Test Case", "Status", "Message", "Timestamp"}

func marketSearch(query string) []string {
	return shell("am", "start", "-a", "android.intent.action.VIEW", "-d", "market://search?q="+query)
}

// logAndRun runs a command and logs its trimmed stdout without judging it.
func logAndRun(s *suite.State, desc string, args ...string) string {
	s.Logf("[STEP] %s", desc)
	res := s.ADB().Exec(s.Ctx(), args...)
	out := strings.TrimSpace(res.Stdout)
	s.Logf("[ADB OUTPUT] %s", out)
	return out
}

func init() {
	suite.AddModule(&suite.Module{
		Name: "PlayStore",
		Desc: "Play Store navigation and package management",
		Groups: []*suite.Group{{
			Name:     "TestPlayStore",
			Setup:    playPrecondition,
			Teardown: playPostcondition,
			Cases: []*suite.Case{
				{Name: "test_01_launch_playstore", Desc: "Launch Play Store", Func: playLaunch},
				{Name: "test_02_search_on_playstore", Desc: "Search on Play Store", Params: []string{"query"}, Func: playSearch},
				{Name: "test_03_list_installed_apps", Desc: "List installed packages", Func: func(s *suite.State) {
					out := logAndRun(s, "Listing installed packages", shell("pm", "list", "packages")...)
					s.Assert(out != "", "No packages found")
				}},
				{Name: "test_04_check_playstore_launch_time", Desc: "Check Play Store launch time", Func: func(s *suite.State) {
					start := time.Now()
					playLaunch(s)
					d := time.Since(start)
					s.Logf("Play Store launch time: %.2fs", d.Seconds())
					s.Assert(d > 0, "launch time not measured")
				}},
				{Name: "test_05_open_an_app", Desc: "Open an app via monkey", Params: []string{"package"}, Func: func(s *suite.State) {
					pkg := s.Param("package")
					logAndRun(s, fmt.Sprintf("Opening app %s via monkey", pkg),
						shell("monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")...)
					s.Sleep(2 * time.Second)
				}},
				{Name: "test_06_check_notifications", Desc: "Dump notification service", Func: func(s *suite.State) {
					out := logAndRun(s, "Dumping notification service", shell("dumpsys", "notification")...)
					s.Assert(out != "", "No notification output found")
				}},
				{Name: "test_07_check_airplane_mode_behavior", Desc: "Search while in airplane mode", Func: playAirplane},
				{Name: "test_09_press_home_and_return", Desc: "Press Home and return to Play Store", Func: func(s *suite.State) {
					logAndRun(s, "Pressing Home key", shell("input", "keyevent", "3")...)
					s.Sleep(time.Second)
					playLaunch(s)
				}},
				{Name: "test_10_check_search_suggestions", Desc: "Pop-up suggestions while searching", Params: []string{"query"}, Func: func(s *suite.State) {
					q := s.Param("query")
					logAndRun(s, fmt.Sprintf("Triggering Play Store search with '%s'", q), marketSearch(q)...)
					s.Sleep(2 * time.Second)
				}},
				{Name: "test_12_uninstall_app", Desc: "Uninstall an app", Params: []string{"package"}, Func: func(s *suite.State) {
					pkg := s.Param("package")
					logAndRun(s, "Uninstalling "+pkg, "uninstall", pkg)
				}},
			},
		}},
	})

	suite.AddModule(&suite.Module{
		Name: "test_playstore",
		Desc: "Play Store checks with a result sheet",
		Cases: []*suite.Case{
			{Name: "test_1_launch_playstore", Desc: "Launch Play Store", Func: func(s *suite.State) {
				playRecord(s, "1. Launch Play Store", playLaunchCmd(s), "")
			}},
			{Name: "test_2_search_on_playstore", Desc: "Search on Play Store", Params: []string{"query"}, Func: func(s *suite.State) {
				q := s.Param("query")
				playRecord(s, "1. Launch Play Store", playLaunchCmd(s), "")
				err := playSearchCmd(s, q)
				playRecord(s, "2. Search on Play Store", err, "")
			}},
			{Name: "test_3_list_installed_apps", Desc: "List installed apps", Func: func(s *suite.State) {
				out, err := s.ADB().Shell(s.Ctx(), "pm", "list", "packages")
				playRecord(s, "3. List Installed Apps", err, "Packages:\n"+out)
			}},
			{Name: "test_4_check_playstore_launch_time", Desc: "Check Play Store launch time", Func: func(s *suite.State) {
				start := time.Now()
				err := playLaunchCmd(s)
				playRecord(s, "1. Launch Play Store", err, "")
				playRecord(s, "4. Check Play Store Launch Time", err,
					fmt.Sprintf("Launch time: %.2fs", time.Since(start).Seconds()))
			}},
			{Name: "test_5_open_app", Desc: "Open an app", Params: []string{"package"}, Func: func(s *suite.State) {
				pkg := s.Param("package")
				_, err := s.ADB().Shell(s.Ctx(), "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
				s.Sleep(2 * time.Second)
				playRecord(s, "5. Open an App", err, fmt.Sprintf("Opened app %s via monkey", pkg))
			}},
			{Name: "test_6_check_notifications", Desc: "Check notifications", Func: func(s *suite.State) {
				out, err := s.ADB().Shell(s.Ctx(), "dumpsys", "notification")
				playRecord(s, "6. Check Notifications", err, fmt.Sprintf("%d lines", len(strings.Split(out, "\n"))))
			}},
			{Name: "test_7_check_airplane_mode_behavior", Desc: "Check airplane mode behavior", Func: func(s *suite.State) {
				playAirplane(s)
				playRecord(s, "7. Check Airplane Mode Behavior", nil, "Airplane mode search and screenshot captured")
			}},
			{Name: "test_9_press_home_and_return", Desc: "Press Home and return to Play Store", Func: func(s *suite.State) {
				s.Check("Home", shell("input", "keyevent", "3")...)
				s.Sleep(time.Second)
				err := playLaunchCmd(s)
				playRecord(s, "1. Launch Play Store", err, "")
				playRecord(s, "9. Press Home and Return to Play Store", err, "")
			}},
			{Name: "test_10_check_search_suggestions", Desc: "Pop-up suggestions while searching", Params: []string{"query"}, Func: func(s *suite.State) {
				err := playSearchCmd(s, s.Param("query"))
				s.Sleep(2 * time.Second)
				playRecord(s, "10. Pop-up Suggestions While Searching", err, "Opened search bar for suggestions (verify manually)")
			}},
			{Name: "test_12_uninstall_app", Desc: "Uninstall an app", Params: []string{"package"}, Func: func(s *suite.State) {
				pkg := s.Param("package")
				_, err := s.ADB().Run(s.Ctx(), "uninstall", pkg)
				playRecord(s, "12. Uninstall an App", err, "Uninstalled "+pkg)
			}},
		},
	})
}

func playPrecondition(s *suite.State) {
	s.Logf("[Precondition] Preparing device for test '%s'", s.Name())
}

func playPostcondition(s *suite.State) {
	name := fmt.Sprintf("%s_%s.log", s.Name(), s.Now().Format("2006-01-02_15-04-05"))
	s.Logf("[Postcondition] Test '%s' complete. Log saved at %s", s.Name(), filepath.Join(s.OutDir(), name))
}

func playLaunch(s *suite.State) {
	logAndRun(s, "Launching Play Store", shell("am", "start", "-n", playStoreActivity)...)
	s.Sleep(2 * time.Second)
}

func playSearch(s *suite.State) {
	q := s.Param("query")
	playLaunch(s)
	logAndRun(s, fmt.Sprintf("Opening Play Store search with query '%s'", q), marketSearch(q)...)
	s.Sleep(4 * time.Second)
}

func playAirplane(s *suite.State) {
	logAndRun(s, "Disabling WiFi", shell("svc", "wifi", "disable")...)
	logAndRun(s, "Disabling Mobile Data", shell("svc", "data", "disable")...)
	logAndRun(s, "Enabling Airplane Mode", shell("settings", "put", "global", "airplane_mode_on", "1")...)
	logAndRun(s, "Broadcasting Airplane Mode ON",
		shell("am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", "true")...)
	playLaunch(s)
	s.Sleep(4 * time.Second)
	logAndRun(s, "Opening search while in airplane mode", marketSearch("example")...)
	s.Sleep(4 * time.Second)
	logAndRun(s, "Taking screenshot in airplane mode", shell("screencap", "-p", "/sdcard/airplane_mode.png")...)
}

func playLaunchCmd(s *suite.State) error {
	_, err := s.ADB().Run(s.Ctx(), shell("am", "start", "-n", playStoreActivity)...)
	s.Sleep(2 * time.Second)
	return err
}

func playSearchCmd(s *suite.State, q string) error {
	_, err := s.ADB().Run(s.Ctx(), marketSearch(q)...)
	s.Sleep(4 * time.Second)
	return err
}

// playRecord prints and appends one row to test_results.csv. A non-nil err
// marks the row Failed and fails the case.
func playRecord(s *suite.State, test string, err error, msg string) {
	status := "Passed"
	if err != nil {
		status, msg = "Failed", err.Error()
		s.Errorf("%s: %v", test, err)
	}
	s.AppendCSV("test_results.csv", playResultHeader,
		[]string{test, status, msg, s.Now().Format("2006-01-02 15:04:05")})
	s.Printf("%s - %s: %s\n", test, status, msg)
}
