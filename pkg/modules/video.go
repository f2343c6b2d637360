package modules

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const galleryPackage = "com.android.gallery3d"

// videoStep is one adb call. Filter keeps only output lines containing it
// (case-insensitive) and fails the step when none match. Fallback runs when
// the step fails. A step with Repeat > 1 is a stress loop: Args, Pause and
// Then run Repeat times and individual exit codes are not checked.
type videoStep struct {
	Args     []string
	Filter   string
	Repeat   int
	Pause    time.Duration
	Then     []string
	Fallback []string
}

type videoTest struct {
	ID    string
	Name  string
	Steps []videoStep
}

func (v videoTest) title() string { return v.ID + " - " + v.Name }

func (v videoTest) feature() string {
	if f := strings.Fields(v.Name); len(f) > 0 {
		return f[0]
	}
	return ""
}

func vstep(args ...string) videoStep { return videoStep{Args: args} }

func launchGallery() []string {
	return shell("monkey", "-p", galleryPackage, "-c", "android.intent.category.LAUNCHER", "1")
}

var videoTests = []videoTest{
	{"VID_01", "Launch Video App", []videoStep{vstep(launchGallery()...)}},
	{"VID_02", "Stop Video App", []videoStep{vstep(shell("am", "force-stop", galleryPackage)...)}},
	{"VID_03", "Dump Playback State", []videoStep{{Args: shell("dumpsys", "activity", "activities"), Filter: galleryPackage}}},
	{"VID_04", "Enable Debug Logging", []videoStep{vstep(shell("setprop", "log.tag.VideoPlayer", "DEBUG")...), vstep(shell("getprop", "log.tag.VideoPlayer")...)}},
	{"VID_05", "Frame Drop Tracking", []videoStep{vstep(shell("dumpsys", "SurfaceFlinger", "--latency", galleryPackage)...)}},
	{"VID_06", "Dump AV Sync Status", []videoStep{vstep(shell("dumpsys", "SurfaceFlinger", "--latency")...)}},
	{"VID_07", "Toggle HW Acceleration", []videoStep{vstep(shell("dumpsys", "gfxinfo", galleryPackage)...)}},
	{"VID_08", "Dump Codec Info", []videoStep{{Args: shell("dumpsys", "media.player"), Filter: "codec"}}},
	{"VID_09", "Play-Pause Stress Test", []videoStep{{Args: shell("input", "keyevent", "85"), Repeat: 5, Pause: 100 * time.Millisecond}}},
	{"VID_10", "High CPU Load Test", []videoStep{vstep(shell("top", "-n", "1")...)}},
	{"VID_11", "Repeated Launch & Kill App Stress", []videoStep{{
		Args:   launchGallery(),
		Repeat: 10,
		Pause:  200 * time.Millisecond,
		Then:   shell("am", "force-stop", galleryPackage),
	}}},
	{"VID_12", "Thermal Throttling Test", []videoStep{vstep(shell("dumpsys", "thermalservice")...)}},
	{"VID_13", "Video Playback Error Handling Test", []videoStep{vstep(viewMedia("/sdcard/missing_video.mp4", "video/mp4")...)}},
	{"VID_14", "Monitor Buffer Underrun", []videoStep{{Args: []string{"logcat", "-d"}, Filter: "buffer underrun"}}},
	{"VID_15", "High Latency Playback", []videoStep{vstep(shell("ping", "-c", "10", "google.com")...)}},
	{"VID_16", "PiP Mode Test", []videoStep{vstep(shell("am", "start", "-n", "org.videolan.vlc/org.videolan.vlc.gui.video.VideoPlayerActivity")...)}},
	{"VID_17", "Background Playback Test", []videoStep{
		vstep(viewMedia("/sdcard/Download/sample.mp4", "video/mp4")...),
		vstep(shell("input", "keyevent", "3")...),
		{Args: shell("dumpsys", "media_session"), Filter: "playback"},
	}},
	{"VID_18", "Force GPU Rendering Test", []videoStep{
		vstep(shell("settings", "put", "global", "force_gpu_rendering", "1")...),
		vstep(shell("settings", "get", "global", "force_gpu_rendering")...),
	}},
	{"VID_19", "Analyze Frame Rendering Stats", []videoStep{vstep(shell("dumpsys", "gfxinfo", galleryPackage, "framestats")...)}},
	{"VID_20", "Toggle and Verify Screen Rotation", []videoStep{
		vstep(shell("settings", "put", "system", "accelerometer_rotation", "0")...),
		vstep(shell("settings", "get", "system", "accelerometer_rotation")...),
		vstep(shell("settings", "put", "system", "accelerometer_rotation", "1")...),
		vstep(shell("settings", "get", "system", "accelerometer_rotation")...),
	}},
	{"VID_21", "Video File Properties Dump", []videoStep{{Args: shell("dumpsys", "media.audio_flinger"), Filter: "stream", Fallback: shell("dumpsys", "media.player")}}},
	{"VID_22", "DRM Info Dump", []videoStep{{Args: shell("getprop"), Filter: "drm"}}},
	{"VID_23", "Dump Audio HAL State", []videoStep{vstep(shell("dumpsys", "media.audio_flinger")...)}},
	{"VID_24", "Simulate Playback Keyevent", []videoStep{vstep(shell("input", "keyevent", "85")...)}},
	{"VID_25", "Seek Functionality Test", []videoStep{vstep(shell("input", "keyevent", "90")...)}},
}

var videoGroups = []selectionGroup{
	{"Basic Functionality", 1, 4},
	{"Playback Quality", 5, 8},
	{"Stress & Performance", 9, 12},
	{"Error Handling", 13, 15},
	{"Advanced Scenarios", 16, 20},
	{"Utility", 21, 25},
}

var videoReportHeader = []string{
	"Timestamp", "Test ID", "Test Name", "Feature",
	"Status", "Execution Time (s)", "Output File",
	"Logcat File", "Remarks",
}

const videoReport = "test_logs/video_test_report.csv"

func init() {
	cases := make([]*suite.Case, 0, len(videoTests)+1)
	for _, v := range videoTests {
		v := v
		cases = append(cases, &suite.Case{
			Name: "test_" + strings.ToLower(v.ID),
			Desc: v.title(),
			Func: func(s *suite.State) { runVideoTests(s, []videoTest{v}) },
		})
	}
	cases = append(cases, &suite.Case{
		Name:   "test_run_selected",
		Desc:   "Run video tests by number list, group name or all",
		Params: []string{"selection"},
		Func:   runVideoSelection,
	})

	suite.AddModule(&suite.Module{
		Name:  "test_video",
		Desc:  "Video playback, rendering and media stack",
		Cases: cases,
	})
}

func runVideoSelection(s *suite.State) {
	for _, g := range videoGroups {
		s.Printf("\n%s:\n", g.Name)
		for i := g.From; i <= g.To; i++ {
			s.Printf("%d. %s\n", i, videoTests[i-1].title())
		}
	}
	idx, fellBack := parseSelection(s.Param("selection"), len(videoTests), videoGroups)
	if fellBack {
		s.Printf("❌ Invalid selection. Defaulting to all tests.\n")
	}
	selected := make([]videoTest, 0, len(idx))
	for _, n := range idx {
		selected = append(selected, videoTests[n-1])
	}
	runVideoTests(s, selected)
}

func runVideoTests(s *suite.State, tests []videoTest) {
	stamp := s.Now().Format("2006-01-02_15-04-05")
	for _, v := range tests {
		start := s.Now()
		dir := filepath.Join("test_logs", fmt.Sprintf("%s_%s", v.ID, stamp))
		outputFile := filepath.Join(dir, "output.log")
		logcatFile := filepath.Join(dir, "adb_logcat.log")

		s.ClearLogcat()
		log, code := execVideoSteps(s, v)
		s.WriteFile(outputFile, log)
		s.SaveLogcat(logcatFile)

		status, remarks := validateVideo(v.ID, code)
		elapsed := s.Now().Sub(start).Seconds()
		s.AppendCSV(videoReport, videoReportHeader, []string{
			stamp, v.ID, v.title(), v.feature(), status,
			fmt.Sprintf("%.2f", elapsed), outputFile, logcatFile, remarks,
		})
		s.Logf("[%s] %s (%s)", v.ID, status, remarks)
		if status != "PASS" {
			s.Errorf("%s: %s", v.ID, remarks)
		}
	}
	s.Printf("✅ All tests executed. Report available at: %s\n", filepath.Join(s.OutDir(), videoReport))
}

// execVideoSteps runs the steps in order, stopping at the first failure, and
// returns the combined log and that step's exit code (0 when all succeeded).
func execVideoSteps(s *suite.State, v videoTest) (string, int) {
	var b strings.Builder
	for _, st := range v.Steps {
		if st.Repeat > 1 {
			for i := 0; i < st.Repeat; i++ {
				runVideoStep(s, &b, st.Args, "")
				s.Sleep(st.Pause)
				if len(st.Then) > 0 {
					runVideoStep(s, &b, st.Then, "")
				}
			}
			continue
		}
		code := runVideoStep(s, &b, st.Args, st.Filter)
		if code != 0 && len(st.Fallback) > 0 {
			code = runVideoStep(s, &b, st.Fallback, "")
		}
		if code != 0 {
			return b.String(), code
		}
	}
	return b.String(), 0
}

func runVideoStep(s *suite.State, b *strings.Builder, args []string, filter string) int {
	res := s.ADB().Exec(s.Ctx(), args...)
	code := res.ExitCode
	stdout := res.Stdout
	if res.OK() && filter != "" {
		stdout = filterLines(stdout, filter)
		if stdout == "" {
			code = 1
		}
	}
	fmt.Fprintf(b, "Command: adb %s\n", strings.Join(args, " "))
	if filter != "" {
		fmt.Fprintf(b, "Filter: %s\n", filter)
	}
	fmt.Fprintf(b, "Return Code: %d\n\nStandard Output:\n%s\n", code, stdout)
	if res.Stderr != "" {
		fmt.Fprintf(b, "Standard Error:\n%s\n", res.Stderr)
	}
	b.WriteString("\n")
	return code
}

func filterLines(out, needle string) string {
	needle = strings.ToLower(needle)
	var kept []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(strings.ToLower(line), needle) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func validateVideo(id string, code int) (status, remarks string) {
	if code != 0 {
		return "FAIL", fmt.Sprintf("Return code: %d", code)
	}
	if id == "VID_01" {
		return "PASS", "Monkey return code: 0"
	}
	return "PASS", "Executed without errors"
}
