package modules

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// gfxOp is either an adb call or, when Args is nil, a pause.
type gfxOp struct {
	Args  []string
	Pause time.Duration
}

type gfxTest struct {
	ID   string
	Desc string
	Ops  []gfxOp
}

func gfx(args ...string) gfxOp      { return gfxOp{Args: args} }
func gfxWait(d time.Duration) gfxOp { return gfxOp{Pause: d} }

const gfxSettle = 3 * time.Second

func screenToggleLoop() []gfxOp {
	var ops []gfxOp
	for i := 0; i < 5; i++ {
		ops = append(ops,
			gfx(shell("input", "keyevent", "26")...), gfxWait(time.Second),
			gfx(shell("input", "keyevent", "26")...), gfxWait(time.Second),
		)
	}
	return ops
}

var gfxTests = []gfxTest{
	{"TC_GFX_001", "Check screen resolution", []gfxOp{gfx(shell("wm", "size")...)}},
	{"TC_GFX_002", "Check screen density", []gfxOp{gfx(shell("wm", "density")...)}},
	{"TC_GFX_003", "Capture screenshot", []gfxOp{
		gfx(shell("screencap", "/sdcard/screen.png")...),
		gfx("pull", "/sdcard/screen.png"),
	}},
	{"TC_GFX_004", "Record screen for 5 seconds", []gfxOp{
		gfx(shell("screenrecord", "--time-limit", "5", "/sdcard/demo.mp4")...),
		gfx("pull", "/sdcard/demo.mp4"),
	}},
	{"TC_GFX_005", "Check GPU renderer", []gfxOp{gfx(shell("dumpsys", "SurfaceFlinger")...)}},
	{"TC_GFX_006", "Check active refresh rate", []gfxOp{gfx(shell("dumpsys", "display")...)}},
	{"TC_GFX_007", "Enable GPU rendering profiling", []gfxOp{gfx(shell("setprop", "debug.hwui.profile", "visual_bars")...)}},
	{"TC_GFX_008", "Verify frame latency", []gfxOp{gfx(shell("dumpsys", "gfxinfo", "com.sec.android.app.camera")...)}},
	{"TC_GFX_009", "Enable hardware overlays", []gfxOp{gfx(shell("service", "call", "SurfaceFlinger", "1008", "i32", "1")...)}},
	{"TC_GFX_010", "Disable hardware overlays", []gfxOp{gfx(shell("service", "call", "SurfaceFlinger", "1008", "i32", "0")...)}},
	{"TC_GFX_011", "To hide navigation bar", []gfxOp{gfx(shell("settings", "put", "global", "policy_control", "immersive.full=*")...)}},
	{"TC_GFX_012", "To unhide navigation bar", []gfxOp{gfx(shell("settings", "put", "global", "policy_control", "null")...)}},
	{"TC_GFX_013", "Check vsync info", []gfxOp{gfx(shell("dumpsys", "SurfaceFlinger", "--latency")...)}},
	{"TC_GFX_014", "Dump SurfaceFlinger layers", []gfxOp{gfx(shell("dumpsys", "SurfaceFlinger", "--list")...)}},
	{"TC_GFX_015", "Validate display rotation", []gfxOp{gfx(shell("content", "insert", "--uri", "content://settings/system",
		"--bind", "name:s:user_rotation", "--bind", "value:i:1")...)}},
	{"TC_GFX_016", "Simulate app display cutout handling", []gfxOp{gfx(shell("am", "start", "-n",
		"com.sec.android.app.camera/com.sec.android.app.camera.Camera")...)}},
	{"TC_GFX_017", "Check ION memory usage", []gfxOp{gfx(shell("cat", "/d/ion/heaps/system")...)}},
	{"TC_GFX_018", "Capture framebuffer", []gfxOp{
		gfx(shell("su", "-c", "'cat /dev/graphics/fb0 > /sdcard/fb0.raw'")...),
		gfx("pull", "/sdcard/fb0.raw"),
	}},
	{"TC_GFX_019", "Turn screen off", []gfxOp{gfx(shell("input", "keyevent", "26")...)}},
	{"TC_GFX_020", "Turn screen on & unlock", []gfxOp{
		gfx(shell("input", "keyevent", "26")...),
		gfx(shell("input", "swipe", "300", "1000", "300", "500")...),
	}},
	{"TC_GFX_021", "To launch Play store", []gfxOp{gfx(shell("monkey", "-p", "com.android.vending", "-v", "1")...)}},
	{"TC_GFX_022", "Gfx info of Playstore", []gfxOp{gfx(shell("dumpsys", "gfxinfo", "com.android.vending")...)}},
	{"TC_GFX_023", "Monitor thermal throttling while gaming", []gfxOp{gfx(shell("dumpsys", "thermalservice")...)}},
	{"TC_GFX_024", "Log dropped frames while gaming", []gfxOp{gfx(shell("dumpsys", "SurfaceFlinger", "--latency",
		"SurfaceView[com.bubbleshooter.popbubbles.collectcards/org.cocos2dx.cpp.AppActivity]@0")...)}},
	{"TC_GFX_025", "Trigger ambient screen wake and validate response time", []gfxOp{gfx(shell("input", "keyevent", "224")...)}},
	{"TC_GFX_026", "Run fast screen on/off loop to test render pipeline resilience", screenToggleLoop()},
	{"TC_GFX_027", "Current composition layers", []gfxOp{gfx(shell("dumpsys", "SurfaceFlinger", "--list")...)}},
	{"TC_GFX_028", "Stress test brightness slider", []gfxOp{
		gfx(shell("cmd", "statusbar", "expand-settings")...),
		gfx(shell("input", "swipe", "300", "1600", "800", "1600")...),
		gfxWait(2 * time.Second),
		gfx(shell("input", "swipe", "100", "760", "560", "760")...),
		gfx(shell("input", "keyevent", "KEYCODE_BACK")...),
	}},
}

func init() {
	cases := make([]*suite.Case, 0, len(gfxTests))
	for _, g := range gfxTests {
		g := g
		cases = append(cases, &suite.Case{
			Name: "test_" + strings.ToLower(g.ID),
			Desc: g.Desc,
			Func: func(s *suite.State) { runGfxTest(s, g) },
		})
	}
	suite.AddModule(&suite.Module{
		Name:  "test_graphics",
		Desc:  "Display pipeline, SurfaceFlinger and GPU checks",
		Cases: cases,
	})
}

func runGfxTest(s *suite.State, g gfxTest) {
	s.Printf("\n=== Running %s: %s ===\n", g.ID, g.Desc)
	ok := runGfxOps(s, g)
	s.Sleep(time.Second)

	s.SaveLogcat(filepath.Join("logs", g.ID+"_logcat.log"))
	s.ClearLogcat()
	s.AppendCSV("results.csv", []string{"Test Case ID", "Description", "Result"},
		[]string{g.ID, g.Desc, passFail(ok)})
	s.Printf("Logged result for %s\n", g.ID)
	if !ok {
		s.Errorf("%s failed", g.ID)
	}
}

// runGfxOps runs the chain until the first failing command, then settles and
// appends the outcome to logs/<id>.txt.
func runGfxOps(s *suite.State, g gfxTest) bool {
	var cmds []string
	var out, errOut string
	ok := true
	for _, op := range g.Ops {
		if op.Args == nil {
			s.Sleep(op.Pause)
			continue
		}
		line := "adb " + strings.Join(op.Args, " ")
		cmds = append(cmds, line)
		s.Printf("[ADB CMD] %s\n", line)
		res := s.ADB().Exec(s.Ctx(), op.Args...)
		if !res.OK() {
			errOut = res.Text()
			s.Printf("[ERROR] %s\n", errOut)
			ok = false
			break
		}
		out = strings.TrimSpace(res.Stdout)
		s.Printf("[OUTPUT] %s\n", out)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n---\nTest Case: %s\n", g.ID)
	fmt.Fprintf(&b, "Timestamp: %s\n", s.Now().Format("2006-01-02 15:04:05.000000"))
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(cmds, " && "))
	fmt.Fprintf(&b, "Status: %s\n", passFail(ok))
	if ok && out != "" {
		fmt.Fprintf(&b, "Output:\n%s\n", out)
	}
	if !ok {
		fmt.Fprintf(&b, "Error Output:\n%s\n", errOut)
	}
	s.AppendFile(filepath.Join("logs", g.ID+".txt"), b.String())
	s.Sleep(gfxSettle)
	return ok
}
