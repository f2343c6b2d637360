package modules

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// Display commands fail on the first ERROR output.
var displayStep = []suite.StepOption{suite.Retries(0), suite.Timeout(10 * time.Second)}

func init() {
	cases := stepCases(displayStep,
		stepCase{"test_set_screen_brightness_to_max", "Set screen brightness to max", shell("settings", "put", "system", "screen_brightness", "255")},
		stepCase{"test_enable_auto_brightness", "Enable auto brightness", shell("settings", "put", "system", "screen_brightness_mode", "1")},
		stepCase{"test_set_screen_timeout", "Set screen timeout to 60 seconds", shell("settings", "put", "system", "screen_off_timeout", "60000")},
		stepCase{"test_set_resolution", "Set resolution to 1080x2340", shell("wm", "size", "1080x2340")},
		stepCase{"test_set_density", "Set density to 320", shell("wm", "density", "320")},
		stepCase{"test_enable_night_light", "Enable night light", shell("settings", "put", "secure", "display_night_light_activated", "1")},
		stepCase{"test_enable_always_on_display", "Enable always-on display", shell("settings", "put", "secure", "doze_always_on", "1")},
		stepCase{"test_user_rotation", "Set user rotation to 90° (code 1)", shell("settings", "put", "system", "user_rotation", "1")},
		stepCase{"test_disable_auto_rotation", "Disable auto rotation", shell("settings", "put", "system", "accelerometer_rotation", "0")},
		stepCase{"test_keep_screen_on_charging", "Keep screen on while charging", shell("settings", "put", "global", "stay_on_while_plugged_in", "3")},
	)
	cases = append(cases, &suite.Case{Name: "test_take_and_pull_screenshot", Desc: "Take screenshot and pull it", Func: screenshotAndPull})
	cases = append(cases, stepCases(displayStep,
		stepCase{"test_send_factory_broadcast", "Broadcast factory test intent", shell("am", "broadcast", "-a", "android.intent.action.FACTORY_TEST")},
		stepCase{"test_power_key_press", "Simulate power key press", shell("input", "keyevent", "26")},
		stepCase{"test_enable_magnification", "Enable magnification", shell("settings", "put", "secure", "accessibility_display_magnification_enabled", "1")},
		stepCase{"test_get_font_scale", "Get font scale", shell("settings", "get", "system", "font_scale")},
		stepCase{"test_enable_3_button_nav", "Enable 3-button nav", shell("cmd", "overlay", "enable", "com.android.internal.systemui.navbar.threebutton")},
		stepCase{"test_enable_gestural_nav", "Enable gestural nav", shell("cmd", "overlay", "enable", "com.android.internal.systemui.navbar.gestural")},
		stepCase{"test_get_screensaver_components", "Get screensaver components", shell("settings", "get", "secure", "screensaver_components")},
		stepCase{"test_enable_screensaver", "Enable screensaver", shell("settings", "put", "secure", "screensaver_enabled", "1")},
		stepCase{"test_disable_screensaver", "Disable screensaver", shell("settings", "put", "secure", "screensaver_enabled", "0")},
		stepCase{"test_enable_color_correction", "Enable color correction", shell("settings", "put", "secure", "accessibility_display_daltonizer_enabled", "1")},
		stepCase{"test_disable_color_correction", "Disable color correction", shell("settings", "put", "secure", "accessibility_display_daltonizer_enabled", "0")},
		stepCase{"test_set_color_filter_11", "Set color filter to 11", shell("settings", "put", "secure", "accessibility_display_daltonizer", "11")},
		stepCase{"test_set_color_filter_12", "Set color filter to 12", shell("settings", "put", "secure", "accessibility_display_daltonizer", "12")},
		stepCase{"test_set_color_filter_13", "Set color filter to 13", shell("settings", "put", "secure", "accessibility_display_daltonizer", "13")},
		stepCase{"test_get_color_filter", "Get current color filter", shell("settings", "get", "secure", "accessibility_display_daltonizer")},
		stepCase{"test_set_refresh_rate", "Set refresh rate to 60Hz", shell("settings", "put", "system", "refresh_rate", "60.0")},
		stepCase{"test_get_refresh_rate", "Get current refresh rate", shell("settings", "get", "system", "refresh_rate")},
		stepCase{"test_window_anim_scale", "Set window animation scale to 0.5", shell("settings", "put", "global", "window_animation_scale", "0.5")},
		stepCase{"test_transition_anim_scale", "Set transition animation scale to 0.5", shell("settings", "put", "global", "transition_animation_scale", "0.5")},
		stepCase{"test_animator_duration_scale", "Set animator duration scale to 0.5", shell("settings", "put", "global", "animator_duration_scale", "0.5")},
	)...)

	suite.AddModule(&suite.Module{
		Name:     "test_display",
		Desc:     "Display settings through settings and wm",
		Setup:    logcatSetup,
		Teardown: logcatTeardown,
		Groups:   []*suite.Group{{Name: "TestDisplayModule", Cases: cases}},
	})
}

const remoteScreenshot = "/sdcard/disp_test.png"

func screenshotAndPull(s *suite.State) {
	s.Step("Take screenshot", shell("screencap", "-p", remoteScreenshot), displayStep...)

	local := filepath.Join(s.OutDir(), "disp_test.png")
	out, _ := s.ADB().Pull(s.Ctx(), remoteScreenshot, local)
	s.Logf("ADB Pull Output: %s", out)

	lower := strings.ToLower(out)
	if !strings.Contains(lower, "file pulled") && !strings.Contains(lower, "bytes") {
		s.Fatalf("ERROR during pull: %s", out)
	}
	s.Logf("Screenshot pulled successfully.")

	s.Check("", shell("rm", remoteScreenshot)...)
	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		s.Warnf("remove %s: %v", local, err)
	}
}
