package modules

import (
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const sampleTrack = "/sdcard/Music/sample.mp3"

const needsRoot = "Requires INJECT_EVENTS permission - needs root"

func init() {
	suite.AddModule(&suite.Module{
		Name:     "test_audio_module",
		Desc:     "Media playback, routing and audio focus",
		Setup:    logcatSetup,
		Teardown: logcatTeardown,
		Groups: []*suite.Group{{
			Name: "TestAudioModule",
			Cases: []*suite.Case{
				{Name: "test_adjust_volume_buttons", Desc: "Volume buttons", Skip: needsRoot, Func: adjustVolumeButtons},
				{Name: "test_pause_on_incoming_call", Desc: "Media pause during call", Func: pauseOnIncomingCall},
				{Name: "test_audio_routing_headset_unplug", Desc: "Audio routing information", Func: audioRouting},
				{Name: "test_bluetooth_audio_routing", Desc: "Bluetooth audio routing", Func: bluetoothAudioRouting},
				{Name: "test_playback_screen_off", Desc: "Playback with screen off", Skip: needsRoot, Func: playbackScreenOff},
				{Name: "test_voice_recording_playback", Desc: "Voice recording (manual verification)", Func: voiceRecording},
				{Name: "test_notification_over_audio", Desc: "Notification during playback", Func: notificationOverAudio},
				{Name: "test_mute_functionality", Desc: "Mute media stream", Skip: "Media command not available on all devices", Func: muteMedia},
				{Name: "test_audio_focus_conflict", Desc: "Audio focus between apps", Func: audioFocusConflict},
				{Name: "test_audio_after_reboot", Desc: "Audio after device reboot", Skip: "Reboot disrupts test sequence - run manually", Func: audioAfterReboot},
				{Name: "test_check_alarm_in_silent_mode", Desc: "Alarm in silent mode", Func: alarmInSilentMode},
				{Name: "test_check_bt_audio_route", Desc: "Bluetooth audio routing details", Func: btAudioRoute},
				{Name: "test_media_resume_after_call", Desc: "Media resume after call ends", Func: mediaResumeAfterCall},
				{Name: "test_media_ducking", Desc: "Audio ducking during notifications", Func: notificationOverAudio},
				{Name: "test_media_resume_screen_on", Desc: "Media resume when screen turns on", Skip: needsRoot, Func: mediaResumeScreenOn},
			},
		}},
	})
}

func adjustVolumeButtons(s *suite.State) {
	s.Step("Increase volume", shell("input", "keyevent", "KEYCODE_VOLUME_UP"))
	s.Step("Decrease volume", shell("input", "keyevent", "KEYCODE_VOLUME_DOWN"))
}

func pauseOnIncomingCall(s *suite.State) {
	if !shellGranted(s, "CALL_PHONE") {
		s.Skipf("CALL_PHONE permission not granted to shell")
	}
	s.Step("Play media", viewMedia(sampleTrack, "audio/*"))
	s.Sleep(2 * time.Second)
	s.Step("Simulate call", shell("am", "start", "-a", "android.intent.action.CALL", "-d", "tel:1234567890"))
}

func audioRouting(s *suite.State) {
	s.Step("Check audio route", shell("dumpsys", "audio"), suite.Expect("Devices:"))
}

func bluetoothAudioRouting(s *suite.State) {
	state := s.Step("Check Bluetooth support", shell("cmd", "bluetooth_manager", "isEnabled"))
	if !strings.Contains(strings.ToLower(state), "true") {
		s.Step("Enable Bluetooth", shell("svc", "bluetooth", "enable"))
		s.Sleep(3 * time.Second)
	}
	s.Step("Check BT audio state", shell("dumpsys", "audio"), suite.ExpectAny("BT", "Bluetooth"))
}

func playbackScreenOff(s *suite.State) {
	s.Step("Start media", viewMedia(sampleTrack, "audio/*"))
	s.Sleep(2 * time.Second)
	s.Step("Turn off screen", shell("input", "keyevent", "26"))
}

func voiceRecording(s *suite.State) {
	s.Step("Launch Voice Recorder", shell("am", "start", "-a", "android.provider.MediaStore.RECORD_SOUND"))
}

func notificationOverAudio(s *suite.State) {
	s.Step("Play media", viewMedia(sampleTrack, "audio/*"))
	s.Sleep(2 * time.Second)
	s.Step("Trigger notification", shell("cmd", "notification", "post", "test_channel", "Test", "This is a test notification"))
}

func muteMedia(s *suite.State) {
	s.Step("Mute media", shell("media", "volume", "--stream", "3", "--set", "0"))
}

func audioFocusConflict(s *suite.State) {
	s.Step("Simulate App A playing media", viewMedia("/sdcard/Music/app_a.mp3", "audio/*"))
	s.Sleep(2 * time.Second)
	s.Step("Simulate App B playing media", viewMedia("/sdcard/Music/app_b.mp3", "audio/*"))
}

func audioAfterReboot(s *suite.State) {
	s.Step("Reboot device", []string{"reboot"})
	s.Sleep(60 * time.Second)
	s.Step("Check audio service", shell("dumpsys", "audio"))
}

func alarmInSilentMode(s *suite.State) {
	if !shellGranted(s, "WRITE_SECURE_SETTINGS") {
		s.Skipf("WRITE_SECURE_SETTINGS permission not granted to shell")
	}
	s.Step("Enable DND", shell("settings", "put", "global", "zen_mode", "1"))
	s.Step("Set alarm", shell("am", "start", "-a", "android.intent.action.SET_ALARM",
		"--ei", "android.intent.extra.alarm.HOUR", "7",
		"--ei", "android.intent.extra.alarm.MINUTES", "30",
		"--ez", "android.intent.extra.alarm.SKIP_UI", "true"))
}

func btAudioRoute(s *suite.State) {
	s.Step("Dump audio state", shell("dumpsys", "audio"), suite.ExpectAny("A2DP", "Bluetooth"))
	s.Step("Dump BT manager", shell("dumpsys", "bluetooth_manager"))
}

func mediaResumeAfterCall(s *suite.State) {
	if !shellGranted(s, "CALL_PHONE") {
		s.Skipf("CALL_PHONE permission not granted to shell")
	}
	s.Step("Play media", viewMedia(sampleTrack, "audio/*"))
	s.Sleep(2 * time.Second)
	s.Step("Simulate call", shell("am", "start", "-a", "android.intent.action.CALL", "-d", "tel:12345"))
	s.Sleep(2 * time.Second)
	s.Step("End call", shell("input", "keyevent", "KEYCODE_ENDCALL"))
	s.Sleep(time.Second)
	s.Step("Check media state", shell("dumpsys", "audio"), suite.Expect("playing"), suite.IgnoreCase())
}

func mediaResumeScreenOn(s *suite.State) {
	s.Step("Turn off screen", shell("input", "keyevent", "26"))
	s.Sleep(2 * time.Second)
	s.Step("Turn on screen", shell("input", "keyevent", "26"))
	s.Sleep(time.Second)
	s.Step("Check media state", shell("dumpsys", "audio"), suite.Expect("playing"), suite.IgnoreCase())
}
