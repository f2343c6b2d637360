package modules

import (
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

const cameraPackage = "com.sec.android.app.camera"

var cameraTable = commandTable{
	Report:    "camera_test_report.csv",
	LogDir:    "camera_logs",
	ADBLogDir: "adb_logs_camera",
	Rows: []tableCase{
		single("TC_CAM_001", "Launch still capture", "shell", "am", "start", "-a", "android.media.action.IMAGE_CAPTURE"),
		single("TC_CAM_002", "Launch front camera", "shell", "am", "start", "-a", "android.media.action.IMAGE_CAPTURE", "--ei", "android.intent.extras.CAMERA_FACING", "1"),
		single("TC_CAM_003", "Launch video capture", "shell", "am", "start", "-a", "android.media.action.VIDEO_CAPTURE"),
		single("TC_CAM_004", "Shutter key", "shell", "input", "keyevent", "27"),
		single("TC_CAM_005", "Diagonal swipe", "shell", "input", "swipe", "1000", "1000", "100", "100"),
		single("TC_CAM_006", "Swipe up", "shell", "input", "swipe", "500", "800", "500", "400"),
		single("TC_CAM_007", "Swipe down", "shell", "input", "swipe", "500", "400", "500", "800"),
		single("TC_CAM_008", "Shutter key again", "shell", "input", "keyevent", "27"),
		single("TC_CAM_009", "Burst shutter", "shell", "input", "keyevent", "27"),
		single("TC_CAM_010", "Tap gallery thumbnail", "shell", "input", "tap", "100", "1800"),
		single("TC_CAM_011", "Tap mode selector", "shell", "input", "tap", "250", "1800"),
		single("TC_CAM_012", "Tap settings", "shell", "input", "tap", "900", "100"),
		single("TC_CAM_013", "Tap flash", "shell", "input", "tap", "800", "100"),
		single("TC_CAM_014", "Tap ratio", "shell", "input", "tap", "1000", "300"),
		single("TC_CAM_015", "Tap timer", "shell", "input", "tap", "1000", "400"),
		single("TC_CAM_016", "Tap switch camera", "shell", "input", "tap", "700", "1800"),
		single("TC_CAM_017", "Tap to focus", "shell", "input", "tap", "600", "1000"),
		single("TC_CAM_018", "Raw key event", "shell", "sendevent", "/dev/input/event1", "1", "330", "1"),
		single("TC_CAM_019", "Tap video mode", "shell", "input", "tap", "350", "1800"),
		single("TC_CAM_020", "Tap photo mode", "shell", "input", "tap", "450", "1800"),
		single("TC_CAM_021", "Tap filters", "shell", "input", "tap", "1000", "100"),
		single("TC_CAM_022", "Force stop camera", "shell", "am", "force-stop", cameraPackage),
		single("TC_CAM_023", "Clear camera data", "shell", "pm", "clear", cameraPackage),
		single("TC_CAM_024", "Launch via monkey", "shell", "monkey", "-p", cameraPackage, "-c", "android.intent.category.LAUNCHER", "1"),
		single("TC_CAM_025", "Dump camera service", "shell", "dumpsys", "media.camera"),
	},
}

func init() {
	suite.AddModule(&suite.Module{
		Name:     "test_camera",
		Desc:     "Camera capture and UI commands",
		Cases:    cameraTable.cases(),
		Interval: 15 * time.Second,
	})
}
