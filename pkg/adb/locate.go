package adb

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// androidHome returns the SDK root from the environment, or "".
func androidHome() string {
	if home := os.Getenv("ANDROID_HOME"); home != "" {
		return home
	}
	if root := os.Getenv("ANDROID_SDK_ROOT"); root != "" {
		return root
	}
	return ""
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "adb.exe"
	}
	return "adb"
}

// Locate finds the adb binary: SDK platform-tools first, then PATH.
// Falls back to the bare name so exec reports a useful error.
func Locate() string {
	if home := androidHome(); home != "" {
		candidate := filepath.Join(home, "platform-tools", binaryName())
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	if path, err := exec.LookPath(binaryName()); err == nil {
		return path
	}
	return binaryName()
}
