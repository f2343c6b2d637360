package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

func TestParseDeviceList_Empty(t *testing.T) {
	output := "List of devices attached\n"
	devices := parseDeviceList(output)

	if len(devices) != 0 {
		t.Errorf("expected 0 devices, got %d", len(devices))
	}
}

func TestParseDeviceList_SingleDevice(t *testing.T) {
	output := `List of devices attached
RF8M33XXXXX	device
`
	devices := parseDeviceList(output)

	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	if devices[0].Serial != "RF8M33XXXXX" {
		t.Errorf("expected serial RF8M33XXXXX, got %s", devices[0].Serial)
	}
	if devices[0].State != "device" {
		t.Errorf("expected state device, got %s", devices[0].State)
	}
	if devices[0].Type != "device" {
		t.Errorf("expected type device, got %s", devices[0].Type)
	}
}

func TestParseDeviceList_Emulator(t *testing.T) {
	output := `List of devices attached
emulator-5554	device
`
	devices := parseDeviceList(output)

	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	if devices[0].Serial != "emulator-5554" {
		t.Errorf("expected serial emulator-5554, got %s", devices[0].Serial)
	}
	if devices[0].Type != "emulator" {
		t.Errorf("expected type emulator, got %s", devices[0].Type)
	}
}

func TestParseDeviceList_MultipleDevices(t *testing.T) {
	output := `List of devices attached
emulator-5554	device
RF8M33XXXXX	device
192.168.1.100:5555	device
`
	devices := parseDeviceList(output)

	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(devices))
	}

	// Check each device
	expected := []struct {
		serial string
		typ    string
	}{
		{"emulator-5554", "emulator"},
		{"RF8M33XXXXX", "device"},
		{"192.168.1.100:5555", "device"},
	}

	for i, e := range expected {
		if devices[i].Serial != e.serial {
			t.Errorf("device %d: expected serial %s, got %s", i, e.serial, devices[i].Serial)
		}
		if devices[i].Type != e.typ {
			t.Errorf("device %d: expected type %s, got %s", i, e.typ, devices[i].Type)
		}
	}
}

func TestParseDeviceList_OfflineDevice(t *testing.T) {
	output := `List of devices attached
emulator-5554	offline
RF8M33XXXXX	unauthorized
`
	devices := parseDeviceList(output)

	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	if devices[0].State != "offline" {
		t.Errorf("expected state offline, got %s", devices[0].State)
	}
	if devices[1].State != "unauthorized" {
		t.Errorf("expected state unauthorized, got %s", devices[1].State)
	}
}

func TestParseDeviceList_ExtraWhitespace(t *testing.T) {
	output := `List of devices attached

emulator-5554	device

`
	devices := parseDeviceList(output)

	if len(devices) != 1 {
		t.Errorf("expected 1 device, got %d", len(devices))
	}
}

func TestErrNoDevices(t *testing.T) {
	err := ErrNoDevices
	if err.Error() != "no Android devices connected" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestParseDeviceList_DaemonBanner(t *testing.T) {
	output := `* daemon not running; starting now at tcp:5037
* daemon started successfully
List of devices attached
emulator-5554	device
`
	devices := parseDeviceList(output)

	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].Serial != "emulator-5554" {
		t.Errorf("expected serial emulator-5554, got %s", devices[0].Serial)
	}
}

func TestIsEmulator(t *testing.T) {
	tests := []struct {
		name     string
		serial   string
		expected bool
	}{
		{"valid emulator", "emulator-5554", true},
		{"another emulator", "emulator-5556", true},
		{"physical device", "R5CR50ABCDE", false},
		{"empty serial", "", false},
		{"almost emulator", "emulator", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsEmulator(tt.serial)
			if result != tt.expected {
				t.Errorf("IsEmulator(%q) = %v, want %v", tt.serial, result, tt.expected)
			}
		})
	}
}

func fakeClient(t *testing.T, body string) *adb.Client {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake adb scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "adb")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return adb.New(adb.WithPath(path), adb.WithSerial("ignored"))
}

func TestFirstAvailable_SkipsOffline(t *testing.T) {
	c := fakeClient(t, `[ "$1" = "-s" ] && exit 9
printf 'List of devices attached\nemulator-5554\toffline\nR5CR50ABCDE\tdevice\n'`)

	d, err := FirstAvailable(context.Background(), c)
	if err != nil {
		t.Fatalf("FirstAvailable() error = %v", err)
	}
	if d.Serial != "R5CR50ABCDE" {
		t.Errorf("FirstAvailable() serial = %s, want R5CR50ABCDE", d.Serial)
	}
}

func TestFirstAvailable_NoDevices(t *testing.T) {
	c := fakeClient(t, `echo "List of devices attached"`)

	_, err := FirstAvailable(context.Background(), c)
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("FirstAvailable() error = %v, want ErrNoDevices", err)
	}
}

func TestWaitForAny_Timeout(t *testing.T) {
	c := fakeClient(t, `echo "List of devices attached"`)

	start := time.Now()
	_, err := WaitForAny(context.Background(), c, 150*time.Millisecond, 20*time.Millisecond)
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("WaitForAny() error = %v, want ErrNoDevices", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("WaitForAny() took %v", time.Since(start))
	}
}
