// Package device discovers Android devices attached through adb.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/droidprobe/pkg/adb"
)

// ConnectedDevice represents a device found via ADB.
type ConnectedDevice struct {
	Serial string
	State  string // "device", "offline", "unauthorized"
	Type   string // "emulator" or "device"
}

// Online reports whether adb can talk to the device.
func (d ConnectedDevice) Online() bool {
	return d.State == "device"
}

// IsEmulator checks if a serial belongs to a local emulator.
func IsEmulator(serial string) bool {
	return strings.HasPrefix(serial, "emulator-")
}

// ListDevices returns all connected Android devices.
func ListDevices(ctx context.Context, client *adb.Client) ([]ConnectedDevice, error) {
	// "adb devices" must not be scoped to a serial
	out, err := client.ForSerial("").Run(ctx, "devices")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return parseDeviceList(out), nil
}

// parseDeviceList parses output of "adb devices".
func parseDeviceList(output string) []ConnectedDevice {
	var devices []ConnectedDevice
	lines := strings.Split(output, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		d := ConnectedDevice{
			Serial: parts[0],
			State:  parts[1],
			Type:   "device",
		}

		if IsEmulator(d.Serial) {
			d.Type = "emulator"
		}

		devices = append(devices, d)
	}

	return devices
}

// FirstAvailable returns the first online device, or ErrNoDevices.
func FirstAvailable(ctx context.Context, client *adb.Client) (*ConnectedDevice, error) {
	devices, err := ListDevices(ctx, client)
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		if d.Online() {
			d := d
			return &d, nil
		}
	}

	return nil, ErrNoDevices
}

// WaitForAny polls until a device is online or timeout elapses.
func WaitForAny(ctx context.Context, client *adb.Client, timeout, poll time.Duration) (*ConnectedDevice, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		d, err := FirstAvailable(ctx, client)
		if err == nil {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrNoDevices
		case <-time.After(poll):
		}
	}
}

// ErrNoDevices is returned when no devices are connected.
var ErrNoDevices = &deviceError{"no Android devices connected"}

type deviceError struct {
	msg string
}

func (e *deviceError) Error() string {
	return e.msg
}
