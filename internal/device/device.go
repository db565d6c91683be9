// Package device discovers gamepad-class input devices under /dev/input
// and observes hotplug add/remove notifications.
package device

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/holoplot/go-evdev"
)

// ErrDeviceAccess indicates the input device tree cannot be read at
// all, typically because the process lacks membership in the input
// group. Fatal at startup: with no readable devices there is nothing
// to monitor.
var ErrDeviceAccess = errors.New("cannot access input devices")

// ErrNotGamepad indicates an input device that is not gamepad-class.
var ErrNotGamepad = errors.New("not a gamepad device")

const inputDir = "/dev/input"

// openRetries bounds how long a freshly hotplugged node is retried
// while udev applies its access rules.
const (
	openRetries    = 5
	openRetryDelay = 200 * time.Millisecond
)

// AxisRange holds the kernel-reported range for one absolute axis,
// captured at open time for deadzone scaling.
type AxisRange struct {
	Min  int32
	Max  int32
	Flat int32
}

// Gamepad is one open gamepad-class input device.
type Gamepad struct {
	// Path is the event node, e.g. /dev/input/event7.
	Path string

	// Name is the kernel-reported device name.
	Name string

	// Vendor and Product identify the hardware.
	Vendor  uint16
	Product uint16

	// Axes maps absolute axis codes to their ranges.
	Axes map[evdev.EvCode]AxisRange

	dev *evdev.InputDevice
}

// ReadOne blocks until the next raw input event from the device.
func (g *Gamepad) ReadOne() (*evdev.InputEvent, error) {
	return g.dev.ReadOne()
}

// Close releases the device node. Closing also unblocks a concurrent
// ReadOne.
func (g *Gamepad) Close() error {
	return g.dev.Close()
}

// Open opens the event node at path and verifies it is gamepad-class.
// Returns ErrNotGamepad for other input devices (keyboards, mice).
func Open(path string) (*Gamepad, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if !isGamepad(dev) {
		dev.Close()
		return nil, ErrNotGamepad
	}

	name, err := dev.Name()
	if err != nil {
		name = filepath.Base(path)
	}

	g := &Gamepad{
		Path: path,
		Name: name,
		Axes: make(map[evdev.EvCode]AxisRange),
		dev:  dev,
	}

	if id, err := dev.InputID(); err == nil {
		g.Vendor = id.Vendor
		g.Product = id.Product
	}

	if infos, err := dev.AbsInfos(); err == nil {
		for code, info := range infos {
			g.Axes[code] = AxisRange{
				Min:  info.Minimum,
				Max:  info.Maximum,
				Flat: info.Flat,
			}
		}
	}

	return g, nil
}

// openRetry opens a hotplugged node, retrying while udev settles the
// node's ownership and mode.
func openRetry(path string) (*Gamepad, error) {
	var lastErr error
	for i := 0; i < openRetries; i++ {
		g, err := Open(path)
		if err == nil {
			return g, nil
		}
		if errors.Is(err, ErrNotGamepad) {
			return nil, err
		}
		lastErr = err
		time.Sleep(openRetryDelay)
	}
	return nil, lastErr
}

// isGamepad reports whether the device advertises both absolute axes
// and at least one key code in the joystick/gamepad button range.
func isGamepad(dev *evdev.InputDevice) bool {
	hasAbs := false
	hasKey := false
	for _, t := range dev.CapableTypes() {
		switch t {
		case evdev.EV_ABS:
			hasAbs = true
		case evdev.EV_KEY:
			hasKey = true
		}
	}
	if !hasAbs || !hasKey {
		return false
	}

	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		if isGamepadButton(code) {
			return true
		}
	}
	return false
}

// isGamepadButton reports whether code lies in the BTN_JOYSTICK..
// BTN_THUMBR range the kernel reserves for joysticks and gamepads.
func isGamepadButton(code evdev.EvCode) bool {
	return code >= evdev.BTN_JOYSTICK && code <= evdev.BTN_THUMBR
}

// isEventNode reports whether name looks like an evdev node
// ("event12"). The joystick js* nodes carry the legacy interface and
// are ignored.
func isEventNode(name string) bool {
	suffix, ok := strings.CutPrefix(name, "event")
	if !ok || suffix == "" {
		return false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
