package inhibit

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverDest  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = "/org/freedesktop/ScreenSaver"
	screenSaverIface = "org.freedesktop.ScreenSaver"
)

// cookieToken is the uint32 cookie the ScreenSaver interface hands out.
type cookieToken uint32

func (t cookieToken) String() string {
	return fmt.Sprintf("cookie:%d", uint32(t))
}

// ScreenSaverBackend inhibits idle via the org.freedesktop.ScreenSaver
// interface on the session bus. This is the interface desktop
// environments expose for media players and the like.
type ScreenSaverBackend struct {
	conn *dbus.Conn
}

// NewScreenSaverBackend connects to the session bus.
func NewScreenSaverBackend() (*ScreenSaverBackend, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %v", ErrBusCall, err)
	}
	return &ScreenSaverBackend{conn: conn}, nil
}

// Name implements Backend.
func (b *ScreenSaverBackend) Name() string { return "screensaver" }

// Inhibit calls ScreenSaver.Inhibit(application-name, reason) and
// returns the cookie.
func (b *ScreenSaverBackend) Inhibit(appName, reason string) (Token, error) {
	obj := b.conn.Object(screenSaverDest, screenSaverPath)

	var cookie uint32
	call := obj.Call(screenSaverIface+".Inhibit", 0, appName, reason)
	if err := call.Store(&cookie); err != nil {
		return nil, fmt.Errorf("%w: Inhibit: %v", ErrBusCall, err)
	}

	return cookieToken(cookie), nil
}

// UnInhibit releases the cookie.
func (b *ScreenSaverBackend) UnInhibit(t Token) error {
	cookie, ok := t.(cookieToken)
	if !ok {
		return fmt.Errorf("%w: not a screensaver token: %s", ErrBusCall, t)
	}

	obj := b.conn.Object(screenSaverDest, screenSaverPath)
	if call := obj.Call(screenSaverIface+".UnInhibit", 0, uint32(cookie)); call.Err != nil {
		return fmt.Errorf("%w: UnInhibit: %v", ErrBusCall, call.Err)
	}
	return nil
}

// Close releases the bus connection. The shared session bus connection
// is left open for other users in the process.
func (b *ScreenSaverBackend) Close() error {
	return nil
}
