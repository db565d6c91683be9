package inhibit

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest  = "org.freedesktop.login1"
	logindPath  = "/org/freedesktop/login1"
	logindIface = "org.freedesktop.login1.Manager"
)

// fdToken is the inhibitor lock file descriptor logind hands out.
// Releasing the inhibition means closing the descriptor.
type fdToken int

func (t fdToken) String() string {
	return fmt.Sprintf("fd:%d", int(t))
}

// LogindBackend takes an idle inhibitor lock from systemd-logind on
// the system bus. Works in headless sessions where no
// org.freedesktop.ScreenSaver provider is running.
type LogindBackend struct {
	conn *dbus.Conn
}

// NewLogindBackend connects to the system bus.
func NewLogindBackend() (*LogindBackend, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %v", ErrBusCall, err)
	}
	return &LogindBackend{conn: conn}, nil
}

// Name implements Backend.
func (b *LogindBackend) Name() string { return "logind" }

// Inhibit calls Manager.Inhibit("idle", who, why, "block") and keeps
// the returned lock descriptor as the token.
func (b *LogindBackend) Inhibit(appName, reason string) (Token, error) {
	obj := b.conn.Object(logindDest, logindPath)

	var fd dbus.UnixFD
	call := obj.Call(logindIface+".Inhibit", 0, "idle", appName, reason, "block")
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("%w: Inhibit: %v", ErrBusCall, err)
	}

	return fdToken(fd), nil
}

// UnInhibit closes the lock descriptor.
func (b *LogindBackend) UnInhibit(t Token) error {
	fd, ok := t.(fdToken)
	if !ok {
		return fmt.Errorf("%w: not a logind token: %s", ErrBusCall, t)
	}
	if err := unix.Close(int(fd)); err != nil {
		return fmt.Errorf("%w: close inhibitor fd: %v", ErrBusCall, err)
	}
	return nil
}

// Close releases the bus connection. The shared system bus connection
// is left open for other users in the process.
func (b *LogindBackend) Close() error {
	return nil
}

// NewBackend constructs the backend selected by name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "logind":
		return NewLogindBackend()
	case "screensaver", "":
		return NewScreenSaverBackend()
	default:
		return nil, fmt.Errorf("unknown inhibit backend %q", name)
	}
}
