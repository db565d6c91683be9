package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"gamepadd/internal/logging"
)

// Action distinguishes hotplug notifications.
type Action int

const (
	// ActionAdd means a gamepad device node appeared.
	ActionAdd Action = iota
	// ActionRemove means a device node disappeared.
	ActionRemove
)

// Event is one hotplug notification. Gamepad is set only for
// ActionAdd; it is already open and classified.
type Event struct {
	Action  Action
	Path    string
	Gamepad *Gamepad
}

// Watcher discovers present gamepads and watches /dev/input for
// hotplug changes via inotify.
type Watcher struct {
	log     *logging.Logger
	include []string
	exclude []string

	mu     sync.Mutex
	fd     int
	events chan Event
}

// NewWatcher creates a watcher. Include and exclude are glob patterns
// matched against kernel device names.
func NewWatcher(include, exclude []string, log *logging.Logger) *Watcher {
	return &Watcher{
		log:     log,
		include: include,
		exclude: exclude,
		fd:      -1,
	}
}

// Enumerate returns the currently present gamepad devices, open and
// ready to monitor. Per-device open failures are logged and skipped;
// only failure to read the directory itself is returned, wrapped as
// ErrDeviceAccess.
func (w *Watcher) Enumerate() ([]*Gamepad, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceAccess, err)
	}

	var pads []*Gamepad
	for _, entry := range entries {
		if entry.IsDir() || !isEventNode(entry.Name()) {
			continue
		}
		path := filepath.Join(inputDir, entry.Name())

		g, err := Open(path)
		if err != nil {
			if !errors.Is(err, ErrNotGamepad) {
				w.log.Warn("skipping unreadable input device", "path", path, "error", err)
			}
			continue
		}
		if !w.nameAllowed(g.Name) {
			w.log.Debug("gamepad excluded by name filter", "path", path, "name", g.Name)
			g.Close()
			continue
		}
		pads = append(pads, g)
	}

	return pads, nil
}

// nameAllowed applies the include/exclude glob filters.
func (w *Watcher) nameAllowed(name string) bool {
	for _, pattern := range w.exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return false
		}
	}
	if len(w.include) == 0 {
		return true
	}
	for _, pattern := range w.include {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Watch starts observing /dev/input and returns the notification
// channel. The sequence is infinite and non-restartable: the channel
// is closed when ctx is cancelled or the watch fails.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	// IN_ATTRIB catches udev applying the access mode after the node
	// is created; nodes are often unopenable at IN_CREATE time.
	if _, err := unix.InotifyAddWatch(fd, inputDir, unix.IN_CREATE|unix.IN_DELETE|unix.IN_ATTRIB); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify watch %s: %w", inputDir, err)
	}

	w.mu.Lock()
	w.fd = fd
	w.events = make(chan Event, 16)
	w.mu.Unlock()

	// Closing the fd unblocks the read loop on cancellation.
	go func() {
		<-ctx.Done()
		w.mu.Lock()
		if w.fd >= 0 {
			unix.Close(w.fd)
			w.fd = -1
		}
		w.mu.Unlock()
	}()

	go w.readLoop(fd)

	return w.events, nil
}

// readLoop parses inotify records and emits hotplug events.
func (w *Watcher) readLoop(fd int) {
	defer close(w.events)

	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			// EBADF after cancellation closed the fd.
			return
		}

		var offset uint32
		for offset+unix.SizeofInotifyEvent <= uint32(n) {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+raw.Len]
			offset += unix.SizeofInotifyEvent + raw.Len

			name := string(trimNul(nameBytes))
			if !isEventNode(name) {
				continue
			}
			w.handleNode(raw.Mask, filepath.Join(inputDir, name))
		}
	}
}

// handleNode reacts to one inotify record for an event node.
func (w *Watcher) handleNode(mask uint32, path string) {
	switch {
	case mask&unix.IN_DELETE != 0:
		w.events <- Event{Action: ActionRemove, Path: path}

	case mask&(unix.IN_CREATE|unix.IN_ATTRIB) != 0:
		g, err := openRetry(path)
		if err != nil {
			if !errors.Is(err, ErrNotGamepad) {
				// Not fatal to the daemon: report and skip the device.
				w.log.Warn("cannot open hotplugged device", "path", path, "error", err)
			}
			return
		}
		if !w.nameAllowed(g.Name) {
			g.Close()
			return
		}
		w.events <- Event{Action: ActionAdd, Path: path, Gamepad: g}
	}
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
