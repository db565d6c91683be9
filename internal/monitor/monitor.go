// Package monitor reads one gamepad's event stream and classifies raw
// input events as activity or noise.
package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"gamepadd/internal/device"
	"gamepadd/internal/logging"
)

// ErrDeviceGone indicates the device disappeared mid-read. The daemon
// treats it as an implicit hotplug remove.
var ErrDeviceGone = errors.New("device gone")

// GoneEvent reports a device whose read loop failed mid-monitoring.
// Err wraps ErrDeviceGone around the underlying read error.
type GoneEvent struct {
	DevicePath string
	Err        error
}

// ActivityEvent signals that a gamepad produced a meaningful input
// event. Ephemeral: produced here, consumed immediately by the daemon
// loop.
type ActivityEvent struct {
	DevicePath string
	DeviceName string
	Time       time.Time
}

// Source is the raw event stream of one device.
type Source interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Monitor runs the read loop for a single gamepad.
type Monitor struct {
	path    string
	name    string
	vendor  uint16
	product uint16

	src        Source
	classifier *Classifier
	log        *logging.Logger

	// activity receives classified events; gone receives one GoneEvent
	// if the device disappears mid-read.
	activity chan<- ActivityEvent
	gone     chan<- GoneEvent

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// New creates a monitor for an open gamepad.
func New(g *device.Gamepad, deadzone float64, activity chan<- ActivityEvent, gone chan<- GoneEvent, log *logging.Logger) *Monitor {
	m := newMonitor(g.Path, g.Name, g, NewClassifier(g.Axes, deadzone), activity, gone, log)
	m.vendor = g.Vendor
	m.product = g.Product
	return m
}

func newMonitor(path, name string, src Source, classifier *Classifier, activity chan<- ActivityEvent, gone chan<- GoneEvent, log *logging.Logger) *Monitor {
	return &Monitor{
		path:       path,
		name:       name,
		src:        src,
		classifier: classifier,
		log:        log,
		activity:   activity,
		gone:       gone,
		stopped:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Path returns the monitored device node.
func (m *Monitor) Path() string { return m.path }

// Name returns the device name.
func (m *Monitor) Name() string { return m.name }

// ID returns the vendor and product IDs of the device.
func (m *Monitor) ID() (vendor, product uint16) { return m.vendor, m.product }

// Start launches the blocking read loop in its own goroutine so one
// quiet gamepad never starves the others.
func (m *Monitor) Start() {
	go m.readLoop()
}

// Stop closes the device, which unblocks the read loop, and waits for
// it to exit. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		m.src.Close()
	})
	<-m.done
}

func (m *Monitor) readLoop() {
	defer close(m.done)

	m.log.Info("monitor started", "path", m.path, "name", m.name)

	for {
		ev, err := m.src.ReadOne()
		if err != nil {
			select {
			case <-m.stopped:
				// Our own Stop closed the device.
				m.log.Info("monitor stopped", "path", m.path)
			default:
				if errors.Is(err, unix.ENODEV) {
					m.log.Info("device disconnected", "path", m.path, "name", m.name)
				} else {
					m.log.Error("monitor read failed", "path", m.path, "error", err)
				}
				m.gone <- GoneEvent{
					DevicePath: m.path,
					Err:        fmt.Errorf("%w: %v", ErrDeviceGone, err),
				}
			}
			return
		}

		if !m.classifier.IsActivity(ev) {
			continue
		}

		event := ActivityEvent{
			DevicePath: m.path,
			DeviceName: m.name,
			Time:       time.Now(),
		}

		// One pending activity signal is enough to keep the
		// inhibition alive; never block the read loop on a slow
		// consumer.
		select {
		case m.activity <- event:
		default:
		}
	}
}
