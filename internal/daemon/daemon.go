// Package daemon composes the device watcher, per-device activity
// monitors, and the inhibit controller into one event loop.
//
// All blocking sources feed channels into a single select, so a quiet
// gamepad never starves hotplug notifications from an active one, and
// every inhibit-controller transition happens on one goroutine.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gamepadd/internal/config"
	"gamepadd/internal/device"
	"gamepadd/internal/health"
	"gamepadd/internal/inhibit"
	"gamepadd/internal/ipc"
	"gamepadd/internal/logging"
	"gamepadd/internal/monitor"
)

// Daemon is the coordinating process.
type Daemon struct {
	loader  *config.Loader
	log     *logging.Logger
	version string

	backend *inhibit.LazyBackend
	ctrl    *inhibit.Controller
	watcher *device.Watcher
	server  *ipc.Server
	checker *health.Checker
	pidfile *PIDFile

	// Event sources multiplexed by the run loop.
	activity chan monitor.ActivityEvent
	gone     chan monitor.GoneEvent
	reloadCh chan *config.Config
	stopOnce sync.Once
	stopCh   chan struct{}

	// mu guards monitors, cfg, and startedAt against concurrent IPC
	// status reads; all writes happen on the run loop.
	mu           sync.RWMutex
	cfg          *config.Config
	monitors     map[string]*monitor.Monitor
	startedAt    time.Time
	hotplugAlive bool
}

// New creates a daemon from a loaded configuration.
func New(loader *config.Loader, log *logging.Logger, version string) *Daemon {
	return &Daemon{
		loader:   loader,
		log:      log,
		version:  version,
		checker:  health.NewChecker(),
		activity: make(chan monitor.ActivityEvent, 64),
		gone:     make(chan monitor.GoneEvent, 16),
		reloadCh: make(chan *config.Config, 1),
		stopCh:   make(chan struct{}),
		monitors: make(map[string]*monitor.Monitor),
	}
}

// Run enumerates devices, starts all monitoring, and processes events
// until ctx is cancelled or a stop is requested over IPC. The
// inhibit controller's shutdown cleanup runs on every exit path.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.loader.Config()
	d.mu.Lock()
	d.cfg = cfg
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.pidfile = NewPIDFile(runtimeDir())
	if err := d.pidfile.Write(); err != nil {
		return err
	}
	defer d.pidfile.Remove()

	d.backend = inhibit.NewLazyBackend(cfg.Inhibit.Backend)
	d.ctrl = inhibit.NewController(
		d.backend,
		cfg.Inhibit.AppName,
		cfg.Inhibit.Reason,
		cfg.Inhibit.InactivityTimeout(),
		d.log.WithComponent("inhibit"),
	)
	// Deferred LIFO: the controller's final uninhibit must run while
	// the backend connection is still open.
	defer d.backend.Close()
	defer d.ctrl.Shutdown()

	d.watcher = device.NewWatcher(
		cfg.Devices.IncludePatterns,
		cfg.Devices.ExcludePatterns,
		d.log.WithComponent("device"),
	)

	// No readable device tree means nothing can ever be monitored.
	pads, err := d.watcher.Enumerate()
	if err != nil {
		return err
	}
	for _, g := range pads {
		d.addDevice(g)
	}
	d.log.Info("startup enumeration complete", "gamepads", len(pads))

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	// A failed hotplug watch degrades the daemon (no add/remove
	// notifications) but already-attached devices keep working.
	hotplug, err := d.watcher.Watch(watchCtx)
	if err != nil {
		d.log.Error("hotplug watch unavailable", "error", err)
	}
	d.mu.Lock()
	d.hotplugAlive = hotplug != nil
	d.mu.Unlock()

	d.registerHealthChecks()

	if cfg.IPC.Enabled {
		d.server = ipc.NewServer(cfg.IPC.SocketPath, ipc.HandlerFunc(d.handleMessage), d.log.WithComponent("ipc"))
		if err := d.server.Start(); err != nil {
			// The control surface is optional; the daemon's job is
			// inhibition.
			d.log.Error("control socket unavailable", "error", err)
			d.server = nil
		} else {
			defer d.server.Stop()
		}
	}

	d.loader.OnChange(func(cfg *config.Config) {
		select {
		case d.reloadCh <- cfg:
		default:
		}
	})

	d.log.Info("gamepadd running",
		"version", d.version,
		"backend", cfg.Inhibit.Backend,
		"timeout", cfg.Inhibit.InactivityTimeout(),
	)

	for {
		select {
		case <-ctx.Done():
			d.shutdownMonitors()
			return nil

		case <-d.stopCh:
			d.shutdownMonitors()
			return nil

		case ev := <-d.activity:
			if err := d.ctrl.Activity(ev.Time); err != nil {
				d.log.Warn("inhibit call failed, will retry on next activity", "error", err)
			}

		case <-d.ctrl.TimerC():
			if err := d.ctrl.HandleTimeout(time.Now()); err != nil {
				d.log.Warn("uninhibit call failed", "error", err)
			}

		case ev, ok := <-hotplug:
			if !ok {
				hotplug = nil
				d.mu.Lock()
				d.hotplugAlive = false
				d.mu.Unlock()
				continue
			}
			switch ev.Action {
			case device.ActionAdd:
				d.addDevice(ev.Gamepad)
			case device.ActionRemove:
				d.removeDevice(ev.Path)
			}

		case ev := <-d.gone:
			// Equivalent to a hotplug remove for that device.
			d.removeDevice(ev.DevicePath)

		case cfg := <-d.reloadCh:
			d.applyConfig(cfg)
		}
	}
}

// Stop requests shutdown; used by the IPC shutdown handler.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// addDevice starts a monitor for an open gamepad. Duplicate adds
// (inotify reports both create and attrib for a new node) are
// discarded.
func (d *Daemon) addDevice(g *device.Gamepad) {
	d.mu.Lock()
	if _, exists := d.monitors[g.Path]; exists {
		d.mu.Unlock()
		g.Close()
		return
	}
	deadzone := d.cfg.Devices.Deadzone
	m := monitor.New(g, deadzone, d.activity, d.gone, d.log.WithComponent("monitor"))
	d.monitors[g.Path] = m
	d.mu.Unlock()

	m.Start()
}

// removeDevice stops and forgets the monitor for a device node.
func (d *Daemon) removeDevice(path string) {
	d.mu.Lock()
	m, ok := d.monitors[path]
	if ok {
		delete(d.monitors, path)
	}
	d.mu.Unlock()

	if ok {
		m.Stop()
	}
}

// shutdownMonitors unwinds all per-device monitoring. The inhibit
// cleanup itself runs in Run's defers.
func (d *Daemon) shutdownMonitors() {
	d.mu.Lock()
	monitors := make([]*monitor.Monitor, 0, len(d.monitors))
	for _, m := range d.monitors {
		monitors = append(monitors, m)
	}
	d.monitors = make(map[string]*monitor.Monitor)
	d.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
	d.log.Info("monitors stopped", "count", len(monitors))
}

// applyConfig applies the hot-reloadable subset of a changed config.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if cfg.Inhibit.InactivityTimeoutSec != old.Inhibit.InactivityTimeoutSec {
		d.ctrl.SetTimeout(cfg.Inhibit.InactivityTimeout())
		d.log.Info("inactivity timeout updated", "timeout", cfg.Inhibit.InactivityTimeout())
	}
	if cfg.Logging.Level != old.Logging.Level {
		if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			d.log.SetLevel(level)
			d.log.Info("log level updated", "level", cfg.Logging.Level)
		}
	}
	if cfg.Devices.Deadzone != old.Devices.Deadzone {
		// Applies to devices attached from now on.
		d.log.Info("deadzone updated for new devices", "deadzone", cfg.Devices.Deadzone)
	}
	if cfg.Inhibit.Backend != old.Inhibit.Backend || cfg.IPC.SocketPath != old.IPC.SocketPath {
		d.log.Warn("backend and socket changes require a restart")
	}
}

// registerHealthChecks wires the component checks surfaced in status
// output.
func (d *Daemon) registerHealthChecks() {
	d.checker.Register(&health.Component{
		Name:     "bus",
		Critical: false,
		Check: func(ctx context.Context) health.CheckResult {
			if d.backend.Connected() {
				return health.Healthy("connected")
			}
			// Not connected is normal until the first inhibit call.
			return health.CheckResult{
				Status:  health.StatusHealthy,
				Message: "not yet connected",
			}
		},
	})
	d.checker.Register(&health.Component{
		Name:     "hotplug",
		Critical: true,
		Check: func(ctx context.Context) health.CheckResult {
			d.mu.RLock()
			alive := d.hotplugAlive
			d.mu.RUnlock()
			if alive {
				return health.Healthy("watching /dev/input")
			}
			return health.Unhealthy("hotplug watch not running")
		},
	})
	d.checker.Register(&health.Component{
		Name:     "monitors",
		Critical: false,
		Check: func(ctx context.Context) health.CheckResult {
			d.mu.RLock()
			count := len(d.monitors)
			d.mu.RUnlock()
			return health.Healthy(fmt.Sprintf("%d devices monitored", count))
		},
	})
}
