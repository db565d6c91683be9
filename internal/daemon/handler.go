package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gamepadd/internal/ipc"
)

// runtimeDir returns the per-user runtime directory for the pid file
// and control socket.
func runtimeDir() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gamepadd")
}

// handleMessage serves one IPC request. Runs on the server's
// connection goroutines, so it only reads snapshots; transitions stay
// with the run loop.
func (d *Daemon) handleMessage(ctx context.Context, msg *ipc.Message) (*ipc.Message, error) {
	switch msg.Type {
	case ipc.MsgPing:
		return &ipc.Message{Type: ipc.MsgPong, ID: msg.ID}, nil

	case ipc.MsgStatusRequest:
		return ipc.NewMessage(ipc.MsgStatusResponse, msg.ID, d.statusSnapshot(ctx))

	case ipc.MsgDevicesRequest:
		return ipc.NewMessage(ipc.MsgDevicesResponse, msg.ID, d.deviceSnapshot())

	case ipc.MsgReloadConfig:
		if _, err := d.loader.Load(); err != nil {
			return ipc.ErrorMessage(msg.ID, "reload failed: %v", err), nil
		}
		select {
		case d.reloadCh <- d.loader.Config():
		default:
		}
		return &ipc.Message{Type: ipc.MsgReloadAck, ID: msg.ID}, nil

	case ipc.MsgShutdown:
		d.Stop()
		return &ipc.Message{Type: ipc.MsgShutdown, ID: msg.ID}, nil

	default:
		return ipc.ErrorMessage(msg.ID, "unknown request type 0x%04x", uint16(msg.Type)), nil
	}
}

// statusSnapshot assembles the status response.
func (d *Daemon) statusSnapshot(ctx context.Context) *ipc.StatusResponse {
	d.mu.RLock()
	startedAt := d.startedAt
	d.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return &ipc.StatusResponse{
		Version:   d.version,
		PID:       os.Getpid(),
		StartedAt: startedAt,
		Inhibit:   d.ctrl.Snapshot(),
		Devices:   d.deviceSnapshot(),
		Health:    d.checker.Run(checkCtx),
	}
}

// deviceSnapshot lists currently monitored devices, ordered by path.
func (d *Daemon) deviceSnapshot() []ipc.DeviceInfo {
	d.mu.RLock()
	devices := make([]ipc.DeviceInfo, 0, len(d.monitors))
	for path, m := range d.monitors {
		vendor, product := m.ID()
		devices = append(devices, ipc.DeviceInfo{
			Path:    path,
			Name:    m.Name(),
			Vendor:  vendor,
			Product: product,
		})
	}
	d.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}
