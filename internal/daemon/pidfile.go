package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile manages the daemon's pid file so a second instance and the
// control CLI can find (or refuse to race) a running daemon.
type PIDFile struct {
	path string
}

// NewPIDFile creates a pid file manager in the runtime directory.
func NewPIDFile(runtimeDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(runtimeDir, "gamepadd.pid")}
}

// Path returns the pid file location.
func (p *PIDFile) Path() string { return p.path }

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file: %w", err)
	}
	return pid, nil
}

// Write records the current process, refusing if another live daemon
// holds the file. A stale entry from a crashed daemon is replaced.
func (p *PIDFile) Write() error {
	if pid, err := p.Read(); err == nil && pid != os.Getpid() && isProcessRunning(pid) {
		return fmt.Errorf("daemon already running with pid %d", pid)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0600)
}

// Remove deletes the pid file.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// isProcessRunning checks whether a process with the given pid exists.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
