package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileRotator handles size-based log file rotation.
type FileRotator struct {
	config *Config
	mu     sync.Mutex
	file   *os.File
	size   int64
}

// NewFileRotator creates a new FileRotator.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{config: cfg}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}

	return r, nil
}

// openFile opens or creates the log file.
func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	return nil
}

// Write implements io.Writer, rotating when the size limit is reached.
func (r *FileRotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	maxBytes := r.config.MaxSize * 1024 * 1024
	if maxBytes > 0 && r.size+int64(len(p)) > maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate renames the current file with a timestamp suffix and opens a
// fresh one. Caller holds the lock.
func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	r.file = nil

	rotated := fmt.Sprintf("%s.%s", r.config.FilePath, time.Now().Format("20060102-150405"))
	if err := os.Rename(r.config.FilePath, rotated); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}

	r.pruneBackups()

	return r.openFile()
}

// pruneBackups removes the oldest rotated files beyond MaxBackups.
func (r *FileRotator) pruneBackups() {
	if r.config.MaxBackups <= 0 {
		return
	}

	matches, err := filepath.Glob(r.config.FilePath + ".*")
	if err != nil || len(matches) <= r.config.MaxBackups {
		return
	}

	// Timestamp suffixes sort chronologically.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-r.config.MaxBackups] {
		_ = os.Remove(old)
	}
}

// Close closes the log file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
