package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// RotationConfig controls log file rollover.
type RotationConfig struct {
	// MaxSize rolls the file once it would exceed this many bytes.
	// Zero uses the default (10 MiB).
	MaxSize int64

	// MaxAge removes rolled files older than this many days. Zero keeps them.
	MaxAge int

	// MaxBackups keeps at most this many rolled files. Zero keeps all.
	MaxBackups int

	// Daily rolls the file on the first write after midnight.
	Daily bool
}

// DefaultRotationConfig returns the rotation settings used by DefaultConfig.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 << 20,
		MaxAge:     14,
		MaxBackups: 3,
		Daily:      false,
	}
}

// errClosed is returned by Write after Close.
var errClosed = errors.New("log writer closed")

// RotatingWriter is an io.WriteCloser that rolls its file over by size or
// day. Writes hold an advisory lock on "<path>.lock" so the GUI and CLI can
// share one log file.
type RotatingWriter struct {
	path   string
	cfg    RotationConfig
	lock   *flock.Flock
	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg, lock: flock.New(path + ".lock")}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rolling the file first when needed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, errClosed
	}

	if w.due(int64(len(p))) {
		if err := w.roll(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := w.lock.Lock(); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = w.lock.Unlock() }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the current file. It is safe to call twice.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	return errors.Join(syncErr, closeErr)
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), f.Close())
	}
	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	return nil
}

func (w *RotatingWriter) due(next int64) bool {
	if w.size > 0 && w.size+next > w.cfg.MaxSize {
		return true
	}
	if w.cfg.Daily {
		y1, m1, d1 := time.Now().Date()
		y2, m2, d2 := w.opened.Date()
		return y1 != y2 || m1 != m2 || d1 != d2
	}
	return false
}

// roll renames the current file to "<base>.<timestamp><ext>" and reopens.
func (w *RotatingWriter) roll() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.backupName(time.Now())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.opened = time.Now()
	w.prune()
	return nil
}

func (w *RotatingWriter) backupName(at time.Time) string {
	ext := filepath.Ext(w.path)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(w.path, ext), at.Format("20060102-150405.000"), ext)
}

// backups lists rolled files for this writer, newest first.
func (w *RotatingWriter) backups() []string {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	matches, err := filepath.Glob(filepath.Join(dir, strings.TrimSuffix(base, ext)+".*"+ext))
	if err != nil {
		return nil
	}

	var out []string
	for _, m := range matches {
		if filepath.Base(m) != base && !strings.HasSuffix(m, ".lock") {
			out = append(out, m)
		}
	}
	// The timestamp format sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// prune applies MaxBackups and MaxAge. Failures are ignored.
func (w *RotatingWriter) prune() {
	cutoff := time.Time{}
	if w.cfg.MaxAge > 0 {
		cutoff = time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	}

	for i, path := range w.backups() {
		drop := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		if !drop && !cutoff.IsZero() {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				drop = true
			}
		}
		if drop {
			_ = os.Remove(path)
		}
	}
}
