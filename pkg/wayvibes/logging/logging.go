// Package logging is the shared component logger for wayvibes-ui. Loggers
// obtained before Init write nowhere, so library packages can log freely
// whether or not the CLI has configured a destination.
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("importer").Info("pack imported", "id", id)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a log severity.
type Level int

// Severities, least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned for an unrecognized level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name. "warning" is accepted as an alias.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	// Rotation controls when the log file is rolled over.
	Rotation RotationConfig

	// Components overrides Level per component name (e.g. "validator": "debug").
	Components map[string]string

	// ConsoleLevel mirrors records at or above this level to stderr.
	// Empty disables the console.
	ConsoleLevel string
}

// DefaultLogPath returns $XDG_STATE_HOME/wayvibes-ui/wayvibes-ui.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "wayvibes-ui", "wayvibes-ui.log")
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}

// Logger is a named component logger. It writes to the log file and,
// when enabled, to stderr.
type Logger struct {
	file    *log.Logger
	console *log.Logger
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.file.Debug(msg, keyvals...)
	if l.console != nil {
		l.console.Debug(msg, keyvals...)
	}
}

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.file.Info(msg, keyvals...)
	if l.console != nil {
		l.console.Info(msg, keyvals...)
	}
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.file.Warn(msg, keyvals...)
	if l.console != nil {
		l.console.Warn(msg, keyvals...)
	}
}

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.file.Error(msg, keyvals...)
	if l.console != nil {
		l.console.Error(msg, keyvals...)
	}
}

// With returns a child logger that adds keyvals to every record.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	child := &Logger{file: l.file.With(keyvals...)}
	if l.console != nil {
		child.console = l.console.With(keyvals...)
	}
	return child
}

type registry struct {
	mu         sync.RWMutex
	ready      bool
	writer     *RotatingWriter
	level      Level
	overrides  map[string]Level
	console    bool
	consoleLvl Level
	loggers    map[string]*Logger
}

var global = &registry{
	loggers:   make(map[string]*Logger),
	overrides: make(map[string]Level),
}

// Init opens the log file and rebuilds the cached loggers. Callers should
// fetch loggers with Get at the point of use rather than holding them across
// Init. Calling Init again replaces the previous configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	overrides := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		lvl, err := ParseLevel(name)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		overrides[comp] = lvl
	}

	var consoleLvl Level
	console := cfg.ConsoleLevel != ""
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.overrides = overrides
	global.console = console
	global.consoleLvl = consoleLvl
	global.ready = true

	for name := range global.loggers {
		global.loggers[name] = global.build(name)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	l, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return l
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[component]; ok {
		return l
	}
	l = global.build(component)
	global.loggers[component] = l
	return l
}

// build must be called with r.mu held.
func (r *registry) build(component string) *Logger {
	level := r.level
	if lvl, ok := r.overrides[component]; ok {
		level = lvl
	}

	if !r.ready {
		return &Logger{file: log.NewWithOptions(io.Discard, log.Options{Prefix: component})}
	}

	l := &Logger{
		file: log.NewWithOptions(r.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if r.console {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           r.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          component,
		})
	}
	return l
}

// Close flushes and closes the log file. Loggers fetched with Get after Close
// discard their output until Init is called again.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.ready {
		return nil
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	global.ready = false
	global.overrides = make(map[string]Level)
	global.console = false
	global.loggers = make(map[string]*Logger)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}
