package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/archive"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	PacksDir     string `mapstructure:"packs_dir"`
	SettingsPath string `mapstructure:"settings_path"`
	Catalog      struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"catalog"`
	History struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"history"`
	Validator struct {
		Binary  string        `mapstructure:"binary"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"validator"`
	Player struct {
		Binary string `mapstructure:"binary"`
	} `mapstructure:"player"`
	Import struct {
		MaxBytes      string        `mapstructure:"max_bytes"`
		Skip          []string      `mapstructure:"skip"`
		StagingMaxAge time.Duration `mapstructure:"staging_max_age"`
	} `mapstructure:"import"`
	Delete struct {
		UseTrash bool `mapstructure:"use_trash"`
	} `mapstructure:"delete"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// The file is $XDG_CONFIG_HOME/wayvibes-ui/config.yaml, falling back to
// $HOME/.config/wayvibes-ui/config.yaml. Environment variables are
// prefixed with WAYVIBES_UI_ (e.g. WAYVIBES_UI_PACKS_DIR).
func Load() (*Config, error) {
	return load(viper.New())
}

// LoadWith is Load on a caller-owned viper instance, so CLI flags bound to
// it take precedence over the file.
func LoadWith(v *viper.Viper) (*Config, error) {
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("WAYVIBES_UI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.PacksDir, &cfg.SettingsPath, &cfg.Catalog.Path, &cfg.History.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("packs_dir", DefaultPacksDir())
	v.SetDefault("settings_path", DefaultSettingsPath())

	v.SetDefault("catalog.enabled", true)
	v.SetDefault("catalog.path", filepath.Join(DataDir(), "catalog"))

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(DataDir(), "history"))
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("validator.binary", DefaultValidatorBinary)
	v.SetDefault("validator.timeout", time.Duration(0))
	v.SetDefault("player.binary", DefaultPlayerBinary)

	v.SetDefault("import.max_bytes", DefaultMaxBytes)
	v.SetDefault("import.skip", archive.DefaultSkip)
	v.SetDefault("import.staging_max_age", DefaultStagingMaxAge)

	v.SetDefault("delete.use_trash", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 14)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.daily", false)
	v.SetDefault("logging.components", map[string]string{
		"importer":  "info",
		"validator": "info",
		"watcher":   "warn",
	})
}

// ArchiveOptions converts the import section into extraction options.
func (c *Config) ArchiveOptions() (archive.Options, error) {
	opts := archive.Options{Skip: c.Import.Skip}
	switch strings.TrimSpace(strings.ToLower(c.Import.MaxBytes)) {
	case "":
	case "unlimited", "none", "-1":
		opts.MaxBytes = -1
	default:
		n, err := types.ParseSize(c.Import.MaxBytes)
		if err != nil {
			return archive.Options{}, fmt.Errorf("import.max_bytes: %w", err)
		}
		opts.MaxBytes = n
	}
	return opts, nil
}

// LogConfig converts the logging section for logging.Init. An invalid
// rotation size falls back to the default.
func (c *Config) LogConfig() logging.Config {
	rotation := logging.DefaultRotationConfig()
	if size, err := types.ParseSize(c.Logging.Rotation.MaxSize); err == nil && size > 0 {
		rotation.MaxSize = size
	}
	rotation.MaxAge = c.Logging.Rotation.MaxAge
	rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	rotation.Daily = c.Logging.Rotation.Daily

	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}
	return logging.Config{
		Level:        c.Logging.Level,
		Path:         path,
		Rotation:     rotation,
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.Console,
	}
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the path of the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns $XDG_DATA_HOME/wayvibes-ui.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultPacksDir returns where installed packs live.
func DefaultPacksDir() string {
	return filepath.Join(DataDir(), "packs")
}

// DefaultSettingsPath returns the settings file next to config.yaml.
func DefaultSettingsPath() string {
	dir, err := ConfigDir()
	if err != nil {
		dir = filepath.Join(xdg.ConfigHome, AppName)
	}
	return filepath.Join(dir, "settings.json")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file and returns its
// path. An existing file is left alone.
func WriteDefault() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	var skip strings.Builder
	for _, pattern := range archive.DefaultSkip {
		fmt.Fprintf(&skip, "    - %q\n", pattern)
	}

	content := fmt.Sprintf(`# wayvibes-ui configuration

# Where installed sound packs live
packs_dir: %s

# Active pack, volume and pause state
settings_path: %s

# Import metadata (archive, size, import time) kept alongside the packs
catalog:
  enabled: true
  path: %s

# Log of imports and deletions
history:
  enabled: true
  path: %s
  retention_days: %d

# Pack validator. A timeout of 0 waits as long as it takes.
validator:
  binary: %s
  timeout: 0s

player:
  binary: %s

import:
  # Largest uncompressed archive accepted ("unlimited" disables the check)
  max_bytes: %s
  # Entries matching these patterns are not extracted
  skip:
%s  # Leftover staging directories older than this are removed on startup
  staging_max_age: %s

delete:
  # Move deleted packs to the system trash instead of removing them
  use_trash: false

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/wayvibes-ui/wayvibes-ui.log)
  path: ""
  # Also log to stderr at this level (empty disables)
  console: ""
  rotation:
    max_size: %s
    max_age: 14       # days
    max_backups: 3
    daily: false
  components:
    importer: info
    validator: info
    watcher: warn
`, DefaultPacksDir(), DefaultSettingsPath(),
		filepath.Join(DataDir(), "catalog"), filepath.Join(DataDir(), "history"), DefaultRetentionDays,
		DefaultValidatorBinary, DefaultPlayerBinary,
		DefaultMaxBytes, skip.String(), DefaultStagingMaxAge, DefaultLogMaxSize)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}
