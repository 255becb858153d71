package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage wayvibes-ui configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/wayvibes-ui/config.yaml (if set)
  2. ~/.config/wayvibes-ui/config.yaml

Environment variables can override config file settings using the
WAYVIBES_UI_ prefix:
  WAYVIBES_UI_PACKS_DIR=~/packs
  WAYVIBES_UI_VALIDATOR_TIMEOUT=30s
  WAYVIBES_UI_IMPORT_MAX_BYTES=500MiB`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// envOverrides lists the environment variables config show reports.
var envOverrides = []string{
	"packs_dir",
	"settings_path",
	"catalog.enabled",
	"catalog.path",
	"history.enabled",
	"history.path",
	"history.retention_days",
	"validator.binary",
	"validator.timeout",
	"player.binary",
	"import.max_bytes",
	"import.staging_max_age",
	"delete.use_trash",
	"logging.level",
	"logging.console",
}

// envName maps a config key to its environment variable.
func envName(key string) string {
	return "WAYVIBES_UI_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		if _, statErr := os.Stat(configFile); statErr == nil {
			fmt.Fprintf(out, "Config file: %s\n\n", configFile)
		} else {
			fmt.Fprintln(out, "Config file: (using defaults, no file found)")
			fmt.Fprintln(out)
		}
	} else {
		fmt.Fprintln(out, "Config file: (using defaults, no file found)")
		fmt.Fprintln(out)
	}

	timeout := "none"
	if cfg.Validator.Timeout > 0 {
		timeout = cfg.Validator.Timeout.String()
	}

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "packs_dir:               %s\n", cfg.PacksDir)
	fmt.Fprintf(out, "settings_path:           %s\n", cfg.SettingsPath)
	fmt.Fprintf(out, "catalog.enabled:         %t\n", cfg.Catalog.Enabled)
	fmt.Fprintf(out, "catalog.path:            %s\n", cfg.Catalog.Path)
	fmt.Fprintf(out, "history.enabled:         %t\n", cfg.History.Enabled)
	fmt.Fprintf(out, "history.path:            %s\n", cfg.History.Path)
	fmt.Fprintf(out, "history.retention:       %d days\n", cfg.History.RetentionDays)
	fmt.Fprintf(out, "validator.binary:        %s\n", cfg.Validator.Binary)
	fmt.Fprintf(out, "validator.timeout:       %s\n", timeout)
	fmt.Fprintf(out, "player.binary:           %s\n", cfg.Player.Binary)
	fmt.Fprintf(out, "import.max_bytes:        %s\n", cfg.Import.MaxBytes)
	fmt.Fprintf(out, "import.skip:             %v\n", cfg.Import.Skip)
	fmt.Fprintf(out, "import.staging_max_age:  %s\n", cfg.Import.StagingMaxAge)
	fmt.Fprintf(out, "delete.use_trash:        %t\n", cfg.Delete.UseTrash)
	fmt.Fprintf(out, "logging.level:           %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "logging.path:            %s\n", cfg.LogConfig().Path)

	fmt.Fprintln(out, "\nEnvironment Overrides:")
	fmt.Fprintln(out, "----------------------")
	anyOverrides := false
	for _, key := range envOverrides {
		name := envName(key)
		if val := os.Getenv(name); val != "" {
			fmt.Fprintf(out, "%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Fprintln(out, "(none)")
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		printInfo(out, "Config file already exists: %s", configPath)
		printInfo(out, "Use 'wayvibes-ui config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo(out, "Created default config file: %s", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		var err error
		configPath, err = config.ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}
