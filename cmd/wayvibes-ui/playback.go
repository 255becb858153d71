package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/app"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/output"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/validator"
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show or set the playback volume",
	Long: `Show or set the playback volume.

The level is a number from 0 to 1, or a percentage such as 70%.
Values outside the range are clamped. Playback restarts with the new volume
when a pack is active and playback is not paused.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause or resume playback",
	Args:  cobra.NoArgs,
	RunE:  runPause,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show player state, settings and dependencies",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusFormat string

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "output", "o", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(volumeCmd, pauseCmd, stopCmd, statusCmd)
}

// parseVolume accepts "0.7", "70%" or "70" (treated as a percentage when
// above 1).
func parseVolume(s string) (float64, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", s)
	}
	if percent || v > 1 {
		v /= 100
	}
	return app.Clamp(v), nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	if len(args) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%.0f%%\n", e.svc.Settings().Volume*100)
		return nil
	}

	v, err := parseVolume(args[0])
	if err != nil {
		return err
	}
	v, err = e.svc.SetVolume(cmd.Context(), v)
	if err != nil {
		return err
	}
	printInfo(cmd.OutOrStdout(), "Volume: %.0f%%", v*100)
	return nil
}

func runPause(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	paused, err := e.svc.TogglePause(cmd.Context())
	if err != nil {
		return err
	}
	if paused {
		printInfo(cmd.OutOrStdout(), "Paused")
	} else {
		printInfo(cmd.OutOrStdout(), "Resumed")
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.svc.StopPlayback(cmd.Context()); err != nil {
		return err
	}
	printInfo(cmd.OutOrStdout(), "Stopped")
	return nil
}

// statusReport is the structured form of the status command.
type statusReport struct {
	app.Status   `yaml:",inline"`
	Dependencies []validator.Status `json:"dependencies" yaml:"dependencies"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.svc.Status(cmd.Context())
	if err != nil {
		return err
	}
	report := statusReport{
		Status:       st,
		Dependencies: validator.CheckBinaries(validator.Requirements(e.cfg.Validator.Binary, e.cfg.Player.Binary)),
	}

	out := cmd.OutOrStdout()
	switch statusFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown status format: %s", statusFormat)
	}

	label := output.LabelStyle.Render
	player := output.ErrorStyle.Render("not installed")
	switch {
	case st.Player.Running && st.Player.PID != nil:
		player = output.SuccessStyle.Render(fmt.Sprintf("running (pid %d)", *st.Player.PID))
	case st.Player.Installed:
		player = output.WarningStyle.Render("stopped")
	}
	active := output.MutedStyle.Render("none")
	if st.Active != nil {
		active = fmt.Sprintf("%s (%s)", st.Active.Name, st.Active.ID)
	}

	fmt.Fprintf(out, "%s %s\n", label("Player: "), player)
	fmt.Fprintf(out, "%s %s\n", label("Active: "), active)
	fmt.Fprintf(out, "%s %.0f%%\n", label("Volume: "), st.Settings.Volume*100)
	fmt.Fprintf(out, "%s %t\n", label("Paused: "), st.Settings.Paused)
	fmt.Fprintf(out, "%s %d\n", label("Packs:  "), st.Packs)

	fmt.Fprintln(out)
	for _, dep := range report.Dependencies {
		mark := output.SuccessStyle.Render("ok")
		detail := dep.Path
		if !dep.Available {
			mark = output.ErrorStyle.Render("missing")
			if dep.Optional {
				mark = output.WarningStyle.Render("missing (optional)")
			}
			detail = dep.Detail
		}
		fmt.Fprintf(out, "%-10s %s  %s\n", dep.Name, mark, output.MutedStyle.Render(detail))
	}
	return nil
}
