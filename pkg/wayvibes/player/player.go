// Package player drives the wayvibes playback daemon: it starts it with a
// pack and volume, stops it, and reports whether it is running.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/procs"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// DefaultBinary is the player looked up on PATH.
const DefaultBinary = "wayvibes"

// ErrStartFailed is returned when the player exits with an error.
var ErrStartFailed = errors.New("player failed to start")

const pipeGrace = 2 * time.Second

// Controller starts and stops the player.
type Controller struct {
	Binary string
	Procs  procs.Table
}

// New returns a controller for binary backed by the system process table.
func New(binary string) *Controller {
	return &Controller{Binary: binary, Procs: procs.System{}}
}

func (c *Controller) binary() string {
	if strings.TrimSpace(c.Binary) == "" {
		return DefaultBinary
	}
	return c.Binary
}

func (c *Controller) name() string { return filepath.Base(c.binary()) }

func (c *Controller) table() procs.Table {
	if c.Procs == nil {
		return procs.System{}
	}
	return c.Procs
}

func (c *Controller) lookPath() (string, error) {
	path, err := exec.LookPath(c.binary())
	if err != nil {
		return "", &packerr.Error{
			Kind: packerr.ErrDependencyMissing,
			Op:   "player",
			Msg:  fmt.Sprintf("%s is not installed or not on PATH", c.binary()),
			Err:  err,
		}
	}
	return path, nil
}

// Status reports whether the player is installed and running. The
// player has no version query, so Version stays nil.
func (c *Controller) Status(ctx context.Context) (types.PlayerStatus, error) {
	var st types.PlayerStatus
	if _, err := c.lookPath(); err != nil {
		return st, nil
	}
	st.Installed = true

	p, ok, err := procs.Newest(ctx, c.table(), c.name())
	if err != nil {
		return st, fmt.Errorf("query player process: %w", err)
	}
	if ok {
		pid := p.PID
		st.Running = true
		st.PID = &pid
	}
	return st, nil
}

// Start stops any running instance and launches the player on dir.
// volume is in [0,1]; the player takes a 0-10 scale.
func (c *Controller) Start(ctx context.Context, dir string, volume float64) error {
	path, err := c.lookPath()
	if err != nil {
		return err
	}
	log := logging.Get("player")

	if _, err := c.Stop(ctx); err != nil {
		log.Warn("failed to stop previous player", "error", err)
	}

	level := fmt.Sprintf("%.1f", volume*10)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, dir, "-v", level, "--background")
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace

	log.Info("starting player", "dir", dir, "volume", level)
	err = cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		err = nil
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		log.Error("player failed to start", "error", err, "stderr", detail)
		if detail == "" {
			return fmt.Errorf("%w: %w", ErrStartFailed, err)
		}
		return fmt.Errorf("%w: %s", ErrStartFailed, detail)
	}
	return nil
}

// Stop terminates every running player and returns how many were stopped.
// Nothing running is not an error.
func (c *Controller) Stop(ctx context.Context) (int, error) {
	n, err := procs.TerminateAll(ctx, c.table(), c.name())
	if err != nil {
		return n, fmt.Errorf("stop player: %w", err)
	}
	log := logging.Get("player")
	if n == 0 {
		log.Debug("no running player found")
	} else {
		log.Info("stopped player", "count", n)
	}
	return n, nil
}

// Restart applies a new pack or volume.
func (c *Controller) Restart(ctx context.Context, dir string, volume float64) error {
	return c.Start(ctx, dir, volume)
}
