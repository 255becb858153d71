// Package validator runs the external wayvibes binary against a staged pack.
// wayvibes has no dry-run mode: it loads the pack and, when the pack is good,
// detaches a background player. The adapter therefore compares the newest
// wayvibes process before and after the run and stops any new one.
package validator

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
)

// DefaultBinary is the validator looked up on PATH.
const DefaultBinary = "wayvibes"

// pipeGrace bounds how long Wait keeps reading stderr after the validator
// exits, in case a detached child inherited the pipe.
const pipeGrace = 2 * time.Second

// maxStderr caps the stderr excerpt included in error messages.
const maxStderr = 2048

// Validator checks staged packs with the wayvibes binary.
type Validator struct {
	// Binary is a command name or path. Empty means DefaultBinary.
	Binary string

	// Timeout bounds a single run. Zero waits indefinitely.
	Timeout time.Duration

	// Procs is used to find and stop background instances. Nil uses the
	// system process table.
	Procs procs.Table
}

// New returns a validator for binary with the system process table.
func New(binary string) *Validator {
	return &Validator{Binary: binary, Procs: procs.System{}}
}

func (v *Validator) binary() string {
	if strings.TrimSpace(v.Binary) == "" {
		return DefaultBinary
	}
	return v.Binary
}

func (v *Validator) table() procs.Table {
	if v.Procs == nil {
		return procs.System{}
	}
	return v.Procs
}

// CheckInstalled resolves the validator binary, returning ErrDependencyMissing
// when it is absent.
func (v *Validator) CheckInstalled() (string, error) {
	path, err := exec.LookPath(v.binary())
	if err != nil {
		return "", &packerr.Error{
			Kind: packerr.ErrDependencyMissing,
			Op:   "validator",
			Msg:  fmt.Sprintf("%s is not installed or not on PATH; install it to import sound packs", v.binary()),
			Err:  err,
		}
	}
	return path, nil
}

// Validate runs the validator against dir. normalized marks packs whose
// directory structure was flattened during import, which is mentioned in
// the rejection message.
func (v *Validator) Validate(ctx context.Context, dir string, normalized bool) error {
	path, err := v.CheckInstalled()
	if err != nil {
		return err
	}

	log := logging.Get("validator")
	name := filepath.Base(path)
	table := v.table()

	before, hadBefore, err := procs.Newest(ctx, table, name)
	if err != nil {
		log.Warn("process lookup failed before validation", "error", err)
	}

	runCtx := ctx
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, dir, "-v", "0.0", "--background")
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace

	log.Debug("running validator", "binary", path, "dir", dir)
	runErr := cmd.Run()
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		runErr = nil
	}

	var child int32
	if cmd.Process != nil {
		child = int32(cmd.Process.Pid)
	}
	v.stopSpawned(ctx, table, name, before, hadBefore, child)

	if runErr == nil {
		log.Debug("validator accepted pack", "dir", dir)
		return nil
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return packerr.IO("validator", fmt.Errorf("%s did not finish: %w", name, ctxErr))
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return packerr.IO("validator", runErr)
	}

	log.Info("validator rejected pack", "dir", dir, "exit", exitErr.ExitCode())
	return &packerr.Error{
		Kind: packerr.ErrInvalidPack,
		Op:   "validate",
		Msg:  rejection(name, exitErr.ExitCode(), stderr.String(), normalized),
	}
}

// stopSpawned terminates a validator instance that was not running before
// the check. The exec'd child itself is excluded; it has already exited.
func (v *Validator) stopSpawned(ctx context.Context, table procs.Table, name string, before procs.Proc, hadBefore bool, child int32) {
	log := logging.Get("validator")

	after, ok, err := procs.Newest(ctx, table, name)
	if err != nil {
		log.Warn("process lookup failed after validation", "error", err)
		return
	}
	if !ok || after.PID == child {
		return
	}
	if hadBefore && (after.PID == before.PID || after.Created < before.Created) {
		return
	}

	if err := table.Terminate(ctx, after.PID); err != nil {
		log.Warn("failed to stop background validator", "pid", after.PID, "error", err)
		return
	}
	log.Debug("stopped background validator", "pid", after.PID)
}

func rejection(name string, code int, stderr string, normalized bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rejected the sound pack (exit status %d)", name, code)

	detail := strings.TrimSpace(stderr)
	if len(detail) > maxStderr {
		detail = detail[:maxStderr] + "..."
	}
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if normalized {
		b.WriteString("; the archive's folders were flattened to put config.json at the pack root, so the pack structure may need to be fixed by hand")
	}
	return b.String()
}
