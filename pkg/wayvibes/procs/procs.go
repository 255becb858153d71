// Package procs looks up and terminates processes by executable name. The
// validator and the player both start wayvibes, which detaches into the
// background, so neither can rely on the pid of the process it launched.
package procs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v4/process"
)

// Proc identifies a running process.
type Proc struct {
	PID int32
	// Created is the start time in Unix milliseconds.
	Created int64
}

// Table queries and signals processes.
type Table interface {
	// Find returns every process whose name is exactly name, oldest first.
	Find(ctx context.Context, name string) ([]Proc, error)

	// Terminate asks pid to exit. A process that is already gone is not an error.
	Terminate(ctx context.Context, pid int32) error
}

// Newest returns the most recently started process named name, if any.
func Newest(ctx context.Context, t Table, name string) (Proc, bool, error) {
	found, err := t.Find(ctx, name)
	if err != nil || len(found) == 0 {
		return Proc{}, false, err
	}
	return found[len(found)-1], true, nil
}

// System is the Table backed by the operating system's process list.
type System struct{}

// Find implements Table.
func (System) Find(ctx context.Context, name string) ([]Proc, error) {
	all, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	var out []Proc
	for _, p := range all {
		// Processes can exit between listing and inspection.
		pname, err := p.NameWithContext(ctx)
		if err != nil || pname != name {
			continue
		}
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, Proc{PID: p.Pid, Created: created})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].PID < out[j].PID
	})
	return out, nil
}

// Terminate implements Table.
func (System) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return nil
		}
		return fmt.Errorf("terminating process %d: %w", pid, err)
	}
	return nil
}

// TerminateAll terminates every process named name and returns how many
// were signalled.
func TerminateAll(ctx context.Context, t Table, name string) (int, error) {
	found, err := t.Find(ctx, name)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, p := range found {
		if err := t.Terminate(ctx, p.PID); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
