package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/procs"
)

// ProcTable is an in-memory procs.Table.
type ProcTable struct {
	mu         sync.Mutex
	procs      map[string][]procs.Proc
	clock      int64
	Terminated []int32

	// OnFind runs at the start of every Find call, outside the lock.
	OnFind func(name string)
}

// NewProcTable returns an empty table.
func NewProcTable() *ProcTable {
	return &ProcTable{procs: make(map[string][]procs.Proc)}
}

// Spawn registers a process named name. Each call starts later than the last.
func (f *ProcTable) Spawn(name string, pid int32) procs.Proc {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock++
	p := procs.Proc{PID: pid, Created: f.clock}
	f.procs[name] = append(f.procs[name], p)
	return p
}

// Find implements procs.Table.
func (f *ProcTable) Find(_ context.Context, name string) ([]procs.Proc, error) {
	if f.OnFind != nil {
		f.OnFind(name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]procs.Proc(nil), f.procs[name]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

// Terminate implements procs.Table.
func (f *ProcTable) Terminate(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Terminated = append(f.Terminated, pid)
	for name, list := range f.procs {
		kept := list[:0]
		for _, p := range list {
			if p.PID != pid {
				kept = append(kept, p)
			}
		}
		f.procs[name] = kept
	}
	return nil
}

// Running reports the pids currently registered under name.
func (f *ProcTable) Running(name string) []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pids []int32
	for _, p := range f.procs[name] {
		pids = append(pids, p.PID)
	}
	return pids
}
