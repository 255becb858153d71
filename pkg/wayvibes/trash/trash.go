// Package trash sends deleted sound packs to the desktop trash so an
// accidental delete can be undone from the file manager. When no trash tool
// works the pack is removed outright.
package trash

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
)

// MethodRemoved is reported when the path was deleted instead of trashed.
const MethodRemoved = "removed"

// defaultTimeout bounds each trash tool invocation.
const defaultTimeout = 30 * time.Second

// Tool is an external command able to trash one path.
type Tool struct {
	// Name is looked up on PATH.
	Name string

	// Args builds the arguments for path.
	Args func(path string) []string
}

// DefaultTools returns the trash tools for the running OS, in preference order.
func DefaultTools() []Tool {
	switch runtime.GOOS {
	case "darwin":
		return []Tool{{
			Name: "osascript",
			Args: func(p string) []string {
				return []string{"-e", fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, p)}
			},
		}}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []Tool{
			{Name: "gio", Args: func(p string) []string { return []string{"trash", p} }},
			{Name: "trash-put", Args: func(p string) []string { return []string{p} }},
			{Name: "kioclient5", Args: func(p string) []string { return []string{"move", p, "trash:/"} }},
		}
	default:
		return nil
	}
}

// Bin moves paths to the trash with the first tool that succeeds.
type Bin struct {
	Tools   []Tool
	Timeout time.Duration
}

// Move trashes path and reports which tool did it, or MethodRemoved after a
// permanent delete.
func Move(ctx context.Context, path string) (string, error) {
	return Bin{Tools: DefaultTools()}.Move(ctx, path)
}

// Move trashes path and reports the method used.
func (b Bin) Move(ctx context.Context, path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		return "", fmt.Errorf("cannot trash %q: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	log := logging.Get("trash")
	for _, tool := range b.Tools {
		bin, err := exec.LookPath(tool.Name)
		if err != nil {
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := exec.CommandContext(runCtx, bin, tool.Args(abs)...).CombinedOutput()
		cancel()

		// Some tools exit zero without doing anything; trust the filesystem.
		if _, statErr := os.Lstat(abs); err == nil && os.IsNotExist(statErr) {
			log.Debug("moved to trash", "path", abs, "tool", tool.Name)
			return tool.Name, nil
		}
		log.Debug("trash tool failed", "tool", tool.Name, "error", err, "output", string(out))
	}

	if err := os.RemoveAll(abs); err != nil {
		return "", fmt.Errorf("deleting %q: %w", abs, err)
	}
	log.Debug("no trash tool available, removed", "path", abs)
	return MethodRemoved, nil
}
