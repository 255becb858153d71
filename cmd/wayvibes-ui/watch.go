package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/output"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-list sound packs whenever the packs directory changes",
	Long: `Watch the packs directory and print the pack list each time a pack is
added, removed or has its config.json edited. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchFormat   string
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().StringVarP(&watchFormat, "output", "o", "table",
		"output format ("+strings.Join(output.Available(), ", ")+")")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before re-listing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	formatter, err := output.Get(watchFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(e.store.Root(), watchDebounce)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", e.store.Root(), err)
	}
	defer w.Close()

	render := func() error {
		packs, err := e.svc.ListPacks()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		result := &output.Result{
			Packs:    packs,
			ActiveID: e.svc.Settings().Active(),
			Root:     e.store.Root(),
		}
		if err := formatter.Format(&buf, result); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	if err := render(); err != nil {
		return err
	}
	printInfo(cmd.ErrOrStderr(), "%s", output.MutedStyle.Render("Watching "+w.Root()+" (Ctrl-C to stop)"))

	for batch := range w.Changes(ctx) {
		for _, ev := range batch {
			printVerbose("%s %s", ev.Op, ev.Path)
		}
		// Another invocation may have switched the active pack.
		if _, err := e.svc.Prefs.Reload(); err != nil {
			printError(cmd.ErrOrStderr(), "%v", err)
		}
		if err := render(); err != nil {
			printError(cmd.ErrOrStderr(), "%v", err)
		}
	}
	return nil
}
