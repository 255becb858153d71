package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/archive"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/output"
)

var importCmd = &cobra.Command{
	Use:   "import <archive>...",
	Short: "Import sound packs from archives",
	Long: `Import one or more sound pack archives.

Supported formats: ` + strings.Join(archive.SupportedExtensions(), ", ") + `

The archive must contain a config.json. When it is nested inside folders the
folders are flattened so config.json sits at the pack root. The pack is then
checked with wayvibes and installed under a folder named after the pack.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed sound packs",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an installed sound pack",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var pathCmd = &cobra.Command{
	Use:   "path <id>",
	Short: "Print the directory of an installed sound pack",
	Args:  cobra.ExactArgs(1),
	RunE:  runPath,
}

var useCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a sound pack the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runUse,
}

var outputFormat string

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table",
		"output format ("+strings.Join(output.Available(), ", ")+")")

	rootCmd.AddCommand(importCmd, listCmd, deleteCmd, pathCmd, useCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cleanStaging(ctx, e)

	if !getQuiet() && getVerbose() {
		e.importer.OnState = func(s importer.State) {
			fmt.Fprintln(cmd.ErrOrStderr(), output.MutedStyle.Render("  "+s.String()))
		}
	}

	var failed int
	for _, path := range args {
		p, err := e.svc.ImportPack(ctx, path)
		if err != nil {
			failed++
			printError(cmd.ErrOrStderr(), "%s: %s", path, importer.Describe(err))
			continue
		}
		printInfo(out, "%s %s (%s) version %s",
			output.SuccessStyle.Render("Imported"), p.Name, p.ID, p.Version)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d archive(s) failed to import", failed, len(args))
	}
	return nil
}

// cleanStaging removes staging directories left by interrupted imports.
func cleanStaging(ctx context.Context, e *env) {
	maxAge := e.cfg.Import.StagingMaxAge
	if maxAge <= 0 {
		maxAge = importer.DefaultStaleAge
	}
	res := e.importer.CleanStale(ctx, maxAge)
	if len(res.Removed) > 0 {
		printVerbose("removed %d stale staging director(ies)", len(res.Removed))
	}
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	formatter, err := output.Get(outputFormat)
	if err != nil {
		return err
	}

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

func runDelete(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.svc.DeletePack(cmd.Context(), args[0]); err != nil {
		return err
	}
	printInfo(cmd.OutOrStdout(), "Deleted %s", args[0])
	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	dir, err := e.svc.PackPath(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

func runUse(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.svc.SetActivePack(cmd.Context(), args[0]); err != nil {
		return err
	}
	msg := "Active pack: " + args[0]
	if e.svc.Settings().Paused {
		msg += " (paused)"
	}
	printInfo(cmd.OutOrStdout(), "%s", msg)
	return nil
}

// printVerbose prints a message on stderr if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "[DEBUG] "+format+"\n", args...)
	}
}
