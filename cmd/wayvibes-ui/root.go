package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/output"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "wayvibes-ui",
		Short: "Manage wayvibes keyboard sound packs",
		Long: `wayvibes-ui imports, lists and switches wayvibes sound packs.

Packs are imported from .zip, .tar, .tar.gz/.tgz, .gz, .rar and .7z archives.
Each archive is checked by wayvibes before it is installed; a pack that fails
the check is never left behind.

Examples:
  wayvibes-ui import ~/Downloads/cherry-mx.zip
  wayvibes-ui list -o json
  wayvibes-ui use cherry-mx
  wayvibes-ui volume 0.5
  wayvibes-ui history`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/wayvibes-ui/config.yaml)")
	rootCmd.PersistentFlags().String("packs-dir", "", "directory holding installed packs")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
}

// initConfig binds flags to the global viper instance. Binding happens
// here rather than in init so it survives viper.Reset in tests.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	_ = viper.BindPFlag("packs_dir", rootCmd.PersistentFlags().Lookup("packs-dir"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), "%s", importer.Describe(err))
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(w io.Writer, format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// printError prints an error message.
func printError(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, output.ErrorStyle.Render("Error:")+" "+fmt.Sprintf(format, args...))
}
