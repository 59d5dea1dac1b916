// Package cmd wires the efiling command-line interface.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Botopia-SAS/ezmig-efiling/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "efiling",
	Short: "E-filing orchestration service",
	Long: `efiling automates submission of immigration forms against the external
government portal: it runs the filing bot, streams progress to watching
clients, and prepares scoped handoff payloads for the browser helper.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A local .env is a developer convenience; absence is fine.
		_ = godotenv.Load()
		return observability.Init(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default: env + built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

// Execute runs the CLI.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}
