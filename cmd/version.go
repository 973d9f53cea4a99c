package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raglet/raglet/internal/app"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("raglet %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Keep the telemetry service version in step with the CLI.
	app.Version = AppVersion
	rootCmd.AddCommand(versionCmd)
}
