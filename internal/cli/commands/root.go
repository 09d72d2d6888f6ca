// Package commands implements the CLI surface
package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parcel",
		Short: "Incremental web bundler",
		Long: color.CyanString(`Parcel - incremental web bundler

Parcel builds a dependency graph from your entry files, transforms each
asset through a plugin pipeline, and packages the result into bundles.
Builds are incremental: every output is cached by content, and a change
re-processes only the assets it invalidates.

Features:
  • Content-addressed build cache (memory, LRU, or Redis)
  • Tree shaking driven by cross-asset symbol analysis
  • Code splitting at dynamic import boundaries
  • Watch mode with live reload`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewWatchCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the bundler version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)

			titleColor.Print("Parcel version: ")
			valueColor.Println(Version)

			titleColor.Print("Git commit: ")
			valueColor.Println(GitCommit)

			titleColor.Print("Build date: ")
			valueColor.Println(BuildDate)

			titleColor.Print("Go version: ")
			valueColor.Println(goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
