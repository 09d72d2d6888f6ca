package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/motiz88/parcel/internal/cli/config"
	"github.com/motiz88/parcel/internal/cli/ui"
)

var (
	buildJSON    bool
	buildVerbose bool
	buildDist    string
	buildMode    string
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [entries...]",
		Short: "Build the project into bundles",
		Long: `Build the entry files and everything they import into output bundles.

The build process:
  1. Resolution - map import specifiers to files
  2. Transformation - turn each file into one or more assets
  3. Bundling - partition the asset graph at async boundaries
  4. Naming - assign content-hashed output paths
  5. Packaging - write tree-shaken bundle files`,
		Example: `  # Build the entries from parcel.yml
  parcel build

  # Build explicit entries
  parcel build src/index.js src/admin.js

  # Production build to a custom directory
  parcel build --mode production --dist-dir out

  # Output diagnostics as JSON (useful for tooling)
  parcel build --json`,
		RunE: runBuild,
	}

	cmd.Flags().BoolVar(&buildJSON, "json", false, "Output diagnostics in JSON format")
	cmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Show detailed build output")
	cmd.Flags().StringVarP(&buildDist, "dist-dir", "d", "", "Output directory (default: dist)")
	cmd.Flags().StringVar(&buildMode, "mode", "", "Build mode: development or production")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	successColor := color.New(color.FgGreen, color.Bold)
	errorColor := color.New(color.FgRed, color.Bold)
	infoColor := color.New(color.FgCyan)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Entries = args
	}
	if buildDist != "" {
		cfg.DistDir = buildDist
	}
	if buildMode != "" {
		cfg.Mode = buildMode
	}

	root, err := config.GetProjectRoot()
	if err != nil {
		root, _ = os.Getwd()
	}

	logger, err := newLogger(buildVerbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	builder, err := newBuilder(cfg, root, logger)
	if err != nil {
		return err
	}

	if buildVerbose {
		infoColor.Printf("Building %d entr(y/ies) in %s mode\n", len(cfg.Entries), cfg.Mode)
	}

	result, buildErr := builder.Build(cmd.Context())
	if buildErr != nil {
		if result != nil {
			if buildJSON {
				data, _ := json.MarshalIndent(result.Diagnostics.All(), "", "  ")
				fmt.Println(string(data))
			} else {
				result.Diagnostics.Print(os.Stderr)
			}
		}
		errorColor.Fprintf(os.Stderr, "\nBuild failed\n")
		return buildErr
	}

	duration := time.Since(startTime)
	if buildJSON {
		data, _ := json.MarshalIndent(result.OutputFiles, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	successColor.Printf("✓ Built %d bundle(s) in %.2fs\n\n", len(result.OutputFiles), duration.Seconds())

	ui.RenderBundleReport(os.Stdout, result, false)

	if buildVerbose {
		m := result.Metrics
		infoColor.Printf("\nAssets: %d (%d transformed, %d from cache, %.0f%% hit rate)\n",
			m.TotalAssets, m.AssetsTransformed, m.CacheHits, m.CacheHitRate())
	}

	return nil
}
