package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/motiz88/parcel/internal/cli/config"
	"github.com/motiz88/parcel/internal/watch"
)

var (
	watchPort    int
	watchVerbose bool
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild incrementally on file changes",
		Long: `Start watch mode: perform an initial build, serve the output over HTTP,
and re-run the affected part of the build whenever a source file changes.
Connected browsers reload automatically over WebSocket.`,
		Example: `  # Watch with the dev server on the default port
  parcel watch

  # Watch on a custom port with verbose logging
  parcel watch --port 8080 -v`,
		RunE: runWatch,
	}

	cmd.Flags().IntVarP(&watchPort, "port", "p", 0, "Dev server port (default: 1234)")
	cmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Show detailed rebuild output")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if watchPort != 0 {
		cfg.Server.Port = watchPort
	}

	root, err := config.GetProjectRoot()
	if err != nil {
		root, _ = os.Getwd()
	}

	logger, err := newLogger(watchVerbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	builder, err := newBuilder(cfg, root, logger)
	if err != nil {
		return err
	}

	server, err := watch.NewDevServer(builder, watch.DevServerConfig{
		Port:           cfg.Server.Port,
		ProjectRoot:    root,
		DistDir:        cfg.DistDir,
		IgnorePatterns: cfg.Watch.Ignore,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if err := server.Start(cmd.Context()); err != nil {
		return err
	}

	infoColor.Printf("Watching %s - press Ctrl+C to stop\n", root)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	return server.Stop()
}
