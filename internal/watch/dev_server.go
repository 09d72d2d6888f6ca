package watch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/build"
	"github.com/motiz88/parcel/internal/fingerprint"
)

// reloadScript is served at /__parcel/reload.js and injected into pages by
// the application under development
const reloadScript = `(function () {
  var proto = location.protocol === "https:" ? "wss" : "ws";
  var url = proto + "://" + location.host + "/__parcel_reload";
  var retry = 1000;
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "reload") location.reload();
      if (msg.type === "error") console.error("[parcel] build error:", msg.error);
    };
    ws.onclose = function () { setTimeout(connect, retry); };
  }
  connect();
})();
`

// DevServer runs watch mode: it owns the builder, the file watcher, the
// reload WebSocket server, and an HTTP server for the built output
type DevServer struct {
	builder      *build.Builder
	watcher      *FileWatcher
	reloadServer *ReloadServer
	httpServer   *http.Server
	logger       *zap.Logger

	port    int
	distDir string
	root    string

	isBuilding bool
	buildMutex sync.Mutex
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// DevServerConfig holds configuration for the dev server
type DevServerConfig struct {
	Port           int
	ProjectRoot    string
	DistDir        string
	IgnorePatterns []string
	Logger         *zap.Logger
}

// NewDevServer creates a development server around an existing builder
func NewDevServer(builder *build.Builder, config DevServerConfig) (*DevServer, error) {
	if config.Port == 0 {
		config.Port = 1234
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if len(config.IgnorePatterns) == 0 {
		config.IgnorePatterns = []string{"*.swp", "*.swo", "*~", ".DS_Store"}
	}

	ds := &DevServer{
		builder:      builder,
		reloadServer: NewReloadServer(config.Logger),
		logger:       config.Logger,
		port:         config.Port,
		distDir:      config.DistDir,
		root:         config.ProjectRoot,
		stopChan:     make(chan struct{}),
	}

	var err error
	ds.watcher, err = NewFileWatcher(config.ProjectRoot, config.IgnorePatterns, config.Logger, ds.handleChanges)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return ds, nil
}

// Start performs the initial build and begins watching and serving
func (ds *DevServer) Start(ctx context.Context) error {
	ds.logger.Info("starting dev server", zap.Int("port", ds.port))

	result, err := ds.builder.Build(ctx)
	if err != nil {
		ds.logger.Error("initial build failed", zap.Error(err))
		if result != nil {
			result.Diagnostics.Print(os.Stderr)
		}
		// Keep watching so a fix triggers a rebuild
	} else {
		ds.logger.Info("initial build complete",
			zap.Duration("duration", result.Duration),
			zap.Int("bundles", len(result.OutputFiles)))
	}

	if err := ds.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	if err := ds.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ds.logger.Info("dev server ready",
		zap.String("url", fmt.Sprintf("http://localhost:%d", ds.port)))
	return nil
}

// Stop stops the development server
func (ds *DevServer) Stop() error {
	select {
	case <-ds.stopChan:
		return nil
	default:
		close(ds.stopChan)
	}

	if ds.watcher != nil {
		ds.watcher.Stop()
	}
	if ds.reloadServer != nil {
		ds.reloadServer.Close()
	}
	if ds.httpServer != nil {
		ds.httpServer.Close()
	}
	ds.wg.Wait()

	ds.logger.Info("dev server stopped")
	return nil
}

// handleChanges runs an incremental rebuild for a debounced batch of
// filesystem events
func (ds *DevServer) handleChanges(events []fingerprint.Event) error {
	ds.buildMutex.Lock()
	if ds.isBuilding {
		ds.buildMutex.Unlock()
		ds.logger.Debug("rebuild already in progress, skipping batch")
		return nil
	}
	ds.isBuilding = true
	ds.buildMutex.Unlock()

	defer func() {
		ds.buildMutex.Lock()
		ds.isBuilding = false
		ds.buildMutex.Unlock()
	}()

	files := make([]string, len(events))
	for i, ev := range events {
		files[i] = ev.Key
	}
	ds.reloadServer.NotifyBuilding(files)

	start := time.Now()
	result, err := ds.builder.Rebuild(context.Background(), events)
	if err != nil {
		ds.logger.Error("rebuild failed", zap.Error(err))
		if result != nil {
			result.Diagnostics.Print(os.Stderr)
			ds.reloadServer.NotifyDiagnostics(result.Diagnostics)
		}
		return err
	}

	duration := time.Since(start)
	ds.logger.Info("rebuilt",
		zap.Duration("duration", duration),
		zap.Int("transformed", result.Metrics.AssetsTransformed),
		zap.Int("cache_hits", result.Metrics.CacheHits))

	var bundles []string
	if result.Bundles != nil {
		for _, b := range result.Bundles.Bundles() {
			bundles = append(bundles, b.Name)
		}
	}
	ds.reloadServer.NotifySuccess(duration)
	ds.reloadServer.NotifyReload(bundles)
	return nil
}

// startHTTPServer serves the built output, the reload script, and the
// reload WebSocket endpoint
func (ds *DevServer) startHTTPServer() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(noCache)

	r.HandleFunc("/__parcel_reload", ds.reloadServer.HandleWebSocket)
	r.Get("/__parcel/reload.js", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(reloadScript))
	})
	r.Handle("/*", http.FileServer(http.Dir(ds.distDir)))

	ds.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", ds.port),
		Handler: r,
	}

	ds.wg.Add(1)
	go func() {
		defer ds.wg.Done()
		if err := ds.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ds.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// noCache disables browser caching; dev output changes on every rebuild
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
