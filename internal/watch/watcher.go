// Package watch implements watch mode: a file watcher feeding incremental
// rebuilds, a WebSocket reload server, and a development HTTP server for the
// built output.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/fingerprint"
)

// FileWatcher monitors the project tree and reports batched change events
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	root      string
	ignored   []string
	onChange  func([]fingerprint.Event) error
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a watcher rooted at the project directory.
// Events are debounced and delivered as a batch to onChange.
func NewFileWatcher(root string, ignored []string, logger *zap.Logger, onChange func([]fingerprint.Event) error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(100 * time.Millisecond),
		root:      root,
		ignored:   ignored,
		onChange:  onChange,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	fw.debouncer.SetCallback(func(events []fingerprint.Event) {
		if err := fw.onChange(events); err != nil {
			fw.logger.Error("failed to handle file changes", zap.Error(err))
		}
	})

	return fw, nil
}

// Start begins watching the project tree
func (fw *FileWatcher) Start() error {
	dirs, err := fw.findDirectories()
	if err != nil {
		return fmt.Errorf("failed to find directories: %w", err)
	}

	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	fw.logger.Info("watching project", zap.String("root", fw.root), zap.Int("directories", len(dirs)))

	fw.wg.Add(1)
	go fw.watch()

	return nil
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

// watch is the main event loop
func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if fw.shouldIgnore(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				// New directories join the watch set so nested creates fire
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					fw.watcher.Add(event.Name)
					continue
				}
				fw.logger.Debug("file created", zap.String("path", event.Name))
				fw.debouncer.Add(fingerprint.FileCreated(event.Name))

			case event.Op&fsnotify.Write == fsnotify.Write:
				fw.logger.Debug("file changed", zap.String("path", event.Name))
				fw.debouncer.Add(fingerprint.FileChanged(event.Name))

			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				// A removed input invalidates its asset the same way a
				// content change does
				fw.debouncer.Add(fingerprint.FileChanged(event.Name))
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watcher error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

// findDirectories discovers the directories under the root to watch,
// skipping ignored and hidden trees
func (fw *FileWatcher) findDirectories() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(fw.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.root && fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// shouldIgnore checks if a path should be excluded from watching
func (fw *FileWatcher) shouldIgnore(path string) bool {
	baseName := filepath.Base(path)
	if strings.HasPrefix(baseName, ".") && baseName != "." {
		return true
	}
	if baseName == "node_modules" || baseName == "dist" {
		return true
	}
	if strings.Contains(filepath.ToSlash(path), "/node_modules/") {
		return true
	}

	for _, pattern := range fw.ignored {
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
	}

	return false
}

// Debouncer collects change events and triggers a callback after a quiet
// period, merging duplicate events for the same path
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	events   map[fingerprint.Event]struct{}
	mutex    sync.Mutex
	callback func([]fingerprint.Event)
	stopChan chan struct{}
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		events:   make(map[fingerprint.Event]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Add adds an event to the pending batch and resets the quiet period
func (d *Debouncer) Add(event fingerprint.Event) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.events[event] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.duration, func() {
		d.flush()
	})
}

// flush triggers the callback with the accumulated batch
func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.events) == 0 {
		return
	}

	events := make([]fingerprint.Event, 0, len(d.events))
	for ev := range d.events {
		events = append(events, ev)
	}

	d.events = make(map[fingerprint.Event]struct{})

	if d.callback != nil {
		d.callback(events)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]fingerprint.Event)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop stops the debouncer
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
}
