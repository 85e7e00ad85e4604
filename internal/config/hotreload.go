package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called with the newly loaded config after the file
// changes on disk.
type ChangeHandler func(cfg Config)

// Watcher watches the config file and reloads it on change. Changes are
// debounced (300ms) to avoid rapid reloads from editors writing in steps.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	stopChan chan struct{}
}

// NewWatcher creates a config file watcher.
func NewWatcher(configPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     configPath,
		watcher:  w,
		debounce: 300 * time.Millisecond,
	}, nil
}

// OnChange registers a handler to be called when the config changes.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// Start begins watching the config file.
func (cw *Watcher) Start() error {
	if err := cw.watcher.Add(cw.path); err != nil {
		return err
	}

	cw.mu.Lock()
	cw.stopChan = make(chan struct{})
	stop := cw.stopChan
	cw.mu.Unlock()

	go cw.loop(stop)
	return nil
}

// Stop halts the watcher.
func (cw *Watcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.stopChan != nil {
		close(cw.stopChan)
		cw.stopChan = nil
	}
	cw.watcher.Close()
}

func (cw *Watcher) loop(stop chan struct{}) {
	var timer *time.Timer
	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, cw.reload)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *Watcher) reload() {
	cfg, err := Load(cw.path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous", "error", err)
		return
	}
	slog.Info("config reloaded", "path", cw.path)

	cw.mu.Lock()
	handlers := append([]ChangeHandler(nil), cw.handlers...)
	cw.mu.Unlock()
	for _, handler := range handlers {
		handler(cfg)
	}
}
