package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// StaticIceServer mirrors one entry of a static TURN server file.
type StaticIceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

// StaticIceServersWatcher hot-reloads the operator-supplied ICE server list
// file used by the Turn Coordinator's Static mode, the way a dialog Loader
// watches its dialog directory for changes.
type StaticIceServersWatcher struct {
	path string

	mu      sync.RWMutex
	servers []StaticIceServer
}

// NewStaticIceServersWatcher loads path once and returns a watcher ready
// for Current(); call Watch in a goroutine to pick up later edits.
func NewStaticIceServersWatcher(path string) (*StaticIceServersWatcher, error) {
	w := &StaticIceServersWatcher{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *StaticIceServersWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read static ICE servers file %q: %w", w.path, err)
	}
	var servers []StaticIceServer
	if err := json.Unmarshal(data, &servers); err != nil {
		return fmt.Errorf("parse static ICE servers file %q: %w", w.path, err)
	}
	w.mu.Lock()
	w.servers = servers
	w.mu.Unlock()
	return nil
}

// Current returns the most recently loaded server list.
func (w *StaticIceServersWatcher) Current() []StaticIceServer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]StaticIceServer, len(w.servers))
	copy(out, w.servers)
	return out
}

// Watch blocks, reloading the file on every write, until done is closed.
func (w *StaticIceServersWatcher) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		return fmt.Errorf("watch file %q: %w", w.path, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.reload(); err != nil {
					slog.Error("static ICE servers reload failed", slog.String("error", err.Error()))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
