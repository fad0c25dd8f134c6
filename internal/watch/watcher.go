package watch

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Enqueue hands a discovered export file to the import queue. It
// reports whether the file was accepted.
type Enqueue func(ctx context.Context, path string) bool

// Watcher monitors the drop directory for new timeline exports.
type Watcher struct {
	dir     string
	enqueue Enqueue
}

func New(dir string, enqueue Enqueue) *Watcher {
	return &Watcher{dir: dir, enqueue: enqueue}
}

func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isExport(evt.Name) {
					if !w.enqueue(ctx, evt.Name) {
						log.Printf("watch: dropped %s, queue rejected it", filepath.Base(evt.Name))
					}
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.dir)
}

// List returns the export files already sitting in the drop directory.
func (w *Watcher) List() ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return nil, err
	}
	var exports []string
	for _, e := range entries {
		if isExport(e) {
			exports = append(exports, e)
		}
	}
	return exports, nil
}

func isExport(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
