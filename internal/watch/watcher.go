// Package watch reloads configuration files when they change on disk.
package watch

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before its handler runs.
const DefaultDebounce = 200 * time.Millisecond

// Handler is called with the cleaned path of a changed file.
type Handler func(path string)

// Watcher calls a handler when one of a set of files is written, created
// or replaced. Editors often replace files through a rename, so the
// parent directories are watched rather than the files themselves.
type Watcher struct {
	Debounce time.Duration

	handlers map[string]Handler
	dirs     map[string]struct{}
	watcher  *fsnotify.Watcher
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// New creates a watcher with no files.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		handlers: make(map[string]Handler),
		dirs:     make(map[string]struct{}),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Add registers h for path. It must be called before Start.
func (w *Watcher) Add(path string, h Handler) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.handlers[abs] = h
	dir := filepath.Dir(abs)
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// Len returns the number of watched files.
func (w *Watcher) Len() int { return len(w.handlers) }

// Start begins delivering changes.
func (w *Watcher) Start() {
	w.started = true
	go w.loop()
}

// Stop closes the watcher and waits for the loop to exit. It may be called
// without Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.watcher.Close()
		if w.started {
			<-w.done
		}
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if _, watched := w.handlers[name]; !watched {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending[name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					delete(pending, file)
					w.fire(file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARN: file watcher: %v", err)
		}
	}
}

func (w *Watcher) fire(file string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: reload handler for %s panicked: %v", file, r)
		}
	}()
	log.Printf("INFO: %s changed, reloading", file)
	w.handlers[file](file)
}
