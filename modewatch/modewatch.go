package modewatch

// Watches a world's save folders and reports the game mode every time the game saves.
// Read-only: nothing in here ever writes to a save.

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"raftedit/backups"
	"raftedit/types"
	"raftedit/utils"
)

// Event is sent once per save the game writes
type Event struct {
	Path     string
	Field    types.Field
	Changed  bool // the mode differs from the last time we saw this file
	Previous byte // only meaningful if Changed
	Err      error
}

// Inspector reads the mode field out of a save; *editor.Editor does this.
type Inspector interface {
	Inspect(filename string) (types.Field, error)
}

type Watcher interface {
	StartWatching(out chan<- Event) error
	StopWatching()
}

// NewWatcher watches dir (a world directory) and every folder in it.
// settle is how long a file must be left alone before we read it; the game
// writes saves in several goes.
func NewWatcher(dir string, inspector Inspector, settle time.Duration) Watcher {
	return &dir_watcher{
		dir:       dir,
		inspector: inspector,
		settle:    settle,
		last:      map[string]byte{},
		pending:   map[string]*time.Timer{},
	}
}

type dir_watcher struct {
	dir       string
	inspector Inspector
	settle    time.Duration
	watcher   *fsnotify.Watcher

	done chan struct{} // closed by StopWatching

	mu      sync.Mutex
	last    map[string]byte
	pending map[string]*time.Timer
	stopped bool
}

func (dw *dir_watcher) StartWatching(out chan<- Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dw.watcher = watcher
	dw.done = make(chan struct{})

	// fsnotify is not recursive, so the world dir and each save folder get their own watch
	err = dw.add_tree(dw.dir)
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case <-dw.done:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				dw.handle_event(event, out)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				dw.send(out, Event{Path: dw.dir, Err: err})
			}
		}
	}()

	return nil
}

func (dw *dir_watcher) StopWatching() {
	dw.mu.Lock()
	if dw.stopped {
		dw.mu.Unlock()
		return
	}
	dw.stopped = true
	for _, t := range dw.pending {
		t.Stop()
	}
	dw.pending = map[string]*time.Timer{}
	if dw.done != nil {
		close(dw.done)
	}
	dw.mu.Unlock()

	if dw.watcher != nil {
		dw.watcher.Close()
	}
}

func (dw *dir_watcher) add_tree(dir string) error {
	err := dw.watcher.Add(dir)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != backups.DIR_NAME {
			err = dw.watcher.Add(filepath.Join(dir, e.Name()))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (dw *dir_watcher) handle_event(event fsnotify.Event, out chan<- Event) {
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(dw.dir) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() && filepath.Base(event.Name) != backups.DIR_NAME {
			// The game makes a new save folder now and then
			dw.watcher.Add(event.Name)
			dw.scan_folder(event.Name, out)
		}
		return
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), utils.SAVE_EXT) {
		return
	}
	dw.schedule(event.Name, out)
}

// scan_folder picks up saves that were written into a folder before we started watching it
func (dw *dir_watcher) scan_folder(dir string, out chan<- Event) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), utils.SAVE_EXT) {
			dw.schedule(filepath.Join(dir, e.Name()), out)
		}
	}
}

// schedule reads the file once it has stopped changing for dw.settle
func (dw *dir_watcher) schedule(path string, out chan<- Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stopped {
		return
	}
	if t, ok := dw.pending[path]; ok {
		t.Reset(dw.settle)
		return
	}
	dw.pending[path] = time.AfterFunc(dw.settle, func() {
		dw.mu.Lock()
		delete(dw.pending, path)
		dw.mu.Unlock()
		dw.check(path, out)
	})
}

func (dw *dir_watcher) check(path string, out chan<- Event) {
	field, err := dw.inspector.Inspect(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Replaced or deleted between the event and now; there'll be another event
			return
		}
		dw.send(out, Event{Path: path, Err: err})
		return
	}

	dw.mu.Lock()
	previous, seen := dw.last[path]
	dw.last[path] = field.Value
	dw.mu.Unlock()

	dw.send(out, Event{
		Path:     path,
		Field:    field,
		Changed:  seen && previous != field.Value,
		Previous: previous,
	})
}

// send blocks until the event is taken or the watcher is stopped
func (dw *dir_watcher) send(out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-dw.done:
	}
}
