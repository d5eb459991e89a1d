package modewatch

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"raftedit/types"
)

// first_byte pretends the mode is the first byte of the file
type first_byte struct{}

func (first_byte) Inspect(filename string) (types.Field, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return types.Field{}, err
	}
	if len(data) == 0 {
		return types.Field{}, errors.New("empty")
	}
	return types.Field{Path: filename, Value: data[0], Size: len(data)}, nil
}

func wait(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return Event{}
}

func Test_Watcher(t *testing.T) {
	world := t.TempDir()
	folder := filepath.Join(world, "20250101000000-Latest")
	err := os.MkdirAll(folder, 0755)
	if err != nil {
		t.Fatal(err)
	}
	save := filepath.Join(folder, "World.rgd")

	events := make(chan Event, 10)
	w := NewWatcher(world, first_byte{}, 50*time.Millisecond)
	err = w.StartWatching(events)
	if err != nil {
		t.Fatal(err)
	}
	defer w.StopWatching()

	// Not a save, ignored
	os.WriteFile(filepath.Join(folder, "notes.txt"), []byte{9}, 0644)

	os.WriteFile(save, []byte{1, 0, 0}, 0644)
	ev := wait(t, events)
	if ev.Err != nil || ev.Path != save || ev.Field.Value != 1 || ev.Changed {
		t.Errorf("first save: %+v", ev)
	}

	os.WriteFile(save, []byte{2, 0, 0}, 0644)
	ev = wait(t, events)
	if ev.Err != nil || ev.Field.Value != 2 || !ev.Changed || ev.Previous != 1 {
		t.Errorf("second save: %+v", ev)
	}

	// The game starts a new save folder
	folder2 := filepath.Join(world, "20250102000000-Latest")
	os.MkdirAll(folder2, 0755)
	// give the watcher a moment to add the new folder before writing into it
	time.Sleep(200 * time.Millisecond)
	save2 := filepath.Join(folder2, "World.rgd")
	os.WriteFile(save2, []byte{5}, 0644)
	ev = wait(t, events)
	if ev.Err != nil || ev.Path != save2 || ev.Field.Value != 5 {
		t.Errorf("new folder: %+v", ev)
	}
}

func Test_WatcherBadDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), first_byte{}, time.Millisecond)
	err := w.StartWatching(make(chan Event))
	if err == nil {
		w.StopWatching()
		t.Error("expected an error for a missing directory")
	}
}

// Stopping while an event is waiting to be read must not strand any goroutines
func Test_WatcherStopUnread(t *testing.T) {
	world := t.TempDir()
	folder := filepath.Join(world, "20250101000000-Latest")
	err := os.MkdirAll(folder, 0755)
	if err != nil {
		t.Fatal(err)
	}
	before := runtime.NumGoroutine()

	events := make(chan Event)
	w := NewWatcher(world, first_byte{}, 10*time.Millisecond)
	err = w.StartWatching(events)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(folder, "World.rgd"), []byte{1}, 0644)
	// long enough for the read to happen and block on the send
	time.Sleep(300 * time.Millisecond)

	w.StopWatching()
	w.StopWatching()

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			buf := make([]byte, 1<<16)
			n := runtime.Stack(buf, true)
			t.Fatalf("goroutines before %v, after stop %v\n%s", before, runtime.NumGoroutine(), buf[:n])
		}
		time.Sleep(10 * time.Millisecond)
	}
}
