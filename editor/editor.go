// Package editor changes the game mode of a save file.
//
// An edit is a strict sequence: load the file, find the field, read it, back up
// the save folder, patch one byte, write the file back.  Nothing is written
// until the backup is complete, and if the write fails the backup is left alone
// because it is then the only good copy.
package editor

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"raftedit/backups"
	"raftedit/readers"
	"raftedit/tables"
	"raftedit/types"
	"raftedit/writers"
)

// Phase says how far an edit got before it failed
type Phase int

const (
	PHASE_LOAD Phase = iota
	PHASE_LOCATE
	PHASE_BACKUP
	PHASE_WRITE
)

var phase_names = []string{"load", "locate", "backup", "write"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phase_names) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phase_names[p]
}

// Touched reports whether the save file may have been modified when an edit
// failed in this phase.  Commit is atomic, so even a failed write leaves the
// original in place, but we'd rather the user checked.
func (p Phase) Touched() bool {
	return p == PHASE_WRITE
}

// Error is what the Editor returns when something goes wrong.
type Error struct {
	Phase Phase
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v %v: %v", e.Phase, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PhaseOf digs the failed phase out of an error returned by the Editor.
func PhaseOf(err error) (Phase, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase, true
	}
	return 0, false
}

// Result describes a completed edit
type Result struct {
	Before   types.Field
	Value    byte
	Known    bool // false if Value is not a mode we have a name for.  Not an error, but worth a warning.
	Snapshot types.Snapshot
}

type Editor struct {
	layouts []types.Layout
	modes   tables.Modes

	// Swappable for tests
	now    func() time.Time
	backup func(source string, now time.Time) (types.Snapshot, error)
	commit func(filename string, content []byte) error
}

type Option func(*Editor)

// WithClock sets the clock used to name backups
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithBackup replaces the backup step
func WithBackup(backup func(source string, now time.Time) (types.Snapshot, error)) Option {
	return func(e *Editor) { e.backup = backup }
}

// WithCommit replaces the write-back step
func WithCommit(commit func(filename string, content []byte) error) Option {
	return func(e *Editor) { e.commit = commit }
}

// New makes an editor for the given layouts (tried in order) and mode names.
func New(layouts []types.Layout, modes tables.Modes, opts ...Option) *Editor {
	e := &Editor{
		layouts: append([]types.Layout{}, layouts...),
		modes:   modes,
		now:     time.Now,
		backup:  backups.Create,
		commit:  writers.Commit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Editor) Modes() tables.Modes {
	return e.modes
}

// Inspect finds the mode field in a save file without changing anything.
func (e *Editor) Inspect(filename string) (types.Field, error) {
	_, field, err := e.inspect(filename)
	return field, err
}

func (e *Editor) inspect(filename string) ([]byte, types.Field, error) {
	buf, err := readers.Load(filename)
	if err != nil {
		return nil, types.Field{}, &Error{PHASE_LOAD, filename, err}
	}
	field, err := readers.FieldIn(filename, buf, e.layouts)
	if err != nil {
		return nil, types.Field{}, &Error{PHASE_LOCATE, filename, err}
	}
	return buf, field, nil
}

// Set changes the mode in a save file to value.
//
// The folder containing the file is backed up first.  Any value is accepted;
// Result.Known says whether it is one we recognise.
func (e *Editor) Set(filename string, value byte) (Result, error) {
	buf, field, err := e.inspect(filename)
	if err != nil {
		return Result{}, err
	}

	snap, err := e.backup(filepath.Dir(filename), e.now())
	if err != nil {
		return Result{}, &Error{PHASE_BACKUP, filename, err}
	}

	patched := writers.Patch(buf, field.Offset, value)
	err = e.commit(filename, patched)
	if err != nil {
		return Result{Before: field, Value: value, Known: e.modes.Known(value), Snapshot: snap}, &Error{PHASE_WRITE, filename, err}
	}

	return Result{
		Before:   field,
		Value:    value,
		Known:    e.modes.Known(value),
		Snapshot: snap,
	}, nil
}
