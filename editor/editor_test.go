package editor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"raftedit/backups"
	"raftedit/readers"
	"raftedit/tables"
	"raftedit/types"
	"raftedit/writers"
)

var test_time = time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)

func clock() time.Time { return test_time }

// make_save writes a 5000 byte save with the GameMode anchor at 1000, followed by mode.
// Returns the save's filename and its contents.
func make_save(t *testing.T, mode byte) (string, []byte) {
	t.Helper()
	anchor, err := readers.ParseAnchor(tables.GAMEMODE_ANCHOR)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5000)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	copy(buf[1000:], anchor)
	buf[1000+len(anchor)] = mode

	folder := filepath.Join(t.TempDir(), "World", "20250102030000-Latest")
	err = os.MkdirAll(folder, 0755)
	if err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(folder, "World.rgd")
	err = os.WriteFile(filename, buf, 0644)
	if err != nil {
		t.Fatal(err)
	}
	// Something else in the folder, so the backup is a real tree copy
	err = os.WriteFile(filepath.Join(folder, "World.rgd.meta"), []byte("meta"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return filename, buf
}

func read(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func Test_Inspect(t *testing.T) {
	filename, _ := make_save(t, tables.MODE_HARD)
	ed := New(tables.DefaultLayouts(), tables.DefaultModes())

	field, err := ed.Inspect(filename)
	if err != nil {
		t.Fatal(err)
	}
	if field.Offset != 1026 {
		t.Errorf("offset %v, expected 1026", field.Offset)
	}
	if field.Value != tables.MODE_HARD || ed.Modes().Name(field.Value) != "Hard" {
		t.Errorf("value 0x%02x, expected Hard", field.Value)
	}
}

func Test_Set(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock))

	result, err := ed.Set(filename, tables.MODE_CREATIVE)
	if err != nil {
		t.Fatal(err)
	}
	if result.Before.Value != tables.MODE_HARD || result.Value != tables.MODE_CREATIVE || !result.Known {
		t.Errorf("unexpected result %+v", result)
	}

	got := read(t, filename)
	if len(got) != len(orig) {
		t.Fatalf("file length changed from %v to %v", len(orig), len(got))
	}
	for i := range got {
		if i == 1026 {
			if got[i] != tables.MODE_CREATIVE {
				t.Errorf("byte 1026 is 0x%02x, expected 0x02", got[i])
			}
		} else if got[i] != orig[i] {
			t.Fatalf("byte %v changed", i)
		}
	}

	// The backup holds the file as it was
	expected := filepath.Join(filepath.Dir(filepath.Dir(filename)), "backups", "20250102030000-Latest_20250102_030405")
	if result.Snapshot.Path != expected {
		t.Errorf("backup at %v, expected %v", result.Snapshot.Path, expected)
	}
	if !bytes.Equal(read(t, filepath.Join(expected, "World.rgd")), orig) {
		t.Error("backup does not match the original")
	}
	if string(read(t, filepath.Join(expected, "World.rgd.meta"))) != "meta" {
		t.Error("backup is missing the rest of the folder")
	}

	field, err := ed.Inspect(filename)
	if err != nil || field.Value != tables.MODE_CREATIVE {
		t.Errorf("re-read got 0x%02x, %v", field.Value, err)
	}
}

func Test_SetUnknown(t *testing.T) {
	filename, _ := make_save(t, tables.MODE_NORMAL)
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock))

	result, err := ed.Set(filename, 0x04)
	if err != nil {
		t.Fatal(err)
	}
	if result.Known {
		t.Error("0x04 should not be a known mode")
	}
	if read(t, filename)[1026] != 0x04 {
		t.Error("unknown value was not written")
	}
}

// If the write fails after the backup, the backup must be a complete copy of the original
func Test_SetWriteFails(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	commits := 0
	failing_commit := func(name string, content []byte) error {
		commits += 1
		// Write half the file, then give up; the worst a non-atomic writer could do
		os.WriteFile(name, content[:len(content)/2], 0644)
		return errors.Join(writers.ErrWriteFailed, errors.New("disk full"))
	}
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock), WithCommit(failing_commit))

	result, err := ed.Set(filename, tables.MODE_CREATIVE)
	if !errors.Is(err, writers.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	phase, ok := PhaseOf(err)
	if !ok || phase != PHASE_WRITE || !phase.Touched() {
		t.Errorf("phase %v, %v", phase, ok)
	}
	if commits != 1 {
		t.Errorf("commit called %v times", commits)
	}

	intact := bytes.Equal(read(t, filename), orig)
	backed_up := bytes.Equal(read(t, filepath.Join(result.Snapshot.Path, "World.rgd")), orig)
	if !backed_up {
		t.Error("backup is not a complete copy of the original")
	}
	if !intact && !backed_up {
		t.Error("original is lost")
	}
}

func Test_SetBackupFails(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	committed := false
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(),
		WithClock(clock),
		WithBackup(func(string, time.Time) (types.Snapshot, error) {
			return types.Snapshot{}, errors.Join(backups.ErrBackupFailed, errors.New("permission denied"))
		}),
		WithCommit(func(string, []byte) error {
			committed = true
			return nil
		}),
	)

	_, err := ed.Set(filename, tables.MODE_CREATIVE)
	if !errors.Is(err, backups.ErrBackupFailed) {
		t.Fatalf("expected ErrBackupFailed, got %v", err)
	}
	if phase, _ := PhaseOf(err); phase != PHASE_BACKUP {
		t.Errorf("phase %v, expected backup", phase)
	}
	if committed {
		t.Error("commit happened after a failed backup")
	}
	if !bytes.Equal(read(t, filename), orig) {
		t.Error("save was modified")
	}
}

// A real backup failure: the backups directory can't be created because a file is in the way
func Test_SetBackupBlocked(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	world := filepath.Dir(filepath.Dir(filename))
	err := os.WriteFile(filepath.Join(world, "backups"), []byte("in the way"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock))

	_, err = ed.Set(filename, tables.MODE_CREATIVE)
	if !errors.Is(err, backups.ErrBackupFailed) {
		t.Fatalf("expected ErrBackupFailed, got %v", err)
	}
	if !bytes.Equal(read(t, filename), orig) {
		t.Error("save was modified")
	}
}

func Test_SetNoSignature(t *testing.T) {
	folder := t.TempDir()
	filename := filepath.Join(folder, "World.rgd")
	orig := bytes.Repeat([]byte{0xAB}, 4096)
	err := os.WriteFile(filename, orig, 0644)
	if err != nil {
		t.Fatal(err)
	}
	backed_up := false
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(),
		WithBackup(func(string, time.Time) (types.Snapshot, error) {
			backed_up = true
			return types.Snapshot{}, nil
		}),
	)

	_, err = ed.Set(filename, tables.MODE_CREATIVE)
	if !errors.Is(err, readers.ErrSignatureNotFound) {
		t.Fatalf("expected ErrSignatureNotFound, got %v", err)
	}
	if phase, _ := PhaseOf(err); phase != PHASE_LOCATE || phase.Touched() {
		t.Errorf("phase %v, expected locate", phase)
	}
	if backed_up {
		t.Error("backup taken even though the field wasn't found")
	}
	if !bytes.Equal(read(t, filename), orig) {
		t.Error("save was modified")
	}
}

func Test_SetMissingFile(t *testing.T) {
	ed := New(tables.DefaultLayouts(), tables.DefaultModes())
	_, err := ed.Set(filepath.Join(t.TempDir(), "nope.rgd"), 1)
	if phase, ok := PhaseOf(err); !ok || phase != PHASE_LOAD {
		t.Errorf("expected a load error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func Test_SetTwice(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock))

	for _, v := range []byte{tables.MODE_EASY, tables.MODE_PEACEFUL} {
		_, err := ed.Set(filename, v)
		if err != nil {
			t.Fatal(err)
		}
	}
	got := read(t, filename)
	if got[1026] != tables.MODE_PEACEFUL {
		t.Errorf("got 0x%02x", got[1026])
	}
	got[1026] = orig[1026]
	if !bytes.Equal(got, orig) {
		t.Error("other bytes changed")
	}

	// Two backups in the same (fake) second must not clobber each other
	snaps, err := backups.List(filepath.Dir(filename))
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 backups, got %v", len(snaps))
	}
	if read(t, filepath.Join(snaps[1].Path, "World.rgd"))[1026] != tables.MODE_EASY {
		t.Error("second backup should hold the first edit")
	}
}

// A bare filename, as typed in the save folder itself
func Test_SetRelativePath(t *testing.T) {
	filename, orig := make_save(t, tables.MODE_HARD)
	folder := filepath.Dir(filename)
	chdir(t, folder)
	ed := New(tables.DefaultLayouts(), tables.DefaultModes(), WithClock(clock))

	result, err := ed.Set("World.rgd", tables.MODE_CREATIVE)
	if err != nil {
		t.Fatal(err)
	}
	if read(t, filename)[1026] != tables.MODE_CREATIVE {
		t.Error("save not patched")
	}

	expected := filepath.Join(filepath.Dir(folder), "backups", "20250102030000-Latest_20250102_030405")
	if result.Snapshot.Name != filepath.Base(expected) {
		t.Errorf("backup named %v, expected %v", result.Snapshot.Name, filepath.Base(expected))
	}
	if !bytes.Equal(read(t, filepath.Join(expected, "World.rgd")), orig) {
		t.Error("backup does not match the original")
	}
	if _, err := os.Stat(filepath.Join(folder, "backups")); !errors.Is(err, os.ErrNotExist) {
		t.Error("backups directory made inside the save folder")
	}
}

func Test_PhaseString(t *testing.T) {
	cases := map[Phase]string{
		PHASE_LOAD:   "load",
		PHASE_LOCATE: "locate",
		PHASE_BACKUP: "backup",
		PHASE_WRITE:  "write",
		Phase(7):     "Phase(7)",
		Phase(-1):    "Phase(-1)",
	}
	for p, expected := range cases {
		if p.String() != expected {
			t.Errorf("got %q, expected %q", p.String(), expected)
		}
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
