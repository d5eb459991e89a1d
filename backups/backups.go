package backups

// Save folder backups.
//
// Every edit copies the whole save folder to <parent>/backups/<folder>_<YYYYMMDD_HHMMSS>
// before anything is written.  Backups are never touched again and never cleaned up;
// deleting old ones is the user's business.

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"raftedit/types"
)

const (
	DIR_NAME       = "backups"
	TIME_FORMAT    = "20060102_150405"
	partial_suffix = ".partial"
)

var ErrBackupFailed = errors.New("backup failed")

// Dir returns the backup directory for a save folder (a sibling called "backups")
func Dir(source string) string {
	return filepath.Join(filepath.Dir(abs(source)), DIR_NAME)
}

// abs makes source absolute, so that "." has a real parent and a real name
func abs(source string) string {
	full, err := filepath.Abs(source)
	if err != nil {
		return filepath.Clean(source)
	}
	return full
}

// Create copies the source folder into the backup directory.
//
// The copy is made under a temporary name and only renamed into place once
// every file has been written and synced, so anything that List finds is complete.
// If anything goes wrong the partial copy is removed and the error wraps ErrBackupFailed.
func Create(source string, now time.Time) (types.Snapshot, error) {
	snap, err := create(source, now)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("%w: %v: %w", ErrBackupFailed, source, err)
	}
	return snap, nil
}

func create(source string, now time.Time) (types.Snapshot, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return types.Snapshot{}, err
	}
	info, err := os.Stat(source)
	if err != nil {
		return types.Snapshot{}, err
	}
	if !info.IsDir() {
		return types.Snapshot{}, fmt.Errorf("%v is not a directory", source)
	}

	dir := Dir(source)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return types.Snapshot{}, err
	}

	name, err := free_name(dir, filepath.Base(source), now)
	if err != nil {
		return types.Snapshot{}, err
	}
	final := filepath.Join(dir, name)
	staging := final + partial_suffix

	// Leftovers from a previous crash would otherwise get merged into this copy
	err = os.RemoveAll(staging)
	if err != nil {
		return types.Snapshot{}, err
	}

	files, size, err := copy_tree(source, staging)
	if err != nil {
		os.RemoveAll(staging)
		return types.Snapshot{}, err
	}
	err = os.Rename(staging, final)
	if err != nil {
		os.RemoveAll(staging)
		return types.Snapshot{}, err
	}

	return types.Snapshot{
		Name:    name,
		Source:  source,
		Path:    final,
		Created: now,
		Files:   files,
		Bytes:   size,
	}, nil
}

// free_name finds a snapshot name that isn't taken yet.  Two backups in the same
// second get _2, _3 etc. on the end.
func free_name(dir string, base string, now time.Time) (string, error) {
	stem := base + "_" + now.Format(TIME_FORMAT)
	name := stem
	for n := 2; ; n += 1 {
		_, err := os.Lstat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = stem + "_" + strconv.Itoa(n)
	}
}

// copy_tree recursively copies src to dst, which must not exist yet.
// Returns the number of files and bytes copied.
func copy_tree(src string, dst string) (int, int64, error) {
	files := 0
	total := int64(0)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Never copy the copy into itself
		if path == dst {
			return fs.SkipDir
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)

		case d.Type().IsRegular():
			n, err := copy_file(path, target, info.Mode().Perm())
			if err != nil {
				return err
			}
			files += 1
			total += n
			return nil
		}

		// Sockets, devices and the like have no business being in a save folder
		return fmt.Errorf("%v: unsupported file type %v", path, d.Type())
	})

	return files, total, err
}

func copy_file(src string, dst string, perm fs.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	err = out.Sync()
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// List returns the existing backups of a save folder, oldest first.
func List(source string) ([]types.Snapshot, error) {
	source = abs(source)
	dir := Dir(source)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []types.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}

	type found struct {
		snap types.Snapshot
		seq  int
	}
	all := []found{}
	prefix := filepath.Base(source) + "_"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || strings.HasSuffix(e.Name(), partial_suffix) {
			continue
		}
		created, seq, ok := parse_stamp(strings.TrimPrefix(e.Name(), prefix))
		if !ok {
			continue
		}
		all = append(all, found{types.Snapshot{
			Name:    e.Name(),
			Source:  source,
			Path:    filepath.Join(dir, e.Name()),
			Created: created,
		}, seq})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].snap.Created.Equal(all[j].snap.Created) {
			return all[i].snap.Created.Before(all[j].snap.Created)
		}
		return all[i].seq < all[j].seq
	})

	out := make([]types.Snapshot, 0, len(all))
	for _, f := range all {
		out = append(out, f.snap)
	}
	return out, nil
}

// parse_stamp parses "20250102_030405" or "20250102_030405_3"
func parse_stamp(stamp string) (time.Time, int, bool) {
	if len(stamp) < len(TIME_FORMAT) {
		return time.Time{}, 0, false
	}
	t, err := time.ParseInLocation(TIME_FORMAT, stamp[:len(TIME_FORMAT)], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	rest := stamp[len(TIME_FORMAT):]
	if rest == "" {
		return t, 1, true
	}
	if !strings.HasPrefix(rest, "_") {
		return time.Time{}, 0, false
	}
	seq, err := strconv.Atoi(rest[1:])
	if err != nil || seq < 2 {
		return time.Time{}, 0, false
	}
	return t, seq, true
}

// Restore puts a snapshot back in place of target.
//
// The current contents of target are backed up first (restoring is just as
// destructive as editing).  The snapshot is copied next to target and swapped in
// with renames, so target is never left half-restored.
// Returns the backup of what was there before.
func Restore(snap types.Snapshot, target string, now time.Time) (types.Snapshot, error) {
	target = abs(target)

	info, err := os.Stat(snap.Path)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("restore %v: %w", snap.Name, err)
	}
	if !info.IsDir() {
		return types.Snapshot{}, fmt.Errorf("restore %v: not a directory", snap.Name)
	}

	before, err := Create(target, now)
	if err != nil {
		return types.Snapshot{}, err
	}

	staging := target + ".restore" + partial_suffix
	old := target + ".restore.old"
	for _, p := range []string{staging, old} {
		err = os.RemoveAll(p)
		if err != nil {
			return before, fmt.Errorf("restore %v: %w", snap.Name, err)
		}
	}

	_, _, err = copy_tree(abs(snap.Path), staging)
	if err != nil {
		os.RemoveAll(staging)
		return before, fmt.Errorf("restore %v: %w", snap.Name, err)
	}

	err = os.Rename(target, old)
	if err != nil {
		os.RemoveAll(staging)
		return before, fmt.Errorf("restore %v: %w", snap.Name, err)
	}
	err = os.Rename(staging, target)
	if err != nil {
		// Put things back the way they were
		os.Rename(old, target)
		os.RemoveAll(staging)
		return before, fmt.Errorf("restore %v: %w", snap.Name, err)
	}

	return before, os.RemoveAll(old)
}
