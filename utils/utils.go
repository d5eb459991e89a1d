package utils

// Finding save files on disk.
//
// Raft keeps saves in <root>/<user>/World/<world>/<something>-Latest/<world>.rgd,
// where root is under AppData on Windows.  Older folders next to the -Latest
// one are the game's own rolling backups; we never touch those.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"raftedit/backups"
	"raftedit/readers"
)

const (
	SAVE_EXT      = ".rgd"
	LATEST_SUFFIX = "-Latest"
	WORLD_DIR     = "World"
)

var (
	ErrNoSaveFile = errors.New("no " + SAVE_EXT + " save file found")
	ErrNoLatest   = errors.New("no '" + LATEST_SUFFIX + "' folder found")
	ErrNoFolders  = errors.New("no directories found")
)

// DefaultSavefileDir is where Raft puts saves on Windows.
func DefaultSavefileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "AppData", "LocalLow", "Redbeet Interactive", "Raft", "User")
}

// GetSavefileDir picks the save root: command line beats ini file beats default.
func GetSavefileDir(flag_dir string, cfg Config) string {
	if flag_dir != "" {
		return flag_dir
	}
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return DefaultSavefileDir()
}

// Save is one world's current save
type Save struct {
	User     string
	World    string
	WorldDir string // <root>/<user>/World/<world>
	Folder   string // the -Latest folder, i.e. what gets backed up
	File     string // the .rgd file
}

// Folders lists the subdirectories of path, sorted.  Our own backup directory is left out.
func Folders(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() && e.Name() != backups.DIR_NAME {
			out = append(out, e.Name())
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoFolders, path)
	}
	sort.Strings(out)
	return out, nil
}

func Users(root string) ([]string, error) {
	return Folders(root)
}

func Worlds(root string, user string) ([]string, error) {
	return Folders(filepath.Join(root, user, WORLD_DIR))
}

// LatestFolder finds the folder holding the current save for a world.
// The names start with a timestamp, so the greatest name is the newest.
func LatestFolder(world_dir string) (string, error) {
	entries, err := os.ReadDir(world_dir)
	if err != nil {
		return "", err
	}
	latest := []string{}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), LATEST_SUFFIX) {
			latest = append(latest, e.Name())
		}
	}
	if len(latest) == 0 {
		return "", fmt.Errorf("%w in %v", ErrNoLatest, world_dir)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(latest)))
	return filepath.Join(world_dir, latest[0]), nil
}

// SaveFile finds the .rgd file in a save folder.  There should be exactly one;
// if there are more we don't guess.
func SaveFile(folder string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", err
	}
	found := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), SAVE_EXT) {
			found = append(found, e.Name())
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in %v", ErrNoSaveFile, folder)
	case 1:
		return filepath.Join(folder, found[0]), nil
	}
	sort.Strings(found)
	return "", fmt.Errorf("%w: %v contains %v", readers.ErrAmbiguousTarget, folder, strings.Join(found, ", "))
}

// FindSave resolves a user and world (exact folder names) to a save file.
func FindSave(root string, user string, world string) (Save, error) {
	world_dir := filepath.Join(root, user, WORLD_DIR, world)
	folder, err := LatestFolder(world_dir)
	if err != nil {
		return Save{}, err
	}
	file, err := SaveFile(folder)
	if err != nil {
		return Save{}, err
	}
	return Save{User: user, World: world, WorldDir: world_dir, Folder: folder, File: file}, nil
}
