package types

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Layout says where to find the game mode in one version of the save format.
//
// We don't understand the format, so instead of parsing it we look for a
// landmark (the anchor) that is always written just before the field.
type Layout struct {
	Name   string // format version hint, human-readable only
	Anchor []byte
	Width  int // field width in bytes
}

func (l Layout) String() string {
	return fmt.Sprintf("%v (%v byte anchor %v, width %v)", l.Name, len(l.Anchor), hex.EncodeToString(l.Anchor), l.Width)
}

// Field is a located field in one particular save file
type Field struct {
	Path   string
	Layout Layout
	Offset int
	Value  byte
	Size   int // size of the whole file, for sanity checks
}

// Snapshot is a complete copy of a save folder, taken before editing.
// Snapshots are never modified after creation.
type Snapshot struct {
	Name    string
	Source  string // the folder that was copied
	Path    string // where the copy lives
	Created time.Time
	Files   int
	Bytes   int64
}
