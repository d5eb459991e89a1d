package readers

// Functions for finding things in a save file.
//
// Raft saves are a serialized object graph we have no schema for, so nothing
// here parses anything.  We look for a byte sequence (the "anchor") that the
// game always writes right before the field we want, and the field is
// whatever comes next.

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"raftedit/types"
)

var (
	ErrSignatureNotFound = errors.New("signature not found")
	ErrTruncatedField    = errors.New("signature found, but the file ends before the field")
	ErrAmbiguousTarget   = errors.New("ambiguous target")
	ErrEmptyAnchor       = errors.New("empty anchor")
)

// Locate finds the leftmost occurrence of anchor in buf and returns the offset
// of the byte immediately after it.
func Locate(buf []byte, anchor []byte) (int, error) {
	if len(anchor) == 0 {
		return 0, ErrEmptyAnchor
	}
	idx := bytes.Index(buf, anchor)
	if idx < 0 {
		return 0, ErrSignatureNotFound
	}
	offset := idx + len(anchor)
	if offset >= len(buf) {
		return 0, fmt.Errorf("%w (anchor ends at %v, file is %v bytes)", ErrTruncatedField, offset, len(buf))
	}
	return offset, nil
}

// LocateUnique is Locate, but insists that the anchor only appears once and
// that there is room for a field of the given width after it.
func LocateUnique(buf []byte, anchor []byte, width int) (int, error) {
	offset, err := Locate(buf, anchor)
	if err != nil {
		return 0, err
	}
	if width < 1 {
		width = 1
	}
	if offset+width > len(buf) {
		return 0, fmt.Errorf("%w (%v byte field at %v, file is %v bytes)", ErrTruncatedField, width, offset, len(buf))
	}
	// Overlapping matches count too, hence starting one byte after the first match rather than after its end.
	first := offset - len(anchor)
	if next := bytes.Index(buf[first+1:], anchor); next >= 0 {
		return 0, fmt.Errorf("%w: anchor found at %v and %v", ErrAmbiguousTarget, first, first+1+next)
	}
	return offset, nil
}

// Find tries each layout in turn and returns the first one whose anchor is present.
func Find(buf []byte, layouts []types.Layout) (types.Layout, int, error) {
	for _, layout := range layouts {
		offset, err := LocateUnique(buf, layout.Anchor, layout.Width)
		if errors.Is(err, ErrSignatureNotFound) {
			continue
		}
		if err != nil {
			return layout, 0, fmt.Errorf("%v: %w", layout.Name, err)
		}
		return layout, offset, nil
	}

	names := []string{}
	for _, layout := range layouts {
		names = append(names, layout.Name)
	}
	return types.Layout{}, 0, fmt.Errorf("%w (tried: %v)", ErrSignatureNotFound, strings.Join(names, ", "))
}

// Scan returns the start offset of every occurrence of anchor, overlapping ones included.
func Scan(buf []byte, anchor []byte) []int {
	out := []int{}
	if len(anchor) == 0 {
		return out
	}
	cur := 0
	for {
		idx := bytes.Index(buf[cur:], anchor)
		if idx < 0 {
			return out
		}
		out = append(out, cur+idx)
		cur += idx + 1
	}
}

// ReadField returns the field at offset.  Offsets come from Locate, so they are always in range.
func ReadField(buf []byte, offset int) byte {
	return buf[offset]
}

// Load reads a whole save file into memory.  Saves are a few MB at most, so this is fine.
func Load(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// ParseAnchor decodes a hex anchor, e.g. "47616d65".  Whitespace is ignored
// so anchors can be pasted straight out of a hex editor.
func ParseAnchor(str string) ([]byte, error) {
	str = strings.Join(strings.Fields(str), "")
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	anchor, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("bad anchor %q: %w", str, err)
	}
	if len(anchor) == 0 {
		return nil, ErrEmptyAnchor
	}
	return anchor, nil
}

// LocateField loads a file and finds the field in it.
func LocateField(filename string, layouts []types.Layout) (types.Field, error) {
	buf, err := Load(filename)
	if err != nil {
		return types.Field{}, err
	}
	return FieldIn(filename, buf, layouts)
}

// FieldIn is LocateField for a file that is already in memory.
func FieldIn(filename string, buf []byte, layouts []types.Layout) (types.Field, error) {
	layout, offset, err := Find(buf, layouts)
	if err != nil {
		return types.Field{}, err
	}
	return types.Field{
		Path:   filename,
		Layout: layout,
		Offset: offset,
		Value:  ReadField(buf, offset),
		Size:   len(buf),
	}, nil
}
