package tables

// Lookup tables for things we know about the Raft save format.

import (
	"encoding/hex"
	"fmt"
	"sort"

	"raftedit/types"
)

const (
	MODE_NORMAL   = 0x00
	MODE_HARD     = 0x01
	MODE_CREATIVE = 0x02
	MODE_EASY     = 0x03
	MODE_PEACEFUL = 0x05
)

// There is no 0x04.  Presumably it was a mode that got cut.
var default_modes = map[byte]string{
	MODE_NORMAL:   "Normal",
	MODE_HARD:     "Hard",
	MODE_CREATIVE: "Creative",
	MODE_EASY:     "Easy",
	MODE_PEACEFUL: "Peaceful",
}

// "GameMode" <int 1> <len 7> "value__" <0x00 0x08 0x02 0x00 0x00 0x00>, then the mode byte
const GAMEMODE_ANCHOR = "47616d654d6f6465010000000776616c75655f5f000802000000"

const UNKNOWN = "Unknown"

// Modes maps mode codes to names.  It can't be modified after construction,
// so it is safe to hand around.
type Modes struct {
	names map[byte]string
}

func NewModes(names map[byte]string) Modes {
	m := Modes{names: make(map[byte]string, len(names))}
	for k, v := range names {
		m.names[k] = v
	}
	return m
}

// DefaultModes returns the modes the game itself knows about.
func DefaultModes() Modes {
	return NewModes(default_modes)
}

// With returns a copy of m with extra (or replaced) names.
func (m Modes) With(extra map[byte]string) Modes {
	out := NewModes(m.names)
	for k, v := range extra {
		out.names[k] = v
	}
	return out
}

func (m Modes) Known(code byte) bool {
	_, ok := m.names[code]
	return ok
}

// Name returns the name for a code, or "Unknown".  Unknown codes are perfectly
// legal in a save file, we just don't know what the game does with them.
func (m Modes) Name(code byte) string {
	name, ok := m.names[code]
	if !ok {
		return UNKNOWN
	}
	return name
}

// Describe formats a code the way the UI shows it, e.g. "Hard (0x01)"
func (m Modes) Describe(code byte) string {
	return fmt.Sprintf("%v (0x%02x)", m.Name(code), code)
}

// Codes returns all known codes in ascending order
func (m Modes) Codes() []byte {
	out := make([]byte, 0, len(m.names))
	for k := range m.names {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns a copy of the underlying table
func (m Modes) Map() map[byte]string {
	out := make(map[byte]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

// DefaultLayouts returns the built-in format layouts, most likely first.
func DefaultLayouts() []types.Layout {
	anchor, err := hex.DecodeString(GAMEMODE_ANCHOR)
	if err != nil {
		// Can only happen if someone fat-fingers the constant
		panic(err)
	}
	return []types.Layout{
		{Name: "Raft 1.0", Anchor: anchor, Width: 1},
	}
}
