package utils

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"raftedit/readers"
	"raftedit/tables"
	"raftedit/types"
)

const (
	INI_FILE       = "raftedit.ini"
	LAYOUT_SECTION = "layout."

	COLOR_AUTO   = "auto"
	COLOR_ALWAYS = "always"
	COLOR_NEVER  = "never"
)

// Config is everything that can be set from raftedit.ini.
//
// Example:
//
//	dir = D:\Games\Raft\User
//	color = never
//
//	[modes]
//	0x04 = Hardcore
//
//	[layout.Raft 1.1]
//	anchor = 47616d654d6f6465 01000000 0776616c75655f5f 000802000000
//	width = 1
type Config struct {
	Dir     string
	Color   string
	Modes   tables.Modes
	Layouts []types.Layout // ini layouts first, then the built-in ones
}

func DefaultConfig() Config {
	return Config{
		Color:   COLOR_AUTO,
		Modes:   tables.DefaultModes(),
		Layouts: tables.DefaultLayouts(),
	}
}

// LoadConfig reads config from source, which is anything ini.Load accepts
// (a filename or []byte).  A missing file just means defaults.
func LoadConfig(source interface{}) (Config, error) {
	cfg := DefaultConfig()

	file, err := ini.LoadSources(ini.LoadOptions{Loose: true}, source)
	if err != nil {
		return cfg, err
	}

	// dir and color live at the top, outside any [section]
	top := file.Section("")
	cfg.Dir = top.Key("dir").String()
	if top.HasKey("color") {
		cfg.Color = strings.ToLower(top.Key("color").String())
		switch cfg.Color {
		case COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER:
		default:
			return cfg, fmt.Errorf("color must be %v, %v or %v (got %q)", COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER, cfg.Color)
		}
	}

	if file.HasSection("modes") {
		extra := map[byte]string{}
		for _, key := range file.Section("modes").Keys() {
			code, err := strconv.ParseUint(key.Name(), 0, 8)
			if err != nil {
				return cfg, fmt.Errorf("[modes] %v: not a byte value", key.Name())
			}
			extra[byte(code)] = key.String()
		}
		cfg.Modes = cfg.Modes.With(extra)
	}

	layouts := []types.Layout{}
	for _, s := range file.Sections() {
		if !strings.HasPrefix(s.Name(), LAYOUT_SECTION) {
			continue
		}
		name := strings.TrimPrefix(s.Name(), LAYOUT_SECTION)
		anchor, err := readers.ParseAnchor(s.Key("anchor").String())
		if err != nil {
			return cfg, fmt.Errorf("[%v]: %w", s.Name(), err)
		}
		width := s.Key("width").MustInt(1)
		// Only single-byte fields can be edited.  Wider ones would need an endianness, a range...
		if width != 1 {
			return cfg, fmt.Errorf("[%v]: width %v not supported", s.Name(), width)
		}
		layouts = append(layouts, types.Layout{Name: name, Anchor: anchor, Width: width})
	}
	cfg.Layouts = append(layouts, cfg.Layouts...)

	return cfg, nil
}
