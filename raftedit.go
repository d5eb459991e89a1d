package main

// Game mode editor for Raft savegames
//
// example usage:
//
// raftedit users
// raftedit worlds Steve
// raftedit get Steve "My World"
// raftedit set Steve "My World" creative
// raftedit set Steve my_w 0x05
// raftedit backups Steve "My World"
// raftedit restore Steve "My World" latest
// raftedit scan Save.rgd
// raftedit --dir D:\Raft\User watch Steve "My World"

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"raftedit/backups"
	"raftedit/editor"
	"raftedit/modewatch"
	"raftedit/readers"
	"raftedit/types"
	"raftedit/utils"
)

const (
	EXIT_OK     = 0
	EXIT_OTHER  = 1
	EXIT_LOCATE = 2
	EXIT_BACKUP = 3
	EXIT_WRITE  = 4
)

// How long a save must sit unchanged before "watch" reads it
const WATCH_SETTLE = 2 * time.Second

var errUsage = errors.New("usage")

// options that go before the command
type options struct {
	dir      string
	ini      string
	no_color bool
}

// app is everything a command needs
type app struct {
	ui   *ui
	cfg  utils.Config
	root string
	ed   *editor.Editor
	now  func() time.Time
	ctx  context.Context
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := main2(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// main2 runs a command and returns the process exit code
func main2(ctx context.Context, args []string, out io.Writer) int {
	opts, args, err := parse_options(args)
	if err != nil {
		new_ui(out, utils.COLOR_AUTO).fail("%v", err)
		return EXIT_OTHER
	}

	ini_file := opts.ini
	if ini_file == "" {
		ini_file = utils.INI_FILE
	}
	cfg, err := utils.LoadConfig(ini_file)
	if err != nil {
		new_ui(out, utils.COLOR_AUTO).fail("Bad config file %v: %v", ini_file, err)
		return EXIT_OTHER
	}
	if opts.no_color {
		cfg.Color = utils.COLOR_NEVER
	}

	a := &app{
		ui:   new_ui(out, cfg.Color),
		cfg:  cfg,
		root: utils.GetSavefileDir(opts.dir, cfg),
		ed:   editor.New(cfg.Layouts, cfg.Modes),
		now:  time.Now,
		ctx:  ctx,
	}

	err = a.run(args)
	if err != nil {
		a.report(err)
		return exit_code(err)
	}
	return EXIT_OK
}

func parse_options(args []string) (options, []string, error) {
	opts := options{}
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		switch args[0] {
		case "--dir", "--ini":
			if len(args) < 2 {
				return opts, nil, fmt.Errorf("%v needs an argument", args[0])
			}
			if args[0] == "--dir" {
				opts.dir = args[1]
			} else {
				opts.ini = args[1]
			}
			args = args[2:]
		case "--no-color":
			opts.no_color = true
			args = args[1:]
		default:
			return opts, nil, fmt.Errorf("unknown option %v", args[0])
		}
	}
	return opts, args, nil
}

var help_text = []string{
	"Raft Savegame Editor",
	"",
	"Options (before the command):",
	"   --dir (path): save root, i.e. the Raft \"User\" folder",
	"   --ini (file): config file (default " + utils.INI_FILE + ")",
	"   --no-color: plain output",
	"",
	"Commands:",
	"help: display this text",
	"modes: list known game modes",
	"users: list users",
	"worlds (user): list a user's worlds",
	"get (user) (world): show the current game mode",
	"set (user) (world) (mode): change the game mode.  Mode is a name or a number (e.g. 0x02)",
	"backups (user) (world): list backups",
	"restore (user) (world) (backup): put a backup back.  \"latest\" means the newest one",
	"scan (file) [hex anchor]: show everywhere an anchor occurs in a file",
	"watch (user) (world): show the game mode every time the game saves",
	"",
	"Notes:",
	"   It is usually not necessary to type the full name of something",
	"e.g. \"crea\" will be recognized as \"Creative\".",
	"   The save folder is always backed up before anything is written.",
}

func (a *app) run(args []string) error {
	cmd := "help"
	if len(args) == 0 {
		a.ui.println("No args detected - falling back to \"help\", since you clearly need it...")
	} else {
		cmd = args[0]
		args = args[1:]
	}

	need := func(n int, what string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %v %v", errUsage, cmd, what)
		}
		if len(args) > n {
			return fmt.Errorf("%w: unexpected extra argument %q", errUsage, args[n])
		}
		return nil
	}

	switch cmd {
	case "help":
		for _, ht := range help_text {
			a.ui.println(ht)
		}
		return nil

	case "modes":
		for _, code := range a.cfg.Modes.Codes() {
			a.ui.println(a.cfg.Modes.Describe(code))
		}
		return nil

	case "users":
		users, err := utils.Users(a.root)
		if err != nil {
			return err
		}
		for _, u := range users {
			a.ui.println(u)
		}
		return nil

	case "worlds":
		if err := need(1, "(user)"); err != nil {
			return err
		}
		user, err := a.pick_user(args[0])
		if err != nil {
			return err
		}
		worlds, err := utils.Worlds(a.root, user)
		if err != nil {
			return err
		}
		for _, w := range worlds {
			a.ui.println(w)
		}
		return nil

	case "get":
		if err := need(2, "(user) (world)"); err != nil {
			return err
		}
		return a.get(args[0], args[1])

	case "set":
		if len(args) == 2 {
			str := "Set to what?  Options are:"
			for _, code := range a.cfg.Modes.Codes() {
				str += "\n" + a.cfg.Modes.Describe(code)
			}
			return fmt.Errorf("%w: %v", errUsage, str)
		}
		if err := need(3, "(user) (world) (mode)"); err != nil {
			return err
		}
		return a.set(args[0], args[1], args[2])

	case "backups":
		if err := need(2, "(user) (world)"); err != nil {
			return err
		}
		return a.list_backups(args[0], args[1])

	case "restore":
		if err := need(3, "(user) (world) (backup)"); err != nil {
			return err
		}
		return a.restore(args[0], args[1], args[2])

	case "scan":
		if len(args) == 1 {
			return a.scan(args[0], "")
		}
		if err := need(2, "(file) [hex anchor]"); err != nil {
			return err
		}
		return a.scan(args[0], args[1])

	case "watch":
		if err := need(2, "(user) (world)"); err != nil {
			return err
		}
		return a.watch(args[0], args[1])
	}

	return fmt.Errorf("%w: unknown command %q (try \"help\")", errUsage, cmd)
}

func (a *app) pick_user(arg string) (string, error) {
	users, err := utils.Users(a.root)
	if err != nil {
		return "", err
	}
	return fuzzy_pick(users, arg, "user")
}

// find_save fuzzy-matches user and world and finds the save file
func (a *app) find_save(user_arg string, world_arg string) (utils.Save, error) {
	user, err := a.pick_user(user_arg)
	if err != nil {
		return utils.Save{}, err
	}
	worlds, err := utils.Worlds(a.root, user)
	if err != nil {
		return utils.Save{}, err
	}
	world, err := fuzzy_pick(worlds, world_arg, "world")
	if err != nil {
		return utils.Save{}, err
	}
	return utils.FindSave(a.root, user, world)
}

func (a *app) get(user_arg string, world_arg string) error {
	save, err := a.find_save(user_arg, world_arg)
	if err != nil {
		return err
	}
	field, err := a.ed.Inspect(save.File)
	if err != nil {
		return err
	}

	a.ui.ok("Selected save: %v (%v)", save.World, filepath.Base(save.Folder))
	a.ui.println("Current game mode:", a.ui.hilite(a.cfg.Modes.Describe(field.Value)))
	a.ui.println(fmt.Sprintf("   at offset %v (0x%x) of %v (%v bytes), layout %v", field.Offset, field.Offset, save.File, field.Size, field.Layout.Name))
	return nil
}

func (a *app) set(user_arg string, world_arg string, mode_arg string) error {
	value, err := parse_mode(mode_arg, a.cfg.Modes)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	save, err := a.find_save(user_arg, world_arg)
	if err != nil {
		return err
	}

	a.ui.ok("Selected save: %v (%v)", save.World, filepath.Base(save.Folder))
	if !a.cfg.Modes.Known(value) {
		a.ui.warn("Warning: Unknown game mode selected (0x%02x).", value)
	}

	result, err := a.ed.Set(save.File, value)
	if err != nil {
		if phase, ok := editor.PhaseOf(err); ok && phase == editor.PHASE_WRITE {
			a.ui.fail("Backup is at: %v", result.Snapshot.Path)
		}
		return err
	}

	a.ui.println("Previous game mode:", a.ui.hilite(a.cfg.Modes.Describe(result.Before.Value)))
	a.ui.ok("Backup created at: %v (%v files, %v bytes)", result.Snapshot.Path, result.Snapshot.Files, result.Snapshot.Bytes)
	a.ui.ok("Game mode updated to %v", a.cfg.Modes.Describe(result.Value))
	if result.Before.Value == result.Value {
		a.ui.println("(That's what it already was.)")
	}
	return nil
}

func (a *app) list_backups(user_arg string, world_arg string) error {
	save, err := a.find_save(user_arg, world_arg)
	if err != nil {
		return err
	}
	snaps, err := backups.List(save.Folder)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		a.ui.println("(no backups of " + filepath.Base(save.Folder) + ")")
		return nil
	}
	for _, s := range snaps {
		a.ui.println(s.Name, "-", s.Created.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (a *app) restore(user_arg string, world_arg string, which string) error {
	save, err := a.find_save(user_arg, world_arg)
	if err != nil {
		return err
	}
	snaps, err := backups.List(save.Folder)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no backups of %v in %v", filepath.Base(save.Folder), backups.Dir(save.Folder))
	}

	var snap types.Snapshot
	if which == "latest" {
		snap = snaps[len(snaps)-1]
	} else {
		by_name := map[int]string{}
		for i, s := range snaps {
			by_name[i] = s.Name
		}
		i, _, err := fuzzy_reverse_lookup(by_name, which, "backup")
		if err != nil {
			return err
		}
		snap = snaps[i]
	}

	before, err := backups.Restore(snap, save.Folder, a.now())
	if err != nil {
		return err
	}
	a.ui.ok("Backup created at: %v", before.Path)
	a.ui.ok("Restored %v from %v", filepath.Base(save.Folder), snap.Name)
	return nil
}

// scan is a research tool: shows each place an anchor turns up, and the bytes after it
func (a *app) scan(filename string, anchor_arg string) error {
	buf, err := readers.Load(filename)
	if err != nil {
		return err
	}

	layouts := a.cfg.Layouts
	if anchor_arg != "" {
		anchor, err := readers.ParseAnchor(anchor_arg)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		layouts = []types.Layout{{Name: "command line", Anchor: anchor, Width: 1}}
	}

	a.ui.println(filename+":", len(buf), "bytes")
	for _, layout := range layouts {
		hits := readers.Scan(buf, layout.Anchor)
		a.ui.header("%v: %v match(es)", layout.Name, len(hits))
		for _, start := range hits {
			field := start + len(layout.Anchor)
			if field >= len(buf) {
				a.ui.println(fmt.Sprintf("   anchor at %v, no field (end of file)", start))
				continue
			}
			a.ui.println(fmt.Sprintf("   anchor at %v, field at %v: %v", start, field, a.cfg.Modes.Describe(buf[field])))
			end := min(field+16, len(buf))
			a.ui.println(hex.Dump(buf[field:end]))
		}
	}
	return nil
}

func (a *app) watch(user_arg string, world_arg string) error {
	save, err := a.find_save(user_arg, world_arg)
	if err != nil {
		return err
	}

	events := make(chan modewatch.Event)
	watcher := modewatch.NewWatcher(save.WorldDir, a.ed, WATCH_SETTLE)
	err = watcher.StartWatching(events)
	if err != nil {
		return err
	}
	defer watcher.StopWatching()

	field, err := a.ed.Inspect(save.File)
	if err == nil {
		a.ui.println("Current game mode:", a.ui.hilite(a.cfg.Modes.Describe(field.Value)))
	}
	a.ui.println("Watching...", save.WorldDir)
	a.ui.println("(Ctrl-C to stop)")
	a.ui.println()

	for {
		select {
		case <-a.ctx.Done():
			return nil
		case ev := <-events:
			stamp := a.now().Format("15:04:05")
			switch {
			case ev.Err != nil:
				a.ui.fail("%v %v: %v", stamp, ev.Path, ev.Err)
			case ev.Changed:
				a.ui.warn("%v game mode changed from %v to %v (%v)", stamp, a.cfg.Modes.Describe(ev.Previous), a.cfg.Modes.Describe(ev.Field.Value), filepath.Base(filepath.Dir(ev.Path)))
			default:
				a.ui.println(stamp, "saved:", a.ui.hilite(a.cfg.Modes.Describe(ev.Field.Value)), "("+filepath.Base(filepath.Dir(ev.Path))+")")
			}
		}
	}
}

// report tells the user what went wrong, and more importantly whether their save was touched
func (a *app) report(err error) {
	if errors.Is(err, errUsage) {
		a.ui.fail("%v", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		return
	}

	phase, ok := editor.PhaseOf(err)
	if !ok {
		if errors.Is(err, backups.ErrBackupFailed) {
			a.ui.fail("Backup failed, nothing was restored: %v", err)
			return
		}
		a.ui.fail("An error occurred: %v", err)
		return
	}

	switch phase {
	case editor.PHASE_LOAD:
		a.ui.fail("Could not read save file: %v", err)
	case editor.PHASE_LOCATE:
		a.ui.fail("Could not find the GameMode field: %v", err)
		a.ui.println("The save file was not modified.")
	case editor.PHASE_BACKUP:
		a.ui.fail("Could not back up the save folder: %v", err)
		a.ui.println("The save file was not modified.")
	case editor.PHASE_WRITE:
		a.ui.fail("Could not write the save file: %v", err)
		a.ui.println("The write is all-or-nothing, so the old save should still be there.  If it isn't, restore the backup above.")
	}
}

func exit_code(err error) int {
	phase, ok := editor.PhaseOf(err)
	if ok {
		switch phase {
		case editor.PHASE_LOCATE:
			return EXIT_LOCATE
		case editor.PHASE_BACKUP:
			return EXIT_BACKUP
		case editor.PHASE_WRITE:
			return EXIT_WRITE
		}
		return EXIT_OTHER
	}

	switch {
	case errors.Is(err, readers.ErrAmbiguousTarget):
		// Several .rgd files in the save folder
		return EXIT_LOCATE
	case errors.Is(err, backups.ErrBackupFailed):
		return EXIT_BACKUP
	}
	return EXIT_OTHER
}
