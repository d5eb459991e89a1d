package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"raftedit/utils"
)

// ui prints coloured status lines
type ui struct {
	out io.Writer

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
}

func new_ui(out io.Writer, mode string) *ui {
	u := &ui{
		out:    out,
		green:  color.New(color.FgGreen, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow, color.Bold),
		blue:   color.New(color.FgCyan, color.Bold),
	}

	use_color := false
	switch mode {
	case utils.COLOR_ALWAYS:
		use_color = true
	case utils.COLOR_AUTO:
		// Only colour a real terminal; escape codes in a redirected file are just noise
		f, ok := out.(*os.File)
		use_color = ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}

	for _, c := range []*color.Color{u.green, u.red, u.yellow, u.blue} {
		if use_color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return u
}

func (u *ui) println(a ...interface{}) {
	fmt.Fprintln(u.out, a...)
}

func (u *ui) ok(format string, a ...interface{}) {
	fmt.Fprintln(u.out, u.green.Sprintf("✓ "+format, a...))
}

func (u *ui) fail(format string, a ...interface{}) {
	fmt.Fprintln(u.out, u.red.Sprintf("✗ "+format, a...))
}

func (u *ui) warn(format string, a ...interface{}) {
	fmt.Fprintln(u.out, u.yellow.Sprintf("⚠ "+format, a...))
}

func (u *ui) header(format string, a ...interface{}) {
	fmt.Fprintln(u.out, u.blue.Sprintf(format, a...))
}

// hilite is for values inside an otherwise plain line
func (u *ui) hilite(str string) string {
	return u.green.Sprint(str)
}
