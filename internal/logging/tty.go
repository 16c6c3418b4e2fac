package logging

import (
	"io"
	"os"

	"golang.org/x/term"
)

// ForceColorEnv forces colored log output even when stderr is redirected,
// for CI logs that render ANSI codes.
const ForceColorEnv = "PNPM_CATALOG_FORCE_COLOR"

// IsTTY reports whether w is a terminal. Any writer exposing Fd() is
// checked, which covers *os.File and most wrappers around it.
func IsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// SupportsColor reports whether colored output should be written to w.
func SupportsColor(w io.Writer) bool {
	return colorDecision(os.LookupEnv, IsTTY(w))
}

// colorDecision applies, in order: NO_COLOR (https://no-color.org) always
// wins, then the force variable, then TERM=dumb, then the TTY check.
func colorDecision(lookup func(string) (string, bool), isTTY bool) bool {
	if _, ok := lookup("NO_COLOR"); ok {
		return false
	}
	if v, ok := lookup(ForceColorEnv); ok && v != "" && v != "0" {
		return true
	}
	if v, _ := lookup("TERM"); v == "dumb" {
		return false
	}
	return isTTY
}
