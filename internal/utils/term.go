package utils

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// TermWidth returns the current terminal width.
//
// In CI / tests there is often no TTY attached. In that case we fall back to
// a sane default width (80) or the value from $COLUMNS if present.
func TermWidth() int {
	if c := os.Getenv("COLUMNS"); c != "" {
		if n, err := strconv.Atoi(c); err == nil && n > 0 {
			return n
		}
	}
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
