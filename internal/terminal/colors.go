// Package terminal renders crv's stderr output: styled log lines, reviewer
// progress and the interactive pull request chooser.
package terminal

import (
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// ANSI color codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Cyan    = "\033[36m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Magenta = "\033[35m"
)

// defaultWidth is used when the terminal size cannot be determined.
const defaultWidth = 80

// colorsOff is global so every writer in the process agrees; the zero value
// means colors are on.
var colorsOff atomic.Bool

// DisableColors turns off color output globally.
func DisableColors() { colorsOff.Store(true) }

// EnableColors turns on color output globally.
func EnableColors() { colorsOff.Store(false) }

// Color returns c if colors are enabled, otherwise "".
func Color(c string) string {
	if colorsOff.Load() {
		return ""
	}
	return c
}

// IsTTY returns true if the given file descriptor is a TTY.
func IsTTY(fd int) bool {
	return term.IsTerminal(fd)
}

// IsStdoutTTY returns true if stdout is a TTY.
func IsStdoutTTY() bool {
	return IsTTY(int(os.Stdout.Fd()))
}

// IsStderrTTY returns true if stderr is a TTY.
func IsStderrTTY() bool {
	return IsTTY(int(os.Stderr.Fd()))
}

// GetTerminalWidth returns the width of the terminal on stderr, where all
// interactive output goes, or 80 if it cannot be determined.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
