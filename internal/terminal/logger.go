package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Style represents a log message style.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

// clearLine erases whatever the progress spinner last drew.
const clearLine = "\r\033[2K"

// Logger writes styled "[crv]" lines. It is safe for concurrent use; the
// runner logs from every reviewer goroutine.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	isTTY bool
}

// NewLogger creates a logger writing to stderr.
func NewLogger() *Logger {
	return &Logger{out: os.Stderr, isTTY: IsStderrTTY()}
}

// NewLoggerTo creates a logger writing to w. Lines are never cleared.
func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{out: w}
}

func styleColor(style Style) string {
	switch style {
	case StyleSuccess:
		return Green
	case StyleWarning:
		return Yellow
	case StyleError:
		return Red
	case StyleDim:
		return Dim
	case StylePhase:
		return Magenta + Bold
	default:
		return Cyan
	}
}

// tag renders the "[crv]" prefix with its name in color.
func tag(color string) string {
	return fmt.Sprintf("%s[%s%scrv%s%s]%s",
		Color(Dim), Color(Reset), Color(color), Color(Reset), Color(Dim), Color(Reset))
}

// Log prints a styled log message.
func (l *Logger) Log(msg string, style Style) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isTTY {
		fmt.Fprint(l.out, clearLine)
	}
	if style == StyleDim {
		msg = Color(Dim) + msg + Color(Reset)
	}
	fmt.Fprintf(l.out, "%s %s\n", tag(styleColor(style)), msg)
}

// Logf prints a formatted styled log message.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}
