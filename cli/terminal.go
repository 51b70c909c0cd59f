package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func IsStderrTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// IsPiped reports whether stdin carries piped data rather than a terminal.
func IsPiped() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) == 0
}

var (
	colorsOnce    sync.Once
	colorsEnabled bool
)

// ColorsEnabled decides color output once per process: NO_COLOR wins,
// FORCE_COLOR overrides, otherwise stdout must be a terminal.
func ColorsEnabled() bool {
	colorsOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// TerminalWidth returns the stdout width, defaulting to 80 and clamping to a
// readable minimum.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width < 40 {
		return 40
	}
	return width
}
