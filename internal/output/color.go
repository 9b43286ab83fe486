package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme provides color functions for the recap table and error lines
type ColorScheme struct {
	// Success colors hosts with no failures and no changes
	Success func(format string, a ...interface{}) string

	// Changed colors hosts that reported changes but no failures
	Changed func(format string, a ...interface{}) string

	// Failure colors hosts with failures or unreachable counts
	Failure func(format string, a ...interface{}) string

	// Error colors fatal ERROR lines on stderr
	Error func(format string, a ...interface{}) string

	// Header colors section headers and table headers
	Header func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a new color scheme.
// Colors are automatically disabled for non-TTY outputs or when noColor is true.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	useColor := !noColor && isTTY(w)

	if !useColor {
		plain := color.New().Sprintf
		return &ColorScheme{
			Success:  plain,
			Changed:  plain,
			Failure:  plain,
			Error:    plain,
			Header:   plain,
			Disabled: true,
		}
	}

	return &ColorScheme{
		Success:  color.New(color.FgGreen).Sprintf,
		Changed:  color.New(color.FgYellow).Sprintf,
		Failure:  color.New(color.FgRed, color.Bold).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Disabled: false,
	}
}

// isTTY checks if the writer is a TTY
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// HostColor returns the color function for a host's recap line.
// Failure wins over changed, changed wins over success.
func (cs *ColorScheme) HostColor(failures, unreachable, changed int) func(format string, a ...interface{}) string {
	switch {
	case failures > 0 || unreachable > 0:
		return cs.Failure
	case changed > 0:
		return cs.Changed
	default:
		return cs.Success
	}
}
