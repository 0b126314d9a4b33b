package ui

import (
	"os"

	"golang.org/x/term"
)

// Mode selects between styled and plain output.
type Mode int

const (
	// ModePlain is used for CI pipelines, scripts and redirected output.
	ModePlain Mode = iota
	// ModeStyled is used when a human watches the terminal.
	ModeStyled
)

// DetectMode decides how the summary written to f is rendered.
//
// Returns ModePlain if:
//   - PGBULK_NON_INTERACTIVE=1 is set
//   - CI is set
//   - NO_COLOR is set
//   - f is not a terminal
func DetectMode(f *os.File) Mode {
	if os.Getenv("PGBULK_NON_INTERACTIVE") == "1" {
		return ModePlain
	}
	if os.Getenv("CI") != "" || os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return ModePlain
	}
	return ModeStyled
}
