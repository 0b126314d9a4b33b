// Package ui renders the CLI's end-of-run summary.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Summary describes one finished upsert run.
type Summary struct {
	Table      string
	Source     string
	OnConflict pgbulk.ConflictAction
	Condition  string
	Result     pgbulk.Result
	Err        error
}

// Render returns the summary as aligned key/value lines, boxed and
// colored in ModeStyled.
func (s Summary) Render(mode Mode) string {
	rows := [][2]string{
		{"Table", s.Table},
		{"Source", s.Source},
		{"On conflict", s.OnConflict.String()},
	}
	if s.Condition != "" {
		rows = append(rows, [2]string{"When", s.Condition})
	}
	rows = append(rows,
		[2]string{"Staged", fmt.Sprintf("%d", s.Result.Staged)},
		[2]string{"Affected", fmt.Sprintf("%d", s.Result.Affected)},
		[2]string{"Phase", s.Result.Phase.String()},
		[2]string{"Duration", s.Result.Duration.Round(time.Millisecond).String()},
	)

	status := symbolCheck + " committed"
	if s.Err != nil {
		status = symbolCross + " aborted"
	}

	if mode == ModePlain {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", status)
		for _, r := range rows {
			fmt.Fprintf(&b, "  %-12s %s\n", r[0]+":", r[1])
		}
		return b.String()
	}

	lines := make([]string, 0, len(rows)+2)
	if s.Err != nil {
		lines = append(lines, errorStyle.Render(status))
	} else {
		lines = append(lines, successStyle.Render(status))
	}
	lines = append(lines, "")
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return boxStyle.Render(titleStyle.Render("pgbulk upsert")+"\n"+body) + "\n"
}
