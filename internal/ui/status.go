package ui

import (
	"fmt"
	"io"

	"LinkGrab/internal"

	"github.com/fatih/color"
)

// StatusPrinter writes status lines styled by kind.
type StatusPrinter struct {
	w       io.Writer
	info    *color.Color
	success *color.Color
	failure *color.Color
}

func NewStatusPrinter(w io.Writer) *StatusPrinter {
	return &StatusPrinter{
		w:       w,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
}

// Print writes one status line.
func (p *StatusPrinter) Print(st internal.Status) {
	c := p.info
	switch st.Kind {
	case internal.StatusSuccess:
		c = p.success
	case internal.StatusError:
		c = p.failure
	}
	_, _ = c.Fprintln(p.w, st.Text)
}

// PrintChecklist writes the list with 1-based numbers, as used by --select.
func PrintChecklist(w io.Writer, items []internal.ChecklistItem) {
	for _, it := range items {
		mark := " "
		if it.Checked {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %3d. %s\n", mark, it.Index+1, it.Label)
	}
}
