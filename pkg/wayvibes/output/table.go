package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// TableFormatter renders a styled table for terminals.
type TableFormatter struct{}

var tableColumns = []string{"", "ID", "NAME", "VERSION", "AUTHOR", "SIZE", "IMPORTED"}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Result) error {
	header := LabelStyle.Render("Packs:") + " " + ValueStyle.Render(r.Root)
	w.WriteString(HeaderBox.Render(header))
	w.WriteString("\n")

	if len(r.Packs) == 0 {
		w.WriteString(MutedStyle.Render("  No sound packs installed. Import one with `wayvibes-ui import <archive>`."))
		w.WriteString("\n")
		return nil
	}

	rows := make([][]string, 0, len(r.Packs))
	for _, p := range r.Packs {
		marker := ""
		if p.ID == r.ActiveID {
			marker = "*"
		}
		imported := "-"
		if !p.ImportedAt.IsZero() {
			imported = humanize.Time(p.ImportedAt)
		}
		rows = append(rows, []string{marker, p.ID, p.Name, p.Version, p.AuthorOr("-"), p.HumanSize(), imported})
	}

	widths := make([]int, len(tableColumns))
	for i, col := range tableColumns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	cells := make([]string, len(tableColumns))
	for i, col := range tableColumns {
		cells[i] = TableHeaderStyle.Render(pad(col, widths[i]))
	}
	w.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	w.WriteString("\n")

	for i, row := range rows {
		style := ValueStyle
		if r.Packs[i].ID == r.ActiveID {
			style = ActiveStyle
		}
		for j, cell := range row {
			cells[j] = style.Render(pad(cell, widths[j]))
		}
		w.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		w.WriteString("\n")
	}

	footer := fmt.Sprintf("%d pack(s)", len(r.Packs))
	if total := r.TotalSize(); total > 0 {
		footer += ", " + humanize.IBytes(uint64(total))
	}
	w.WriteString(MutedStyle.Render(footer))
	w.WriteString("\n")
	return nil
}

func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

var _ Formatter = (*TableFormatter)(nil)
