package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an unstyled, tab-aligned table for scripts.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprintln(tw, "ACTIVE\tID\tNAME\tVERSION\tSIZE"); err != nil {
		return err
	}
	for _, p := range r.Packs {
		active := ""
		if p.ID == r.ActiveID {
			active = "*"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", active, p.ID, p.Name, p.Version, p.HumanSize()); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// MarkdownFormatter writes a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| ID | NAME | VERSION | AUTHOR | ACTIVE |\n")
	w.WriteString("|----|------|---------|--------|--------|\n")
	for _, p := range r.Packs {
		active := ""
		if p.ID == r.ActiveID {
			active = "yes"
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			escapeMarkdownPipe(p.ID),
			escapeMarkdownPipe(p.Name),
			escapeMarkdownPipe(p.Version),
			escapeMarkdownPipe(p.AuthorOr("")),
			active)
	}
	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*MarkdownFormatter)(nil)
)
