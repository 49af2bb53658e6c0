// Package report renders command summaries as terminal tables.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Align is a column alignment
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Table collects rows for rendering
type Table struct {
	Title   string
	Headers []string
	Aligns  []Align
	rows    [][]string
}

// New returns a table with the given title and headers
func New(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AlignRight right-aligns the zero based columns cols.
func (t *Table) AlignRight(cols ...int) *Table {
	if len(t.Aligns) < len(t.Headers) {
		t.Aligns = append(t.Aligns, make([]Align, len(t.Headers)-len(t.Aligns))...)
	}
	for _, c := range cols {
		if c >= 0 && c < len(t.Aligns) {
			t.Aligns[c] = AlignRight
		}
	}
	return t
}

// Row appends a row. Values are formatted with %v, floats with 4 decimals.
func (t *Table) Row(values ...any) {
	row := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case float64:
			row[i] = fmt.Sprintf("%.4f", x)
		case float32:
			row[i] = fmt.Sprintf("%.4f", x)
		default:
			row[i] = fmt.Sprint(x)
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

// Render formats the table. Headers are colored when colorize is set.
func (t *Table) Render(colorize bool) string {
	columns := len(t.Headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if colorize {
		tw.Style().Color.Header = text.Colors{text.FgHiBlue, text.Bold}
		tw.Style().Color.Title = text.Colors{text.Bold}
	}
	if t.Title != "" {
		tw.SetTitle(strings.TrimSpace(t.Title))
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = t.Headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range t.rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(t.Aligns) && t.Aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// Fprint renders the table to w, colored when w is a terminal.
func (t *Table) Fprint(w io.Writer) error {
	_, err := fmt.Fprintln(w, t.Render(ShouldColorize(w)))
	return err
}

// ShouldColorize reports whether w is a terminal
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
