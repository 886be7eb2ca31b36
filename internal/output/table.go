package output

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders tabular data for text output.
type Table struct {
	w table.Writer
}

// NewTable creates a new table with the given headers. No headers means a
// headerless table.
func NewTable(headers ...string) *Table {
	tw := table.NewWriter()
	style := table.StyleLight
	style.Options.DrawBorder = false
	style.Options.SeparateColumns = false
	tw.SetStyle(style)
	if len(headers) > 0 {
		tw.AppendHeader(toRow(headers))
	}
	return &Table{w: tw}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.w.AppendRow(toRow(cells))
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return t.w.Length()
}

// Render renders the table to w followed by a newline.
func (t *Table) Render(w io.Writer) error {
	if _, err := io.WriteString(w, t.w.Render()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// String returns the table as a string.
func (t *Table) String() string {
	return t.w.Render()
}

// KeyValues renders label/value pairs as a two-column table.
func KeyValues(w io.Writer, pairs ...[2]string) error {
	t := NewTable()
	for _, p := range pairs {
		t.AddRow(p[0], p[1])
	}
	return t.Render(w)
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
