// Package output renders command results and errors for the chaincache CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how results are written.
type Format string

// Supported formats. Auto resolves to text on a terminal and JSON otherwise.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// TextRenderer is implemented by results with a human-readable form.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Formatter writes results in a resolved (non-auto) format.
type Formatter struct {
	format Format
	w      io.Writer
}

// NewFormatter returns a formatter writing to w.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, w: w}
}

// Format returns the resolved format.
func (f *Formatter) Format() Format {
	return f.format
}

// IsJSON reports whether results are written as JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Print writes v. In text mode a TextRenderer renders itself, strings and
// Stringers print as a line, and anything else falls back to indented JSON:
// chain values carry their own JSON codecs and read fine that way.
func (f *Formatter) Print(v any) error {
	if f.format != FormatJSON {
		switch val := v.(type) {
		case TextRenderer:
			return val.RenderText(f.w)
		case string:
			_, err := fmt.Fprintln(f.w, val)
			return err
		case fmt.Stringer:
			_, err := fmt.Fprintln(f.w, val.String())
			return err
		}
	}
	return writeJSON(f.w, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DetectFormat resolves auto (or empty) to text when w is a terminal and to
// JSON otherwise, so piped output stays machine-readable.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto && explicit != "" {
		return explicit
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: Fd fits in int
		return FormatText
	}
	return FormatJSON
}

// ParseFormat parses a format name. Unknown names mean auto.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON
	case FormatText:
		return FormatText
	default:
		return FormatAuto
	}
}
