package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error  ErrorDetail   `json:"error"`
	Others []ErrorDetail `json:"others,omitempty"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// FormatError formats an error for display. Errors joined with errors.Join
// are rendered one after another; the first one decides the exit code.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	all := flatten(err)
	if format == FormatJSON {
		out := ErrorOutput{Error: detail(all[0])}
		for _, e := range all[1:] {
			out.Others = append(out.Others, detail(e))
		}
		return writeJSON(w, out)
	}

	var sb strings.Builder
	for i, e := range all {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeErrorText(&sb, detail(e))
	}
	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// flatten expands a joined error into its parts.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []error
		for _, e := range joined.Unwrap() {
			if e != nil {
				out = append(out, flatten(e)...)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []error{err}
}

func detail(err error) ErrorDetail {
	var ce *ccerr.Error
	if !errors.As(err, &ce) {
		return ErrorDetail{
			Code:     "GENERAL_ERROR",
			Message:  err.Error(),
			ExitCode: ccerr.ExitGeneral,
		}
	}
	d := ErrorDetail{
		Code:       ce.Code,
		Message:    ce.Message,
		Details:    ce.Details,
		Suggestion: ce.Suggestion,
		ExitCode:   ce.ExitCode,
	}
	if ce.Cause != nil {
		d.Cause = ce.Cause.Error()
	}
	return d
}

func writeErrorText(sb *strings.Builder, d ErrorDetail) {
	fmt.Fprintf(sb, "Error: %s\n", d.Message)
	if d.Cause != "" {
		fmt.Fprintf(sb, "  cause: %s\n", d.Cause)
	}

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(sb, "  %s: %s\n", k, d.Details[k])
		}
	}

	if d.Suggestion != "" {
		fmt.Fprintf(sb, "\nSuggestion: %s\n", d.Suggestion)
	}
}
