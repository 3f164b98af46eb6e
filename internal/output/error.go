package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
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

// NewErrorDetail builds the JSON shape of err.
func NewErrorDetail(err error) ErrorDetail {
	var se *scopeerr.ScopeError
	if errors.As(err, &se) {
		d := ErrorDetail{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: se.Suggestion,
			ExitCode:   se.ExitCode,
		}
		if se.Cause != nil {
			d.Cause = se.Cause.Error()
		}
		return d
	}

	return ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: scopeerr.ExitGeneral,
	}
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: NewErrorDetail(err)})
	}
	return formatErrorText(w, err)
}

func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder

	var se *scopeerr.ScopeError
	if errors.As(err, &se) {
		sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))
		if se.Cause != nil {
			sb.WriteString(fmt.Sprintf("Cause: %s\n", se.Cause))
		}

		if len(se.Details) > 0 {
			sb.WriteString("\nDetails:\n")
			keys := make([]string, 0, len(se.Details))
			for k := range se.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, se.Details[k]))
			}
		}

		if se.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", se.Suggestion))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Error: %s\n", err.Error()))
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// FormatFailure renders a recorded failure value. JSON output is the bare
// {"code": ..., "error": ...} object.
func FormatFailure(w io.Writer, f *scopeerr.Failure, format Format) error {
	if f == nil {
		return nil
	}
	if format == FormatJSON {
		return WriteJSON(w, f)
	}
	_, err := fmt.Fprintf(w, "failed (%s): %s\n", f.Code, f.Error)
	return err
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
