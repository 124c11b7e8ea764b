package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/hongminglow/carepoint/internal/gateway"
)

// Exit code constants
const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitUsageError = 2
	ExitAuth       = 3
	ExitBackend    = 4
	ExitConfig     = 5
)

// CLIError is a structured error with user-facing context
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
	Err        error
}

// Error implements the error interface, returning the summary
func (e *CLIError) Error() string {
	return e.Summary
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// FromError turns any command error into a CLIError. Backend failures keep the
// backend's message and get a suggestion matching their kind.
func FromError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		return &CLIError{Summary: err.Error(), ExitCode: ExitGeneral, Err: err}
	}

	out := &CLIError{Summary: gwErr.Message(), ExitCode: ExitBackend, Err: err}
	if out.Summary == "" {
		out.Summary = gwErr.Kind.String()
	}
	switch gwErr.Kind {
	case gateway.InvalidCredentials:
		out.ExitCode = ExitAuth
		out.Suggestion = "check the username and password"
	case gateway.Unauthenticated:
		out.ExitCode = ExitAuth
		out.Summary = "session expired or was rejected"
		out.Detail = gwErr.Message()
		out.Suggestion = "run 'carectl login'"
	case gateway.Forbidden:
		out.Suggestion = "this action is not permitted for your role"
	case gateway.Validation:
		if len(gwErr.Fields) > 1 {
			out.Detail = fieldDetail(gwErr)
		}
	case gateway.NetworkError:
		out.Summary = "could not reach the backend"
		out.Detail = gwErr.Error()
		out.Suggestion = "check API_BASE_URL and that the backend is running"
	case gateway.ServerError, gateway.MalformedResponse:
		out.Detail = gwErr.Error()
	}
	return out
}

func fieldDetail(e *gateway.Error) string {
	var detail string
	for _, key := range e.FieldNames() {
		for _, msg := range e.Fields[key] {
			if detail != "" {
				detail += "; "
			}
			detail += fmt.Sprintf("%s: %s", key, msg)
		}
	}
	return detail
}

// FormatError prints a structured error message to stderr
func (p *Printer) FormatError(e *CLIError) {
	if p.useColors {
		color.New(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			color.New(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			fmt.Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	}
}
