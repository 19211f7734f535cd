package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/fintrack/internal/state"
)

// Exit codes.
const (
	ExitSuccess      = 0 // everything succeeded
	ExitFailure      = 1 // a store failed, a scenario failed or the catalog is invalid
	ExitCommandError = 2 // bad arguments, unreadable config, missing journal
)

// Error codes carried in JSON error responses.
const (
	ErrCodeGeneric   = "E_GENERIC"
	ErrCodeConfig    = "E_CONFIG"
	ErrCodeUnknown   = "E_UNKNOWN_STORE"
	ErrCodeExecute   = "E_EXECUTE"
	ErrCodeCatalog   = "E_CATALOG"
	ErrCodeCycle     = "E_CYCLE"
	ErrCodeJournal   = "E_JOURNAL"
	ErrCodeArguments = "E_ARGS"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not an
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter writes JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. Text output prints data with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error response.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog writes to ErrWriter when verbose, so JSON output stays clean.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// WriteStatus prints one store status in text form:
//
//	GetAccounts  success
//	  [{"id":1,...}]
func (f *OutputFormatter) WriteStatus(st state.Status) {
	fmt.Fprintf(f.Writer, "%-28s %s\n", st.Name, statusWord(st))
	if st.Error {
		fmt.Fprintf(f.Writer, "  %s\n", errorLine(st))
		return
	}
	if st.Data == nil {
		return
	}
	data, err := json.MarshalIndent(st.Data, "  ", "  ")
	if err != nil {
		fmt.Fprintf(f.Writer, "  (unprintable data: %v)\n", err)
		return
	}
	fmt.Fprintf(f.Writer, "  %s\n", data)
}

func statusWord(st state.Status) string {
	switch {
	case st.Loading:
		return "loading"
	case st.Error:
		return "error"
	case st.Success:
		return "success"
	default:
		return "idle"
	}
}

func errorLine(st state.Status) string {
	var b strings.Builder
	if st.ErrorStatus != 0 {
		fmt.Fprintf(&b, "%d ", st.ErrorStatus)
	}
	b.WriteString(st.ErrorMessage)
	return b.String()
}
