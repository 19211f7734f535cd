package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies transport failures.
type ErrorKind int

const (
	// KindNetwork means no response was obtained.
	KindNetwork ErrorKind = iota
	// KindServer means the server answered with a non-2xx status.
	KindServer
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// NetworkErrorMessage is the message of every KindNetwork error.
const NetworkErrorMessage = "network error"

// Error is the normalized failure returned by a Transport.
type Error struct {
	Kind    ErrorKind
	Method  string
	Path    string
	Status  int    // 0 for network failures
	Message string // server-provided message, or NetworkErrorMessage
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Message, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewServerError builds a KindServer error from a status and response body.
func NewServerError(method, path string, status int, body []byte) *Error {
	return &Error{
		Kind:    KindServer,
		Method:  method,
		Path:    path,
		Status:  status,
		Message: extractMessage(status, body),
	}
}

// NewNetworkError builds a KindNetwork error wrapping cause.
func NewNetworkError(method, path string, cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Method:  method,
		Path:    path,
		Message: NetworkErrorMessage,
		Err:     cause,
	}
}

// extractMessage picks the most specific message available:
// a JSON "message" field, then a JSON "error" field, then the raw body,
// then the status text.
func extractMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// MessageOf returns the server-provided message carried by err,
// falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

// IsNetworkError reports whether err is a transport failure with no response.
func IsNetworkError(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindNetwork
}

// IsServerError reports whether err carries a non-2xx response.
func IsServerError(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindServer
}
