package state

import (
	"github.com/roach88/fintrack/internal/transport"
)

// State is a snapshot of a store.
//
// Success and Error are never both true. Data is nil after a failure and
// during loading.
type State[T any] struct {
	Data       *T
	Loading    bool
	Error      bool
	ErrorData  error
	Success    bool
	LastParams *Params
}

// Idle reports whether no execute is in flight.
func (s State[T]) Idle() bool {
	return !s.Loading
}

// Status is the untyped view of a State, for tooling that handles stores
// of different payload types together.
type Status struct {
	Name         string  `json:"name"`
	Data         any     `json:"data"`
	Loading      bool    `json:"loading"`
	Error        bool    `json:"error"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ErrorStatus  int     `json:"error_status,omitempty"`
	Success      bool    `json:"success"`
	LastParams   *Params `json:"last_params,omitempty"`
	ErrorData    error   `json:"-"`
}

func statusOf[T any](name string, s State[T]) Status {
	st := Status{
		Name:       name,
		Loading:    s.Loading,
		Error:      s.Error,
		Success:    s.Success,
		LastParams: s.LastParams,
		ErrorData:  s.ErrorData,
	}
	if s.Data != nil {
		st.Data = s.Data
	}
	if s.ErrorData != nil {
		st.ErrorMessage = transport.MessageOf(s.ErrorData)
		st.ErrorStatus = transport.StatusOf(s.ErrorData)
	}
	return st
}
