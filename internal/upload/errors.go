package upload

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a preview or execute request is started while
// another one is still in flight on the same session.
var ErrBusy = errors.New("upload: a request is already in flight for this session")

// PreflightError reports a draft payload that obviously cannot succeed:
// zero items, no bound preset, outstanding validation errors, or a payload
// over the preset's size budget. No network call is made.
type PreflightError struct {
	Reason string
}

func (e *PreflightError) Error() string {
	return "preflight: " + e.Reason
}

// TransportError wraps a failed remote call. It is surfaced verbatim to
// the caller; retry, if desired, is a decision made one layer up.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
