// Package status models the error-kind distinctions the reactor must
// surface to its callers: a shutting-down reactor answers differently than
// one that is merely busy, and a connection failure differs from a
// programming error. It plays the role gnet's flat pkg/errors sentinel list
// plays for gnet, but as a closed set of kinds plus a message and optional
// errno, mirroring the Status(code, message, errno) shape the Reactor this
// module is modeled on uses throughout its error paths.
package status

import "fmt"

// Code enumerates the kinds of failure a reactor operation can report.
type Code int

const (
	// OK is the zero value; Status{} is always nil-equivalent via Err().
	OK Code = iota
	// ServiceUnavailable means the reactor is shutting down or overloaded;
	// retrying elsewhere, or later, may succeed.
	ServiceUnavailable
	// Aborted means the operation was cancelled before it could run, e.g. a
	// task still queued when the reactor shut down.
	Aborted
	// NetworkError means a socket-level operation failed.
	NetworkError
	// IllegalState means the operation is not valid given the reactor's
	// current state (e.g. a negotiation pool rejecting work).
	IllegalState
	// InvalidArgument means the caller passed a malformed value.
	InvalidArgument
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case ServiceUnavailable:
		return "Service unavailable"
	case Aborted:
		return "Aborted"
	case NetworkError:
		return "Network error"
	case IllegalState:
		return "Illegal state"
	case InvalidArgument:
		return "Invalid argument"
	default:
		return "Unknown"
	}
}

// Status is a Code paired with a human-readable message and an optional
// errno, the three pieces of information every STATUS(...) call site in the
// original reactor implementation carries.
type Status struct {
	code    Code
	message string
	errno   int
}

// New builds a Status. errno is 0 when there is no associated syscall error.
func New(code Code, message string, errno int) Status {
	return Status{code: code, message: message, errno: errno}
}

// OKStatus returns the canonical success value.
func OKStatus() Status { return Status{code: OK} }

// Code reports the status's kind.
func (s Status) Code() Code { return s.code }

// Errno reports the associated syscall errno, or 0 if none.
func (s Status) Errno() int { return s.errno }

// IsOK reports whether this status represents success.
func (s Status) IsOK() bool { return s.code == OK }

func (s Status) Error() string {
	if s.errno != 0 {
		return fmt.Sprintf("%s: %s (errno %d)", s.code, s.message, s.errno)
	}
	return fmt.Sprintf("%s: %s", s.code, s.message)
}

// Err returns s as an error, or nil if s is OK -- the usual bridge back into
// idiomatic Go error handling at a reactor API boundary.
func (s Status) Err() error {
	if s.IsOK() {
		return nil
	}
	return s
}

// ShutdownError mirrors Reactor::ShutdownError: callers racing a reactor
// shutdown get Aborted if their work never reached the reactor thread, or
// ServiceUnavailable if it did but the reactor refused it.
func ShutdownError(aborted bool) Status {
	const message = "reactor is shutting down"
	if aborted {
		return New(Aborted, message, int(ESHUTDOWN))
	}
	return New(ServiceUnavailable, message, int(ESHUTDOWN))
}

// ESHUTDOWN mirrors the errno the original implementation attaches to
// shutdown-related statuses (Linux's ESHUTDOWN, 108), kept as a named
// constant here so this package has no platform-specific import.
const ESHUTDOWN = 108
