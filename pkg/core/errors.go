package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how callers should react to it.
type Kind string

const (
	// KindSetup covers failures before the interview loop starts: a missing
	// session, an unresolvable research question, a provider connection that
	// never came up. Setup errors abort the session.
	KindSetup Kind = "setup_error"

	// KindTransient covers failed external calls mid-session (transcription,
	// question generation, speech synthesis). The turn is reported to the
	// client and the session keeps going; there is no automatic retry.
	KindTransient Kind = "transient_call_error"

	// KindPersistence covers database write failures. The turn still advances
	// in memory so a database hiccup does not block the interview.
	KindPersistence Kind = "persistence_error"

	// KindNonEssential covers failures that must never surface to the client
	// or block progression (quality scoring).
	KindNonEssential Kind = "non_essential_error"
)

// Error is the canonical error for agent and interview operations.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// SetupError marks err as fatal for session setup.
func SetupError(op, message string, err error) *Error {
	return &Error{Kind: KindSetup, Op: op, Message: message, Err: err}
}

// TransientError marks err as a contained per-turn external-call failure.
func TransientError(op, message string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: message, Err: err}
}

// PersistenceError marks err as a contained database failure.
func PersistenceError(op, message string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Message: message, Err: err}
}

// NonEssentialError marks err as ignorable.
func NonEssentialError(op, message string, err error) *Error {
	return &Error{Kind: KindNonEssential, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindTransient for
// unclassified errors so that unknown failures never abort a session.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) && ce != nil {
		return ce.Kind
	}
	return KindTransient
}

// IsSetup reports whether err should abort session setup.
func IsSetup(err error) bool { return KindOf(err) == KindSetup }
