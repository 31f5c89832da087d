// Package failure defines the error categories shared by the order domain and
// its adapters. Callers switch on Kind instead of matching concrete types.
package failure

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a domain error.
type Kind uint8

const (
	// Internal is the zero kind: anything not classified below.
	Internal Kind = iota
	// NotFound means the target of a lookup by identifier does not exist.
	NotFound
	// Conflict means the operation is not allowed in the target's current state.
	Conflict
	// Invalid means the input was rejected before reaching storage.
	Invalid
	// Upstream means a remote collaborator failed.
	Upstream
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error carries a Kind and a message. It is usually declared once as a
// sentinel and wrapped with context at the call site.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the outermost *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
