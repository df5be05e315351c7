package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies where in a pipeline run an error came from.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindConfig     Kind = "config"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindFetch      Kind = "fetch"
	KindWrite      Kind = "write"
	KindUpload     Kind = "upload"
	KindConnection Kind = "connection"
	KindExecution  Kind = "execution"
	KindLedger     Kind = "ledger"
	KindNotify     Kind = "notify"
)

// Error is the error returned by every pipeline step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and the operation that failed. A nil err stays nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// Newf builds a kinded error from a message.
func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
