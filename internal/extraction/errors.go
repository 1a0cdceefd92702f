package extraction

import "fmt"

// Kind classifies an extraction failure.
type Kind string

const (
	KindEmptyDocument  Kind = "empty_document"
	KindMalformedBatch Kind = "malformed_batch"
	KindMalformedTask  Kind = "malformed_task"
	KindUnknownCadence Kind = "unknown_cadence"
	KindProvider       Kind = "provider"
)

// Error is the structured error returned by the extraction core.
// Detail is a human-readable explanation suitable for an operator message.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

var (
	ErrEmptyDocument  = &Error{Kind: KindEmptyDocument}
	ErrMalformedBatch = &Error{Kind: KindMalformedBatch}
	ErrMalformedTask  = &Error{Kind: KindMalformedTask}
	ErrUnknownCadence = &Error{Kind: KindUnknownCadence}
	ErrProvider       = &Error{Kind: KindProvider}
)

const batchErrorPrefix = "tasks document must contain json with the services structure, even if there are no current tasks"

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindEmptyDocument, KindMalformedBatch:
		msg = batchErrorPrefix
	case KindMalformedTask:
		msg = "malformed task"
	case KindUnknownCadence:
		msg = "unknown cadence"
	case KindProvider:
		msg = "provider error"
	default:
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so the package
// sentinels can be matched with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}
