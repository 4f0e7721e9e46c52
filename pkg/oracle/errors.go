package oracle

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConfiguration is fatal: retrying cannot fix a missing credential.
	ErrConfiguration = errors.New("oracle configuration error")
	// ErrUnavailable covers network failures, timeouts and 429/5xx answers.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrResponseInvalid covers bodies that are not JSON or fail validation.
	ErrResponseInvalid = errors.New("oracle response invalid")
)

// Error carries a kind, a human message and the underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Invalid reports a response that does not satisfy the expected contract.
func Invalid(format string, args ...any) error {
	return newError(ErrResponseInvalid, nil, format, args...)
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	if errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrResponseInvalid)
}

// KindOf names the kind of err for logging.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrResponseInvalid):
		return "response_invalid"
	default:
		return "unknown"
	}
}
