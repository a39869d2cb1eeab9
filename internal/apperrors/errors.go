package apperrors

import (
	"strconv"

	"github.com/go-faster/errors"
)

// Kind classifies failures coming back from the storefront backend.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindUnexpected Kind = "unexpected"
)

// Error is a classified failure. Message is safe to show to the user.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return string(e.Kind) + " error (status " + strconv.Itoa(e.StatusCode) + "): " + msg
	}
	return string(e.Kind) + " error: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperrors.ErrNetwork).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.StatusCode == 0 && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrUnexpected = &Error{Kind: KindUnexpected}
)

func Network(err error) error {
	return &Error{Kind: KindNetwork, Err: err}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func Unexpected(err error) error {
	return &Error{Kind: KindUnexpected, Err: err}
}

// FromStatus maps a non-2xx HTTP status to a classified error.
func FromStatus(status int, message string) error {
	e := &Error{StatusCode: status, Message: message}
	switch {
	case status >= 500:
		e.Kind = KindNetwork
	case status == 401 || status == 403:
		e.Kind = KindAuth
	case status >= 400:
		e.Kind = KindValidation
	default:
		e.Kind = KindUnexpected
	}
	return e
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are reported as unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := errors.Into[*Error](err); ok {
		return e.Kind
	}
	return KindUnexpected
}

// MessageOf returns the user-facing message of a classified error.
func MessageOf(err error) string {
	if e, ok := errors.Into[*Error](err); ok && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
