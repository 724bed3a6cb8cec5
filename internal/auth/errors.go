package auth

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindAccountNotActive
	KindTokenInvalid
	KindResourceNotFound
	KindConfigurationMissing
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountNotActive:
		return "account_not_active"
	case KindTokenInvalid:
		return "token_invalid"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindConfigurationMissing:
		return "configuration_missing"
	default:
		return "internal"
	}
}

// Error is returned by every Service operation. Message is safe to show to
// callers; Reason and Err are for logs only.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTokenInvalid)
// holds for every token failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials}
	ErrAccountNotActive     = &Error{Kind: KindAccountNotActive}
	ErrTokenInvalid         = &Error{Kind: KindTokenInvalid}
	ErrResourceNotFound     = &Error{Kind: KindResourceNotFound}
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}

	// ErrPasswordMismatch refines ErrInvalidCredentials; both match a wrong password.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// KindOf reports the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-facing message of err, if any.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

func newError(kind Kind, message, reason string, err error) *Error {
	return &Error{Kind: kind, Message: message, Reason: reason, Err: err}
}

func internalError(reason string, err error) *Error {
	return newError(KindInternal, "", reason, err)
}
