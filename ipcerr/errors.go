// Package ipcerr defines the fixed taxonomy of failures raised by the
// message, protocol, transport and rpc packages.
package ipcerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the fixed failure categories the core engine
// can raise. Kinds are never extended by user code.
type Kind byte

const (
	SocketAPIFailed Kind = iota
	PassiveSocketPrepare
	ActiveSocketPrepare
	NameResolution
	BadHostname
	Transport
	UserStop
	BadMessage
	MessageOverflow
	MessageTooShort
	ContainerOverflow
	TypeMismatch
	Timeout
	RateLimited
)

var kindNames = map[Kind]string{
	SocketAPIFailed:      "socket-api-failed",
	PassiveSocketPrepare: "passive-socket-prepare",
	ActiveSocketPrepare:  "active-socket-prepare",
	NameResolution:       "name-to-address-translation",
	BadHostname:          "bad-hostname",
	Transport:            "transport",
	UserStop:             "user-stop",
	BadMessage:           "bad-message",
	MessageOverflow:      "message-overflow",
	MessageTooShort:      "message-too-short",
	ContainerOverflow:    "container-overflow",
	TypeMismatch:         "type-mismatch",
	Timeout:              "timeout",
	RateLimited:          "rate-limited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind#%d", byte(k))
}

// Error is the typed exception raised by this module. Op names the
// failing operation; Required/Available carry size context for the
// codec errors; Cause wraps the underlying platform or transport error
// when there is one.
type Error struct {
	Kind      Kind
	Op        string
	Required  int
	Available int
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Required != 0 || e.Available != 0 {
		msg += fmt.Sprintf(" (required=%d available=%d)", e.Required, e.Available)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can do errors.Is(err, ipcerr.New(ipcerr.UserStop, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a plain *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Sized constructs a codec-style *Error carrying required/available sizes.
func Sized(kind Kind, op string, required, available int) *Error {
	return &Error{Kind: kind, Op: op, Required: required, Available: available}
}

// IsUserStop reports whether err is (or wraps) a user-stop error, i.e.
// the cooperative predicate requested cancellation.
func IsUserStop(err error) bool {
	return errors.Is(err, &Error{Kind: UserStop})
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
