package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure so the orchestrator can decide
// between aborting the batch, skipping a record, or failing fast.
type Kind int

const (
	// KindTransport covers network errors and timeouts
	KindTransport Kind = iota + 1
	// KindProtocol covers non-success HTTP status codes
	KindProtocol
	// KindDecode covers responses not in the expected structured format,
	// including a success discriminator with the records list missing
	KindDecode
	// KindUpstream covers responses whose discriminator explicitly
	// signals an error (wrong credentials, access denied, ...)
	KindUpstream
	// KindConfiguration covers missing or unusable local settings;
	// raised before any upstream call is made
	KindConfiguration
)

// String returns the classification name for logs
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindUpstream:
		return "upstream"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified upstream error
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError extracts a classified error from an error chain
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// KindOf returns the classification of err, or 0 if err is unclassified
func KindOf(err error) Kind {
	if ue, ok := AsError(err); ok {
		return ue.Kind
	}
	return 0
}
