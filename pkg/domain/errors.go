package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrPayloadRead = errors.New("payload read error")
	ErrTransport   = errors.New("transport error")
)

// ValidationError reports a missing or mistyped inbound field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid '%s': %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PayloadReadError reports an I/O fault while reading the uploaded file.
type PayloadReadError struct {
	Filename string
	Err      error
}

func (e *PayloadReadError) Error() string {
	return fmt.Sprintf("read upload %q: %v", e.Filename, e.Err)
}

func (e *PayloadReadError) Unwrap() []error { return []error{ErrPayloadRead, e.Err} }

// TransportError reports that the runner call did not produce a response.
type TransportError struct {
	Reason  string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "runner " + e.Reason
	}
	return fmt.Sprintf("runner %s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}
