package graphml

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedAttributeValue matches any MalformedValueError.
	ErrMalformedAttributeValue = errors.New("malformed attribute value")
	// ErrMissingRequiredAttribute matches any MissingAttributeError.
	ErrMissingRequiredAttribute = errors.New("missing required attribute")
)

// MalformedValueError reports text that cannot be read as its declared type.
type MalformedValueError struct {
	Kind Kind
	List bool
	Text string
	Err  error
}

func (e *MalformedValueError) Error() string {
	target := e.Kind.String()
	if e.List {
		target = "list of " + target
	}
	return fmt.Sprintf("cannot parse %q as %s: %v", e.Text, target, e.Err)
}

func (e *MalformedValueError) Unwrap() error { return e.Err }

func (e *MalformedValueError) Is(target error) bool {
	return target == ErrMalformedAttributeValue
}

// MissingAttributeError reports a node or edge element without an attribute
// needed to key its staged row.
type MissingAttributeError struct {
	Element string
	Attr    string
	Offset  int64
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("<%s> at offset %d: missing %q attribute", e.Element, e.Offset, e.Attr)
}

func (e *MissingAttributeError) Is(target error) bool {
	return target == ErrMissingRequiredAttribute
}
