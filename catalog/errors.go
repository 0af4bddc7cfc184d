package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned by registration attempts after Freeze.
	ErrFrozen = errors.New("catalog is frozen")
	// ErrNotFrozen is returned by consumers that need a frozen catalog.
	ErrNotFrozen = errors.New("catalog is not frozen")
	// ErrInvalid is returned for descriptors that fail validation.
	ErrInvalid = errors.New("invalid descriptor")
	// ErrFull is returned when a registry has exhausted its handle space.
	ErrFull = errors.New("registry is full")
)

// ProtocolError describes a rejected registration.
type ProtocolError struct {
	Kind string // "element", "state", "reaction" or "pre-effect"
	Name string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("catalog: register %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
