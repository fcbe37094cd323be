package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAttachment is returned when a child is attached twice to the same parent.
	ErrDuplicateAttachment = errors.New("duplicate attachment")
	// ErrParentConflict is returned when a child still belongs to another parent.
	ErrParentConflict = errors.New("parent conflict")
	// ErrCircularReference is returned when an attachment would create a cycle.
	ErrCircularReference = errors.New("circular reference")
	// ErrNotAttached is returned when detaching a workflow that is not a child.
	ErrNotAttached = errors.New("not attached")
	// ErrNotRoot is returned when observers are managed on a non-root workflow.
	ErrNotRoot = errors.New("not a root workflow")
	// ErrDuplicateID is returned when an attachment would put two nodes with
	// the same id in one tree.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrIntegrity marks a broken tree invariant found during traversal.
	ErrIntegrity = errors.New("tree integrity violation")

	// ErrUnknownEventType is returned by the codec for types outside the closed set.
	ErrUnknownEventType = errors.New("unknown event type")
)

// ValidationKind classifies a rejected mutation.
type ValidationKind string

const (
	KindDuplicateAttachment ValidationKind = "DuplicateAttachment"
	KindParentConflict      ValidationKind = "ParentConflict"
	KindCircularReference   ValidationKind = "CircularReference"
	KindNotAttached         ValidationKind = "NotAttached"
	KindNotRoot             ValidationKind = "NotRoot"
	KindDuplicateID         ValidationKind = "DuplicateID"
)

func (k ValidationKind) sentinel() error {
	switch k {
	case KindDuplicateAttachment:
		return ErrDuplicateAttachment
	case KindParentConflict:
		return ErrParentConflict
	case KindCircularReference:
		return ErrCircularReference
	case KindNotAttached:
		return ErrNotAttached
	case KindNotRoot:
		return ErrNotRoot
	case KindDuplicateID:
		return ErrDuplicateID
	}
	return nil
}

// ValidationError is returned before any mutation takes place.
type ValidationError struct {
	Kind ValidationKind
	Op   string

	// ParentID and ChildID identify the workflows involved (ChildID may be
	// empty for NotRoot).
	ParentID string
	ChildID  string

	Msg string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Unwrap exposes the kind's sentinel so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Kind.sentinel()
}

// IntegrityError reports a cycle found while walking parent links. It means the
// tree was mutated outside AttachChild/DetachChild and is never retried.
type IntegrityError struct {
	Op     string
	NodeID string
	Msg    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s (at node %s)", e.Op, e.Msg, e.NodeID)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// ObserverError wraps a failure raised inside an observer callback. It is
// logged at the dispatch site and never returned to callers.
type ObserverError struct {
	Callback string
	Observer string
	Cause    error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %s failed in %s: %v", e.Observer, e.Callback, e.Cause)
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}
