package store

import (
	"errors"
	"fmt"
)

// ErrEmptyPopulation is returned when sampling a kind that has no persisted
// entities yet.
var ErrEmptyPopulation = errors.New("empty population")

// ErrUnknownBackend is returned by Open for an unregistered backend name.
var ErrUnknownBackend = errors.New("unknown backend")

// SchemaError reports a failure while dropping or recreating containers,
// validators, constraints or indexes.
type SchemaError struct {
	Backend string
	Step    string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema %s failed: %v", e.Backend, e.Step, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError reports a failed insert or query against a backend.
type PersistenceError struct {
	Backend string
	Kind    EntityKind
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("%s: %s failed: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s failed: %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// EmptyPopulation returns an error wrapping ErrEmptyPopulation for kind.
func EmptyPopulation(backend string, kind EntityKind) error {
	return fmt.Errorf("%s: sample %s: %w", backend, kind, ErrEmptyPopulation)
}

// UnexpectedRecord returns the error used when a batch holds a record whose
// kind differs from the kind being inserted.
func UnexpectedRecord(backend string, kind EntityKind, r Record) error {
	return &PersistenceError{
		Backend: backend,
		Kind:    kind,
		Op:      "insert",
		Err:     fmt.Errorf("unexpected record %T", r),
	}
}
