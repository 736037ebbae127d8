package querykey

import (
	"errors"
	"fmt"
)

// ErrCircularReference matches every *CircularReferenceError via errors.Is.
var ErrCircularReference = errors.New("querykey: circular reference")

// CollectionKind names the collection that closed a cycle.
type CollectionKind string

const (
	CollectionSequence CollectionKind = "sequence"
	CollectionMap      CollectionKind = "map"
	CollectionSet      CollectionKind = "set"
	CollectionObject   CollectionKind = "object"
)

// CircularReferenceError is returned when a collection is reached again while
// it is still being serialized. Identifiers must be acyclic, so this signals
// a programming error in the caller rather than a transient failure.
type CircularReferenceError struct {
	Collection CollectionKind
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("querykey: circular reference detected in %s", e.Collection)
}

// Is reports whether target is ErrCircularReference.
func (e *CircularReferenceError) Is(target error) bool {
	return target == ErrCircularReference
}
