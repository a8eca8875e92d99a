package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeNotFound is the type of errors returned when an operation targets
	// an object that is not stored in the tree.
	ErrTypeNotFound = "octree_not_found"

	// ErrTypeInvalidState is the type of errors returned when an operation's
	// precondition does not hold: dividing a divided node, undividing a node
	// whose subtree still stores objects, inserting an object twice, an
	// unknown node or scene id, or mutating the tree from a listener.
	ErrTypeInvalidState = "octree_invalid_state"
)

// IsNotFound reports whether err is an ErrTypeNotFound error.
func IsNotFound(err error) bool {
	return errors.IsType(err, ErrTypeNotFound)
}

// IsInvalidState reports whether err is an ErrTypeInvalidState error.
func IsInvalidState(err error) bool {
	return errors.IsType(err, ErrTypeInvalidState)
}

func notFound(op string, id ObjectID) error {
	return errors.New("object is not in the octree").
		WithType(ErrTypeNotFound).
		WithTag("op", op).
		WithTag("object_id", id)
}

func invalidState(op, msg string) error {
	return errors.New(msg).
		WithType(ErrTypeInvalidState).
		WithTag("op", op)
}
