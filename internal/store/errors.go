// Package store holds the persistent backends for users, friendships and
// pending friend requests.
package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrAlreadyFriends = fmt.Errorf("%w: users are already friends", ErrConflict)
	ErrPendingExists  = fmt.Errorf("%w: a pending request already exists between these users", ErrConflict)

	// ErrInconsistent reports a friendship that was only partially
	// materialized and could not be rolled back. It is repaired on the next
	// friends read.
	ErrInconsistent = errors.New("friendship partially applied")

	// ErrInvalidDocument reports a stored record that does not have the
	// expected shape.
	ErrInvalidDocument = errors.New("invalid stored document")
)
