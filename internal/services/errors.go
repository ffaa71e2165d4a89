package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a transition wraps exactly one.
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
)

var (
	ErrCannotFriendSelf    = fmt.Errorf("%w: cannot send friend request to yourself", ErrInvalidOperation)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrRequestNotFound     = fmt.Errorf("%w: friend request not found", ErrNotFound)
	ErrAlreadyFriends      = fmt.Errorf("%w: already friends with this user", ErrConflict)
	ErrRequestExists       = fmt.Errorf("%w: a friend request already exists between these users", ErrConflict)
	ErrNotRequestRecipient = fmt.Errorf("%w: only the recipient can respond to this request", ErrForbidden)
	ErrNotRequestSender    = fmt.Errorf("%w: only the sender can cancel this request", ErrForbidden)
)
