package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

// RelationshipStore is the persistence contract for users, friendships and
// pending requests. Implementations enforce pair uniqueness on create and
// materialize both sides of a friendship on accept.
type RelationshipStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error)
	DeleteRequest(ctx context.Context, requestID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListPendingFor(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	ListCandidates(ctx context.Context, user *models.User) ([]models.User, error)
}

// Notifier receives the outcome of each successful transition. Delivery is
// best effort; Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, t models.Transition)
}

// PresenceProbe reports whether a user has a live connection.
type PresenceProbe interface {
	IsOnline(userID uuid.UUID) bool
}

// FriendServiceInterface defines the contract for friend operations used by handlers.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error)
	RejectRequest(ctx context.Context, requestID, actorID uuid.UUID) error
	CancelRequest(ctx context.Context, requestID, actorID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	Recommended(ctx context.Context, user *models.User) ([]models.RecommendedUser, error)
	IsOnline(userID uuid.UUID) bool
}

// UserServiceInterface defines the contract for user lookups.
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
