package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

type mockFriendService struct {
	SendRequestFunc   func(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequestFunc func(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error)
	RejectRequestFunc func(ctx context.Context, requestID, actorID uuid.UUID) error
	CancelRequestFunc func(ctx context.Context, requestID, actorID uuid.UUID) error
	ListFriendsFunc   func(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	ListIncomingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	ListOutgoingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)
	RecommendedFunc   func(ctx context.Context, user *models.User) ([]models.RecommendedUser, error)
	IsOnlineFunc      func(userID uuid.UUID) bool
}

func (m *mockFriendService) SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, senderID, recipientID)
	}
	return nil, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, requestID, actorID)
	}
	return nil, nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, requestID, actorID uuid.UUID) error {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, requestID, actorID)
	}
	return nil
}

func (m *mockFriendService) CancelRequest(ctx context.Context, requestID, actorID uuid.UUID) error {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, requestID, actorID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return []models.UserSummary{}, nil
}

func (m *mockFriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	if m.ListIncomingFunc != nil {
		return m.ListIncomingFunc(ctx, userID)
	}
	return []models.FriendRequestView{}, nil
}

func (m *mockFriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	if m.ListOutgoingFunc != nil {
		return m.ListOutgoingFunc(ctx, userID)
	}
	return []models.FriendRequestView{}, nil
}

func (m *mockFriendService) Recommended(ctx context.Context, user *models.User) ([]models.RecommendedUser, error) {
	if m.RecommendedFunc != nil {
		return m.RecommendedFunc(ctx, user)
	}
	return []models.RecommendedUser{}, nil
}

func (m *mockFriendService) IsOnline(userID uuid.UUID) bool {
	if m.IsOnlineFunc != nil {
		return m.IsOnlineFunc(userID)
	}
	return false
}
