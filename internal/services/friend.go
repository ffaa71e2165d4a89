package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/metrics"
	"github.com/HammerMeetNail/lingopals/internal/models"
	"github.com/HammerMeetNail/lingopals/internal/store"
)

// FriendService owns the friend request state machine. A request is created
// pending and then either accepted, which materializes the friendship on
// both users and removes the request, or rejected, which removes it.
type FriendService struct {
	store    RelationshipStore
	notifier Notifier
	presence PresenceProbe
	metrics  *metrics.Metrics
	logger   *logging.Logger
	locks    pairLocks
}

func NewFriendService(st RelationshipStore, notifier Notifier, presence PresenceProbe, m *metrics.Metrics, logger *logging.Logger) *FriendService {
	if logger == nil {
		logger = logging.Default
	}
	return &FriendService{
		store:    st,
		notifier: notifier,
		presence: presence,
		metrics:  m,
		logger:   logger.WithField("component", "friends"),
	}
}

func (s *FriendService) SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.sendRequest(ctx, senderID, recipientID)
	s.metrics.Transition("create", err)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, models.TransitionCreated, *req, senderID)
	return req, nil
}

func (s *FriendService) sendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	unlock := s.locks.lock(senderID, recipientID)
	defer unlock()

	req, err := s.store.CreateRequest(ctx, senderID, recipientID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, store.ErrAlreadyFriends):
			return nil, ErrAlreadyFriends
		case errors.Is(err, store.ErrPendingExists):
			return nil, ErrRequestExists
		}
		return nil, fmt.Errorf("creating friend request: %w", err)
	}
	return req, nil
}

// AcceptRequest makes the two parties friends. Only the recipient may accept.
func (s *FriendService) AcceptRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error) {
	req, err := s.acceptRequest(ctx, requestID, actorID)
	s.metrics.Transition("accept", err)
	if err != nil {
		return nil, err
	}

	friendship := &models.Friendship{
		Sender:    s.summary(ctx, req.SenderID),
		Recipient: s.summary(ctx, req.RecipientID),
	}
	s.notifyWith(ctx, models.TransitionAccepted, *req, friendship.Recipient)
	return friendship, nil
}

func (s *FriendService) acceptRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.requestFor(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RecipientID != actorID {
		return nil, ErrNotRequestRecipient
	}

	unlock := s.locks.lock(req.SenderID, req.RecipientID)
	defer unlock()

	accepted, err := s.store.AcceptRequest(ctx, requestID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRequestNotFound
		case errors.Is(err, store.ErrInconsistent):
			s.logger.Error("Accept left friendship partially applied", logging.Fields{
				"request_id": requestID.String(),
				"error":      err.Error(),
			})
		}
		return nil, fmt.Errorf("accepting friend request: %w", err)
	}
	return accepted, nil
}

// RejectRequest deletes a pending request. Only the recipient may reject.
func (s *FriendService) RejectRequest(ctx context.Context, requestID, actorID uuid.UUID) error {
	req, err := s.removeRequest(ctx, requestID, func(r *models.FriendRequest) error {
		if r.RecipientID != actorID {
			return ErrNotRequestRecipient
		}
		return nil
	})
	s.metrics.Transition("reject", err)
	if err != nil {
		return err
	}

	s.notify(ctx, models.TransitionRejected, *req, actorID)
	return nil
}

// CancelRequest lets the sender withdraw a pending request. No one is notified.
func (s *FriendService) CancelRequest(ctx context.Context, requestID, actorID uuid.UUID) error {
	_, err := s.removeRequest(ctx, requestID, func(r *models.FriendRequest) error {
		if r.SenderID != actorID {
			return ErrNotRequestSender
		}
		return nil
	})
	s.metrics.Transition("cancel", err)
	return err
}

func (s *FriendService) removeRequest(ctx context.Context, requestID uuid.UUID, authorize func(*models.FriendRequest) error) (*models.FriendRequest, error) {
	req, err := s.requestFor(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authorize(req); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(req.SenderID, req.RecipientID)
	defer unlock()

	if err := s.store.DeleteRequest(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("deleting friend request: %w", err)
	}
	return req, nil
}

func (s *FriendService) requestFor(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return req, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return friends, nil
}

func (s *FriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	reqs, err := s.store.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}
	return reqs, nil
}

func (s *FriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	reqs, err := s.store.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing outgoing requests: %w", err)
	}
	return reqs, nil
}

// Recommended returns verified users learning the same language who are not
// already friends with user, each tagged with any pending request between them.
func (s *FriendService) Recommended(ctx context.Context, user *models.User) ([]models.RecommendedUser, error) {
	candidates, err := s.store.ListCandidates(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	pending, err := s.store.ListPendingFor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}

	status := make(map[uuid.UUID]models.FriendRequestStatus, len(pending))
	for _, req := range pending {
		if req.SenderID == user.ID {
			status[req.RecipientID] = models.FriendRequestStatusSent
		} else {
			status[req.SenderID] = models.FriendRequestStatusReceived
		}
	}

	out := make([]models.RecommendedUser, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		rs, ok := status[c.ID]
		if !ok {
			rs = models.FriendRequestStatusNone
		}
		out = append(out, models.RecommendedUser{
			UserSummary:         c.Summary(),
			Username:            c.Username,
			Bio:                 c.Bio,
			City:                c.City,
			FriendRequestStatus: rs,
		})
	}
	return out, nil
}

func (s *FriendService) IsOnline(userID uuid.UUID) bool {
	if s.presence == nil {
		return false
	}
	return s.presence.IsOnline(userID)
}

func (s *FriendService) notify(ctx context.Context, kind models.TransitionKind, req models.FriendRequest, actorID uuid.UUID) {
	s.notifyWith(ctx, kind, req, s.summary(ctx, actorID))
}

func (s *FriendService) notifyWith(ctx context.Context, kind models.TransitionKind, req models.FriendRequest, actor models.UserSummary) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.Transition{Kind: kind, Request: req, Actor: actor})
}

// summary loads the public profile of a user. A lookup failure after a
// committed transition degrades to an id-only summary.
func (s *FriendService) summary(ctx context.Context, userID uuid.UUID) models.UserSummary {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load user profile", logging.Fields{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return models.UserSummary{ID: userID}
	}
	return u.Summary()
}
