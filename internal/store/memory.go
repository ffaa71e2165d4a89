package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

// MemoryStore keeps all relationship data in process memory. Every mutation
// holds the store lock for its full duration, so create and accept are
// atomic with respect to each other.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	friends  map[uuid.UUID]map[uuid.UUID]struct{}
	requests map[uuid.UUID]*models.FriendRequest
	pending  map[string]uuid.UUID
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*models.User),
		friends:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		requests: make(map[uuid.UUID]*models.FriendRequest),
		pending:  make(map[string]uuid.UUID),
		now:      time.Now,
	}
}

// SaveUser inserts or updates a user's profile. The friends set is never
// written here.
func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	u.Friends = nil
	now := s.now()
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
		s.friends[u.ID] = make(map[uuid.UUID]struct{})
	}
	u.UpdatedAt = now
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

func (s *MemoryStore) userLocked(id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	out.Friends = make([]uuid.UUID, 0, len(s.friends[id]))
	for f := range s.friends[id] {
		out.Friends = append(out.Friends, f)
	}
	return &out, nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *req
	return &out, nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[senderID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := s.users[recipientID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := s.friends[senderID][recipientID]; ok {
		return nil, ErrAlreadyFriends
	}
	key := models.PairKey(senderID, recipientID)
	if _, ok := s.pending[key]; ok {
		return nil, ErrPendingExists
	}

	now := s.now()
	req := &models.FriendRequest{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.requests[req.ID] = req
	s.pending[key] = req.ID

	out := *req
	return &out, nil
}

func (s *MemoryStore) AcceptRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, id := range []uuid.UUID{req.SenderID, req.RecipientID} {
		if _, ok := s.friends[id]; !ok {
			s.friends[id] = make(map[uuid.UUID]struct{})
		}
	}
	s.friends[req.SenderID][req.RecipientID] = struct{}{}
	s.friends[req.RecipientID][req.SenderID] = struct{}{}
	s.deleteLocked(req)

	out := *req
	out.Status = models.RequestStatusAccepted
	out.UpdatedAt = s.now()
	return &out, nil
}

func (s *MemoryStore) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	s.deleteLocked(req)
	return nil
}

func (s *MemoryStore) deleteLocked(req *models.FriendRequest) {
	delete(s.requests, req.ID)
	key := models.PairKey(req.SenderID, req.RecipientID)
	if s.pending[key] == req.ID {
		delete(s.pending, key)
	}
}

func (s *MemoryStore) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrNotFound
	}
	friends := make([]models.UserSummary, 0, len(s.friends[userID]))
	for id := range s.friends[userID] {
		if u, ok := s.users[id]; ok {
			friends = append(friends, u.Summary())
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].FullName < friends[j].FullName })
	return friends, nil
}

func (s *MemoryStore) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(func(r *models.FriendRequest) bool { return r.RecipientID == userID }, true), nil
}

func (s *MemoryStore) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(func(r *models.FriendRequest) bool { return r.SenderID == userID }, false), nil
}

func (s *MemoryStore) listViews(match func(*models.FriendRequest) bool, withSender bool) []models.FriendRequestView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := []models.FriendRequestView{}
	for _, req := range s.requests {
		if !match(req) {
			continue
		}
		view := models.FriendRequestView{FriendRequest: *req}
		other := req.RecipientID
		if withSender {
			other = req.SenderID
		}
		if u, ok := s.users[other]; ok {
			summary := u.Summary()
			if withSender {
				view.Sender = &summary
			} else {
				view.Recipient = &summary
			}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views
}

func (s *MemoryStore) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FriendRequest{}
	for _, req := range s.requests {
		if req.SenderID == userID || req.RecipientID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCandidates(ctx context.Context, user *models.User) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for id, u := range s.users {
		if id == user.ID || !u.IsEmailVerified || u.DesiredLanguage != user.DesiredLanguage {
			continue
		}
		if _, ok := s.friends[user.ID][id]; ok {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
