package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
	"github.com/HammerMeetNail/lingopals/internal/store"
)

// UserReader is the subset of the store needed to resolve users.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserService struct {
	store UserReader
}

func NewUserService(st UserReader) *UserService {
	return &UserService{store: st}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
