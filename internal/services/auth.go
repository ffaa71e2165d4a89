package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

const tokenDuration = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// accessClaims carries the user id under the "id" claim, the shape issued by
// the account service.
type accessClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// AuthService verifies HS256 access tokens and resolves them to users.
type AuthService struct {
	secret []byte
	issuer string
	users  UserServiceInterface
	now    func() time.Time
}

func NewAuthService(secret, issuer string, users UserServiceInterface) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		issuer: issuer,
		users:  users,
		now:    time.Now,
	}
}

// IssueToken signs a token for userID. Production tokens come from the
// account service; this is used by tooling and tests.
func (s *AuthService) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := accessClaims{
		ID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates the signature and expiry and returns the user id.
func (s *AuthService) ParseToken(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad id claim", ErrInvalidToken)
	}
	return id, nil
}

// ValidateToken resolves a token to an existing user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	id, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading token user: %w", err)
	}
	return user, nil
}
