package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/lingopals/internal/handlers"
	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/models"
)

const accessTokenCookie = "accessToken"

// TokenValidator resolves an access token to the user it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

type AuthMiddleware struct {
	authService TokenValidator
}

func NewAuthMiddleware(authService TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate validates the access token and adds the user to context if
// valid. Does not reject unauthenticated requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" || m.authService == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authService.ValidateToken(r.Context(), token)
		if err != nil {
			logging.FromContext(r.Context()).Debug("Rejected access token", logging.Fields{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		ctx := handlers.SetUserInContext(r.Context(), user)
		ctx = logging.WithContext(ctx, logging.FromContext(ctx).WithField("user_id", user.ID.String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := handlers.GetUserFromContext(r.Context())
		if user == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
