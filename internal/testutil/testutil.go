// Package testutil provides fixtures and helpers shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

// UserSaver is satisfied by every store backend.
type UserSaver interface {
	SaveUser(ctx context.Context, user *models.User) error
}

// NewUser returns a verified English speaker learning desiredLanguage.
func NewUser(name, desiredLanguage string) *models.User {
	return &models.User{
		ID:              uuid.New(),
		Username:        name,
		FullName:        name,
		Email:           RandomEmail(),
		NativeLanguage:  "english",
		DesiredLanguage: desiredLanguage,
		IsEmailVerified: true,
	}
}

// SeedUser saves a NewUser and returns it.
func SeedUser(t *testing.T, s UserSaver, name, desiredLanguage string) *models.User {
	t.Helper()
	u := NewUser(name, desiredLanguage)
	if err := s.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", name, err)
	}
	return u
}

// Eventually polls cond until it holds or two seconds pass.
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses a JSON response body into a map.
func ParseJSONResponse(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	return result
}

// RandomEmail generates a random email for testing.
func RandomEmail() string {
	return uuid.New().String()[:8] + "@test.com"
}
