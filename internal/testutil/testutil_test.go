package testutil

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

type recordingSaver struct {
	saved []*models.User
}

func (r *recordingSaver) SaveUser(ctx context.Context, user *models.User) error {
	r.saved = append(r.saved, user)
	return nil
}

func TestNewUser(t *testing.T) {
	u := NewUser("Ana", "french")
	if u.Username != "Ana" || u.FullName != "Ana" || u.DesiredLanguage != "french" || !u.IsEmailVerified {
		t.Fatalf("unexpected user: %+v", u)
	}
	if NewUser("Ana", "french").ID == u.ID {
		t.Fatal("expected distinct ids")
	}
}

func TestSeedUser(t *testing.T) {
	s := &recordingSaver{}
	u := SeedUser(t, s, "Ben", "german")
	if len(s.saved) != 1 || s.saved[0] != u {
		t.Fatalf("expected user to be saved, got %+v", s.saved)
	}
}

func TestEventually(t *testing.T) {
	calls := 0
	Eventually(t, "third call", func() bool {
		calls++
		return calls >= 3
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestParseJSONResponse(t *testing.T) {
	result := ParseJSONResponse(t, []byte(`{"online":true}`))
	if result["online"] != true {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAssertStatusCode(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteHeader(204)
	AssertStatusCode(t, rr, 204)
}

func TestRandomEmail(t *testing.T) {
	if email := RandomEmail(); !strings.HasSuffix(email, "@test.com") {
		t.Fatalf("unexpected email %q", email)
	}
}
