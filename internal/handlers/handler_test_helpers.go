package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d", status, rr.Code)
	}
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var response ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}

// authedRequest builds a request carrying user in its context with the
// given path value set.
func authedRequest(method, target string, user *models.User, id string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if id != "" {
		req.SetPathValue("id", id)
	}
	if user != nil {
		req = req.WithContext(SetUserInContext(req.Context(), user))
	}
	return req
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Username: "ana", FullName: "Ana", DesiredLanguage: "french"}
}
