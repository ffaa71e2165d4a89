package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error to its status by kind. Anything
// without a kind is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var status int
	switch {
	case errors.Is(err, services.ErrInvalidOperation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	default:
		logging.FromContext(r.Context()).Error("Error "+action, logging.Fields{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeError(w, status, publicMessage(err))
}

var publicMessages = map[error]string{
	services.ErrCannotFriendSelf:    "You can't send friend request to yourself",
	services.ErrUserNotFound:        "User not found",
	services.ErrRequestNotFound:     "Friend request not found",
	services.ErrAlreadyFriends:      "You are already friends with this user",
	services.ErrRequestExists:       "A friend request already exists between you and this user",
	services.ErrNotRequestRecipient: "You are not authorized to respond to this request",
	services.ErrNotRequestSender:    "You are not authorized to cancel this request",
}

func publicMessage(err error) string {
	for target, msg := range publicMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return http.StatusText(http.StatusBadRequest)
}
