package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/models"
	"github.com/HammerMeetNail/lingopals/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type IncomingRequestsResponse struct {
	IncomingReqs []models.FriendRequestView `json:"incomingReqs"`
}

type AcceptResponse struct {
	Message    string             `json:"message"`
	Friendship *models.Friendship `json:"friendship"`
}

type OnlineResponse struct {
	UserID uuid.UUID `json:"userId"`
	Online bool      `json:"online"`
}

func (h *FriendHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	users, err := h.friendService.Recommended(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err, "listing recommended users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "listing friends")
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	recipientID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	req, err := h.friendService.SendRequest(r.Context(), user.ID, recipientID)
	if err != nil {
		writeServiceError(w, r, err, "sending friend request")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	friendship, err := h.friendService.AcceptRequest(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, r, err, "accepting friend request")
		return
	}
	writeJSON(w, http.StatusOK, AcceptResponse{Message: "Friend request accepted", Friendship: friendship})
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.friendService.RejectRequest(r.Context(), requestID, user.ID); err != nil {
		writeServiceError(w, r, err, "rejecting friend request")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request rejected and removed"})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), requestID, user.ID); err != nil {
		writeServiceError(w, r, err, "canceling friend request")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request canceled"})
}

func (h *FriendHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reqs, err := h.friendService.ListIncoming(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "listing incoming requests")
		return
	}
	writeJSON(w, http.StatusOK, IncomingRequestsResponse{IncomingReqs: reqs})
}

func (h *FriendHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reqs, err := h.friendService.ListOutgoing(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "listing outgoing requests")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *FriendHandler) Online(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	writeJSON(w, http.StatusOK, OnlineResponse{UserID: userID, Online: h.friendService.IsOnline(userID)})
}
