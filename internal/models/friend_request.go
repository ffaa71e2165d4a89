package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
)

type FriendRequest struct {
	ID          uuid.UUID     `json:"id"`
	SenderID    uuid.UUID     `json:"sender"`
	RecipientID uuid.UUID     `json:"recipient"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// FriendRequestView is a request with the counterparty populated.
type FriendRequestView struct {
	FriendRequest
	Sender    *UserSummary `json:"senderUser,omitempty"`
	Recipient *UserSummary `json:"recipientUser,omitempty"`
}

// Friendship is the materialized result of an accepted request.
type Friendship struct {
	Sender    UserSummary `json:"sender"`
	Recipient UserSummary `json:"recipient"`
}

// PairKey returns an order-independent key for the unordered pair {a, b}.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}
