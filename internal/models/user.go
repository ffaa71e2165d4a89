package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID   `json:"id"`
	Username        string      `json:"username"`
	FullName        string      `json:"fullname"`
	Email           string      `json:"email"`
	Bio             string      `json:"bio"`
	City            string      `json:"city"`
	ProfilePic      string      `json:"profilePic"`
	NativeLanguage  string      `json:"nativeLanguage"`
	DesiredLanguage string      `json:"desiredLanguage"`
	IsEmailVerified bool        `json:"isEmailVerified"`
	Friends         []uuid.UUID `json:"friends"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// UserSummary is the public projection of a user embedded in events and listings.
type UserSummary struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"fullname"`
	ProfilePic      string    `json:"profilePic"`
	NativeLanguage  string    `json:"nativeLanguage"`
	DesiredLanguage string    `json:"desiredLanguage"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:              u.ID,
		FullName:        u.FullName,
		ProfilePic:      u.ProfilePic,
		NativeLanguage:  u.NativeLanguage,
		DesiredLanguage: u.DesiredLanguage,
	}
}


type FriendRequestStatus string

const (
	FriendRequestStatusSent     FriendRequestStatus = "sent"
	FriendRequestStatusReceived FriendRequestStatus = "received"
	FriendRequestStatusNone     FriendRequestStatus = "none"
)

// RecommendedUser is a candidate language partner annotated with the
// pending request state relative to the viewer.
type RecommendedUser struct {
	UserSummary
	Username            string              `json:"username"`
	Bio                 string              `json:"bio"`
	City                string              `json:"city"`
	FriendRequestStatus FriendRequestStatus `json:"friendRequestStatus"`
}
