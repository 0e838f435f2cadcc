package dto

import "time"

type SessionResponse struct {
	UserID            string    `json:"userId"`
	Email             string    `json:"email"`
	CommunityVerified bool      `json:"communityVerified"`
	IsAdmin           bool      `json:"isAdmin"`
	IssuedAt          time.Time `json:"issuedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}
