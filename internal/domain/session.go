package domain

import "time"

// SessionClaims is what a session credential asserts about its holder.
// It is never persisted.
type SessionClaims struct {
	UserID            UserID    `json:"userId"`
	Email             string    `json:"email"`
	CommunityVerified bool      `json:"communityVerified"`
	IsAdmin           bool      `json:"isAdmin"`
	IssuedAt          time.Time `json:"issuedAt"`
}

func ClaimsFor(u *User, issuedAt time.Time) SessionClaims {
	return SessionClaims{
		UserID:            u.ID,
		Email:             u.Email,
		CommunityVerified: u.CommunityVerified,
		IsAdmin:           u.IsAdmin,
		IssuedAt:          issuedAt,
	}
}
