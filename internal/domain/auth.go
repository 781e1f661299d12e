package domain

import "time"

// Token describes what a signed access token asserted at issuance time. It has no
// server-side storage.
type Token struct {
	UserID    string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
