package models

import (
	"time"
)

type ShareLink struct {
	ID        string
	FileID    string
	OwnerID   string
	Password  *string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
}

const (
	ShareActive  = "active"
	ShareExpired = "expired"
	ShareRevoked = "revoked"
)

// Status derives the link state at now. Revocation wins over expiry.
func (s *ShareLink) Status(now time.Time) string {
	switch {
	case s.Revoked:
		return ShareRevoked
	case !now.Before(s.ExpiresAt):
		return ShareExpired
	}
	return ShareActive
}
