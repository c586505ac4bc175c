package models

import (
	"strings"
	"time"
)

// AllowedEmail grants an address the right to hold an account. The
// normalized email is its identity.
type AllowedEmail struct {
	Email   string    `json:"email"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewAllowedEmail(email, addedBy string, now time.Time) *AllowedEmail {
	return &AllowedEmail{
		Email:   NormalizeEmail(email),
		AddedBy: addedBy,
		AddedAt: now,
	}
}
