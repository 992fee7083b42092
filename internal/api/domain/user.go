package domain

import "time"

// User is an identity record. The password exists only as an argon2id hash;
// the reset token only as a SHA-256 fingerprint with an expiry.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string // unique, stored lowercased
	Phone        string
	Location     string
	PasswordHash string
	Role         Role
	IsVerified   bool

	// VerificationToken is opaque and single-use; empty once consumed.
	VerificationToken string

	// ResetTokenHash/ResetTokenExpiresAt track the active password-reset
	// token. The hash is cleared after one use; the token is only accepted
	// before expiry.
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName is derived, never stored.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ResetTokenValidAt reports whether the stored reset token may still be
// redeemed at the given instant.
func (u User) ResetTokenValidAt(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetTokenExpiresAt != nil && now.Before(*u.ResetTokenExpiresAt)
}
