package service

import "errors"

// Sentinel errors returned by the service layer. The HTTP layer maps each to
// a status code and a stable client-facing message; wrapped detail stays in
// the logs.
var (
	// ErrInvalidInput covers validation failures. Wrap it with the
	// client-facing message: fmt.Errorf("%w: ...", ErrInvalidInput).
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("user already exists with this email")

	// ErrInvalidCredentials is deliberately generic. Login never reveals
	// whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers unknown, consumed, or expired verification and
	// password-reset tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrLastAdmin refuses an operation that would leave the system with no
	// administrator.
	ErrLastAdmin = errors.New("cannot delete the last admin user")
)
