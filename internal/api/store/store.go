package store

import (
	"context"
	"errors"
	"time"

	"github.com/agrolink/agrolink/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrLastAdmin reports a refused delete that would remove the sole
	// remaining administrator.
	ErrLastAdmin = errors.New("store: cannot delete the last admin user")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Every operation the security core needs is a single-row
// read or a single conditional write; no multi-statement transactions.
type Store interface {
	Users() Users
	Contacts() Contacts

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// UserFilter narrows and pages admin user listings.
type UserFilter struct {
	Role   string // "", "all", or a role name
	Status string // "", "all", "verified", "unverified"
	Search string // matches first name, last name, or email
	Page   int    // 1-based
	Limit  int
}

type Users interface {
	// CreateUser inserts a new user (id is provided by the app via ULID).
	// A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByVerificationToken finds the holder of an unconsumed
	// email-verification token.
	GetUserByVerificationToken(ctx context.Context, token string) (domain.User, error)

	// GetUserByResetTokenHash finds the holder of a reset-token fingerprint
	// whose expiry is after now. Expired or consumed tokens are ErrNotFound.
	GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (domain.User, error)

	// MarkVerified flips the verified flag and clears the token in one write.
	MarkVerified(ctx context.Context, id string) error

	// SetResetToken stores the reset-token fingerprint and its expiry.
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error

	// UpdatePasswordAndClearReset sets the new hash and clears any reset
	// token in the same write, making the token single-use.
	UpdatePasswordAndClearReset(ctx context.Context, id, newHash string) error

	UpdatePasswordHash(ctx context.Context, id, newHash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id, firstName, lastName, phone, location string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error

	// DeleteUserGuarded deletes a user unless doing so would remove the sole
	// remaining admin, in which case it returns ErrLastAdmin. The guard is a
	// single conditional statement, so concurrent deletes cannot race past it.
	DeleteUserGuarded(ctx context.Context, id string) error

	CountByRole(ctx context.Context, role domain.Role) (int, error)

	// ListUsers returns one page plus the total match count.
	ListUsers(ctx context.Context, f UserFilter) ([]domain.User, int, error)
}

type Contacts interface {
	CreateContact(ctx context.Context, c domain.Contact) error
}
