package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/internal/api/store/drivers/sqlite"
	"github.com/agrolink/agrolink/pkg/idx"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL",
		filepath.Join(t.TempDir(), "test.db"))
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func newUser(email string, role domain.Role) domain.User {
	now := time.Now().UTC()
	return domain.User{
		ID:           idx.New().String(),
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: "$argon2id$placeholder",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	users := st.Users()

	u := newUser("asha@farm.example", domain.RoleFarmer)
	require.NoError(t, users.CreateUser(ctx, u))

	t.Run("lookup by id and email", func(t *testing.T) {
		byID, err := users.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, byID.Email)

		byEmail, err := users.GetUserByEmail(ctx, "ASHA@FARM.EXAMPLE")
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("duplicate email conflicts case insensitively", func(t *testing.T) {
		dup := newUser("Asha@Farm.Example", domain.RoleFarmer)
		err := users.CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing row maps to not found", func(t *testing.T) {
		_, err := users.GetUserByID(ctx, "no-such-id")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("updates against missing ids map to not found", func(t *testing.T) {
		err := users.UpdateRole(ctx, "no-such-id", domain.RoleExpert)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestResetTokenExpiry(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	users := st.Users()

	u := newUser("asha@farm.example", domain.RoleFarmer)
	require.NoError(t, users.CreateUser(ctx, u))

	now := time.Now().UTC()
	require.NoError(t, users.SetResetToken(ctx, u.ID, "fingerprint-1", now.Add(10*time.Minute)))

	t.Run("valid before expiry", func(t *testing.T) {
		got, err := users.GetUserByResetTokenHash(ctx, "fingerprint-1", now)
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("expired is not found", func(t *testing.T) {
		_, err := users.GetUserByResetTokenHash(ctx, "fingerprint-1", now.Add(11*time.Minute))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("cleared after password update", func(t *testing.T) {
		require.NoError(t, users.UpdatePasswordAndClearReset(ctx, u.ID, "$argon2id$new"))
		_, err := users.GetUserByResetTokenHash(ctx, "fingerprint-1", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("empty fingerprint never matches", func(t *testing.T) {
		_, err := users.GetUserByResetTokenHash(ctx, "", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDeleteUserGuarded(t *testing.T) {
	ctx := context.Background()

	t.Run("sole admin survives", func(t *testing.T) {
		st := newStore(t)
		users := st.Users()
		admin := newUser("admin@agrolink.example", domain.RoleAdmin)
		require.NoError(t, users.CreateUser(ctx, admin))

		err := users.DeleteUserGuarded(ctx, admin.ID)
		require.ErrorIs(t, err, store.ErrLastAdmin)

		n, err := users.CountByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("one of two admins can go", func(t *testing.T) {
		st := newStore(t)
		users := st.Users()
		a1 := newUser("a1@agrolink.example", domain.RoleAdmin)
		a2 := newUser("a2@agrolink.example", domain.RoleAdmin)
		require.NoError(t, users.CreateUser(ctx, a1))
		require.NoError(t, users.CreateUser(ctx, a2))

		require.NoError(t, users.DeleteUserGuarded(ctx, a1.ID))

		// Now a2 is the last admin and becomes undeletable.
		err := users.DeleteUserGuarded(ctx, a2.ID)
		require.ErrorIs(t, err, store.ErrLastAdmin)
	})

	t.Run("non admins unaffected by the guard", func(t *testing.T) {
		st := newStore(t)
		users := st.Users()
		farmer := newUser("f@farm.example", domain.RoleFarmer)
		require.NoError(t, users.CreateUser(ctx, farmer))

		require.NoError(t, users.DeleteUserGuarded(ctx, farmer.ID))
	})

	t.Run("missing user", func(t *testing.T) {
		st := newStore(t)
		err := st.Users().DeleteUserGuarded(ctx, "no-such-id")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	require.NoError(t, st.Contacts().CreateContact(ctx, domain.Contact{
		ID:        idx.New().String(),
		Name:      "Asha",
		Email:     "asha@farm.example",
		Subject:   "Hello",
		Message:   "A question about maize",
		CreatedAt: time.Now().UTC(),
	}))
}

func TestPing(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Ping(context.Background()))
}
