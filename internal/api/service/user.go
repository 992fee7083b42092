package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/store"
)

// UserService covers profile self-service and the admin user management
// surface.
type UserService struct {
	users store.Users
	log   *slog.Logger
}

func NewUserService(users store.Users, log *slog.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// ProfileInput carries the self-service editable fields. Email and role are
// deliberately absent.
type ProfileInput struct {
	FirstName string
	LastName  string
	Phone     string
	Location  string
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || in.LastName == "" {
		return domain.User{}, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}

	err := s.users.UpdateProfile(ctx, id, in.FirstName, in.LastName,
		strings.TrimSpace(in.Phone), strings.TrimSpace(in.Location))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	return s.GetByID(ctx, id)
}

// UserPage is one page of an admin listing.
type UserPage struct {
	Users []domain.User
	Page  int
	Pages int
	Total int
}

// List returns a filtered, paginated view of all users.
func (s *UserService) List(ctx context.Context, f store.UserFilter) (UserPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	users, total, err := s.users.ListUsers(ctx, f)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}

	pages := (total + f.Limit - 1) / f.Limit
	if pages < 1 {
		pages = 1
	}

	return UserPage{Users: users, Page: f.Page, Pages: pages, Total: total}, nil
}

// UpdateRole changes a user's role. Demoting the sole remaining admin is
// refused for the same reason deleting one is.
func (s *UserService) UpdateRole(ctx context.Context, id, roleName string) (domain.User, error) {
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if user.Role == domain.RoleAdmin && role != domain.RoleAdmin {
		n, err := s.users.CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return domain.User{}, fmt.Errorf("count admins: %w", err)
		}
		if n <= 1 {
			return domain.User{}, ErrLastAdmin
		}
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("update role: %w", err)
	}

	user.Role = role
	return user, nil
}

// Delete removes a user. The last admin cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.users.DeleteUserGuarded(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrLastAdmin):
		return ErrLastAdmin
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("delete user: %w", err)
	}
}
