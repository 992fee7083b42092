package http

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/pkg/httpx"
)

// userJSON is the public shape of a user. Password hashes and token
// fingerprints never appear here.
type userJSON struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Location    string     `json:"location,omitempty"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toUserJSON(u domain.User) userJSON {
	return userJSON{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Location:    u.Location,
		Role:        string(u.Role),
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// writeServiceError maps the service error taxonomy onto status codes and
// stable client messages. Anything unrecognised is a 500 whose detail is only
// attached outside production.
func writeServiceError(w http.ResponseWriter, err error, expose bool) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusBadRequest, "User already exists with this email")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, service.ErrLastAdmin):
		httpx.WriteError(w, http.StatusBadRequest, "Cannot delete the last admin user")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
	default:
		httpx.WriteErrorDetail(w, http.StatusInternalServerError, "Something went wrong!", err.Error(), expose)
	}
}

// validationMessage extracts the client-facing part of a wrapped
// ErrInvalidInput and capitalises it.
func validationMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	r := []rune(msg)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}
