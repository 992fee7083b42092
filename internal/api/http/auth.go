package http

import (
	"encoding/json"
	"net/http"

	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/pkg/httpx"
	"github.com/agrolink/agrolink/pkg/slogx"
)

// AuthHandler serves the /api/auth surface.
type AuthHandler struct {
	AuthService *service.AuthService
	UserService *service.UserService
	Expose      bool
}

type authResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	User    userJSON `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Location  string `json:"location"`
		Password  string `json:"password"`
		Role      string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Location:  req.Location,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Token:   token,
		User:    toUserJSON(user),
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authResponse{
		Success: true,
		Token:   token,
		User:    toUserJSON(user),
	})
}

// HandleVerifyEmail consumes the single-use token carried in the link from
// the verification email, so it arrives as a query parameter on a GET.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	if err := h.AuthService.VerifyEmail(r.Context(), token); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "Email verified successfully",
	})
}

func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.AuthService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	// The response is identical whether or not the account exists.
	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "If an account with that email exists, a password reset link has been sent",
	})
}

func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.AuthService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "Password reset successful",
	})
}

func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.AuthService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "Password changed successfully",
	})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}

	user, err := h.UserService.GetByID(ctx, userID)
	if err != nil {
		log.Warn("failed to load current user", "user_id", userID, "err", err)
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		User    userJSON `json:"user"`
	}{Success: true, User: toUserJSON(user)})
}

func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}

	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
		Location  string `json:"location"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), userID, service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Location:  req.Location,
	})
	if err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		User    userJSON `json:"user"`
	}{Success: true, User: toUserJSON(user)})
}
