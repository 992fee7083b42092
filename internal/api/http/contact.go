package http

import (
	"net/http"

	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/pkg/httpx"
)

// ContactHandler serves the public contact form.
type ContactHandler struct {
	ContactService *service.ContactService
	Expose         bool
}

func (h *ContactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.ContactService.Submit(r.Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, messageResponse{
		Success: true,
		Message: "Message sent successfully",
	})
}
