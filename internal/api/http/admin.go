package http

import (
	"net/http"
	"strconv"

	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/auditx"
	"github.com/agrolink/agrolink/pkg/httpx"
)

// AdminHandler serves the /api/admin surface. Every route is wrapped in
// Protect plus RequireRole(admin) by the router.
type AdminHandler struct {
	UserService *service.UserService
	Audit       *auditx.Emitter
	Expose      bool
}

type paginationJSON struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

type userListResponse struct {
	Success    bool           `json:"success"`
	Data       []userJSON     `json:"data"`
	Pagination paginationJSON `json:"pagination"`
}

func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.UserService.List(r.Context(), store.UserFilter{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	h.Audit.DataRead(r, "users", "list")

	users := make([]userJSON, 0, len(result.Users))
	for _, u := range result.Users {
		users = append(users, toUserJSON(u))
	}

	httpx.WriteJSON(w, http.StatusOK, userListResponse{
		Success: true,
		Data:    users,
		Pagination: paginationJSON{
			Current: result.Page,
			Pages:   result.Pages,
			Total:   result.Total,
		},
	})
}

func (h *AdminHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.UserService.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	h.Audit.SensitiveAction(r, "user.role_change",
		"target_id", id, "new_role", req.Role)

	httpx.WriteJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		User    userJSON `json:"user"`
	}{Success: true, User: toUserJSON(user)})
}

func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.UserService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.Expose)
		return
	}

	h.Audit.SensitiveAction(r, "user.delete", "target_id", id)

	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "User deleted successfully",
	})
}
