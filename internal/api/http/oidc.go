package http

import (
	"net/http"

	"github.com/agrolink/agrolink/pkg/httpx"
	"github.com/agrolink/agrolink/pkg/oidcx"
)

// OIDCHandler serves the routes authenticated by the external identity
// provider rather than a local session token.
type OIDCHandler struct {
	Issuer             string
	PostLogoutRedirect string
}

type oidcProfile struct {
	Username string         `json:"username"`
	Name     string         `json:"name,omitempty"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Country  string         `json:"country,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

func (h *OIDCHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := OIDCClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		Data    oidcProfile `json:"data"`
	}{
		Success: true,
		Data: oidcProfile{
			Username: claims.Username(),
			Name:     claims.Name,
			Email:    claims.Email,
			Phone:    claims.Phone,
			Country:  claims.Country,
			Raw:      claims.Raw,
		},
	})
}

// HandleLogoutURL returns the provider's end-session URL so the client can
// terminate the upstream session too. The url is null when no provider is
// configured.
func (h *OIDCHandler) HandleLogoutURL(w http.ResponseWriter, r *http.Request) {
	var url *string
	if u := oidcx.EndSessionURL(h.Issuer, h.PostLogoutRedirect); u != "" {
		url = &u
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Data    struct {
			URL *string `json:"url"`
		} `json:"data"`
	}{
		Success: true,
		Data: struct {
			URL *string `json:"url"`
		}{URL: url},
	})
}
