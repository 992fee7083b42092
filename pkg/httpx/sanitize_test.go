package httpx_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrolink/agrolink/pkg/httpx"
)

func TestEscapeAngleBrackets(t *testing.T) {
	t.Run("escapes nested strings", func(t *testing.T) {
		in := map[string]any{
			"name": "<script>alert(1)</script>",
			"nested": map[string]any{
				"bio": "a > b",
			},
			"tags": []any{"<b>", "ok"},
			"age":  float64(30),
		}

		out := httpx.EscapeAngleBrackets(in).(map[string]any)
		require.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", out["name"])
		require.Equal(t, "a &gt; b", out["nested"].(map[string]any)["bio"])
		require.Equal(t, "&lt;b&gt;", out["tags"].([]any)[0])
		require.Equal(t, float64(30), out["age"])
	})

	t.Run("idempotent", func(t *testing.T) {
		once := httpx.EscapeAngleBrackets("a < b")
		twice := httpx.EscapeAngleBrackets(once)
		require.Equal(t, once, twice)
	})
}

func TestCollapseDuplicates(t *testing.T) {
	t.Run("keeps first of repeated values", func(t *testing.T) {
		in := map[string]any{
			"role":   []any{"farmer", "admin"},
			"scalar": "x",
		}
		out := httpx.CollapseDuplicates(in).(map[string]any)
		require.Equal(t, "farmer", out["role"])
		require.Equal(t, "x", out["scalar"])
	})

	t.Run("drops empty arrays", func(t *testing.T) {
		out := httpx.CollapseDuplicates(map[string]any{"empty": []any{}}).(map[string]any)
		require.NotContains(t, out, "empty")
	})
}

func TestStripOperatorKeys(t *testing.T) {
	t.Run("removes operator and dotted keys recursively", func(t *testing.T) {
		in := map[string]any{
			"email": "a@b.com",
			"$gt":   "",
			"a.b":   "x",
			"filter": map[string]any{
				"$where": "1",
				"name":   "ok",
			},
			"list": []any{
				map[string]any{"$ne": nil, "keep": true},
			},
		}

		out := httpx.StripOperatorKeys(in).(map[string]any)
		require.NotContains(t, out, "$gt")
		require.NotContains(t, out, "a.b")
		require.Contains(t, out, "email")

		filter := out["filter"].(map[string]any)
		require.NotContains(t, filter, "$where")
		require.Contains(t, filter, "name")

		item := out["list"].([]any)[0].(map[string]any)
		require.NotContains(t, item, "$ne")
		require.Contains(t, item, "keep")
	})

	t.Run("idempotent", func(t *testing.T) {
		in := map[string]any{"$a": 1, "b": 2}
		once := httpx.StripOperatorKeys(in).(map[string]any)
		twice := httpx.StripOperatorKeys(once).(map[string]any)
		require.Equal(t, once, twice)
	})
}

func TestContainsInjectionPattern(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		match bool
	}{
		{"clean", map[string]any{"q": "tomato blight"}, false},
		{"semicolon", "1; DROP TABLE users", true},
		{"comment dashes", "admin'--", true},
		{"block comment open", "/* hi", true},
		{"block comment close", "bye */", true},
		{"extended proc", "XP_cmdshell", true},
		{"nested match", map[string]any{"a": []any{map[string]any{"b": "x;y"}}}, true},
		{"numbers untouched", map[string]any{"n": float64(5)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.match, httpx.ContainsInjectionPattern(tc.in))
		})
	}
}

func TestSanitizeRequest(t *testing.T) {
	handler := func(captured *map[string]any, query *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if query != nil {
				*query = r.URL.RawQuery
			}
			if captured != nil {
				raw, _ := io.ReadAll(r.Body)
				if len(raw) > 0 {
					_ = json.Unmarshal(raw, captured)
				}
			}
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("body rewritten before handler", func(t *testing.T) {
		var got map[string]any
		h := httpx.Chain(handler(&got, nil), httpx.SanitizeRequest())

		body := `{"firstName":"<b>Ann</b>","$set":{"role":"admin"},"bio":"x.y is fine"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "&lt;b&gt;Ann&lt;/b&gt;", got["firstName"])
		require.NotContains(t, got, "$set")
		require.Equal(t, "x.y is fine", got["bio"])
	})

	t.Run("json array fields keep all elements", func(t *testing.T) {
		var got map[string]any
		h := httpx.Chain(handler(&got, nil), httpx.SanitizeRequest())

		body := `{"name":"Asha","crops":["maize","beans","kale"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []any{"maize", "beans", "kale"}, got["crops"])
	})

	t.Run("duplicate query params collapse to first", func(t *testing.T) {
		var query string
		h := httpx.Chain(handler(nil, &query), httpx.SanitizeRequest())

		req := httptest.NewRequest(http.MethodGet, "/api/admin/users?role=farmer&role=admin", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "role=farmer", query)
	})

	t.Run("injection pattern rejected", func(t *testing.T) {
		h := httpx.Chain(handler(nil, nil), httpx.SanitizeRequest())

		body := `{"email":"a@b.com","password":"x'; DROP TABLE users;--"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httpx.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.False(t, resp.Success)
		require.Equal(t, "Potentially malicious input detected", resp.Message)
	})

	t.Run("injection pattern in query rejected", func(t *testing.T) {
		h := httpx.Chain(handler(nil, nil), httpx.SanitizeRequest())

		req := httptest.NewRequest(http.MethodGet, "/api/admin/users?search=%27%3B--", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non json body passes through untouched", func(t *testing.T) {
		var body []byte
		h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
		}), httpx.SanitizeRequest())

		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("<raw>"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, "<raw>", string(body))
	})
}
