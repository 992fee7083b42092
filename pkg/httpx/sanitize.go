package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// The sanitizers below are pure transforms over a decoded payload tree
// (map[string]any / []any / string leaves). They run, in a fixed order,
// before any handler observes body or query. All of them are idempotent.

// EscapeAngleBrackets recursively escapes '<' and '>' in every string field.
// Coarse XSS mitigation for values that may be reflected into HTML later.
func EscapeAngleBrackets(v any) any {
	switch t := v.(type) {
	case string:
		t = strings.ReplaceAll(t, "<", "&lt;")
		return strings.ReplaceAll(t, ">", "&gt;")
	case map[string]any:
		for k, val := range t {
			t[k] = EscapeAngleBrackets(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = EscapeAngleBrackets(val)
		}
		return t
	default:
		return v
	}
}

// CollapseDuplicates keeps only the first value where a top-level field holds
// multiple values (the HTTP parameter-pollution vector: ?role=a&role=b).
func CollapseDuplicates(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, val := range m {
		if arr, ok := val.([]any); ok {
			if len(arr) > 0 {
				m[k] = arr[0]
			} else {
				delete(m, k)
			}
		}
	}
	return m
}

// StripOperatorKeys recursively removes any object key beginning with '$' or
// containing '.'. This closes the document-store query-operator injection
// vector before a handler can feed untrusted keys into a query.
func StripOperatorKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				delete(t, k)
				continue
			}
			t[k] = StripOperatorKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = StripOperatorKeys(val)
		}
		return t
	default:
		return v
	}
}

// injectionPattern is a coarse denylist for SQL-ish metacharacters. Kept as
// defense-in-depth for a future relational backend, not as a substitute for
// parameterized queries.
var injectionPattern = regexp.MustCompile(`(?i)(;|--|/\*|\*/|xp_)`)

// ContainsInjectionPattern reports whether any string value in the payload
// tree matches the denylist.
func ContainsInjectionPattern(v any) bool {
	switch t := v.(type) {
	case string:
		return injectionPattern.MatchString(t)
	case map[string]any:
		for _, val := range t {
			if ContainsInjectionPattern(val) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if ContainsInjectionPattern(val) {
				return true
			}
		}
	}
	return false
}

// queryToTree converts url.Values into the payload-tree shape so the same
// transforms apply to query strings and JSON bodies alike.
func queryToTree(values url.Values) map[string]any {
	tree := make(map[string]any, len(values))
	for k, vs := range values {
		arr := make([]any, len(vs))
		for i, s := range vs {
			arr[i] = s
		}
		tree[k] = arr
	}
	return tree
}

func treeToQuery(tree map[string]any) url.Values {
	values := make(url.Values, len(tree))
	for k, v := range tree {
		switch t := v.(type) {
		case string:
			values.Set(k, t)
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok {
					values.Add(k, s)
				}
			}
		}
	}
	return values
}

// SanitizeRequest applies the transform sequence (escape, collapse, strip) to
// the request's query string and JSON body, rewriting both in place, then
// rejects the request outright if any remaining string matches the injection
// denylist. Handlers downstream only ever observe the sanitized payload.
func SanitizeRequest() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Query parameters
			queryTree := queryToTree(r.URL.Query())
			queryTree = applyQueryTransforms(queryTree).(map[string]any)
			r.URL.RawQuery = treeToQuery(queryTree).Encode()

			// JSON body, when present
			var bodyTree any
			if hasJSONBody(r) {
				raw, err := io.ReadAll(r.Body)
				_ = r.Body.Close()
				if err != nil {
					WriteError(w, http.StatusBadRequest, "Unable to read request body")
					return
				}
				if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &bodyTree) == nil {
					bodyTree = applyBodyTransforms(bodyTree)
					raw, err = json.Marshal(bodyTree)
					if err != nil {
						WriteError(w, http.StatusBadRequest, "Invalid request body")
						return
					}
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				r.ContentLength = int64(len(raw))
			}

			if ContainsInjectionPattern(queryTree) || ContainsInjectionPattern(bodyTree) {
				WriteError(w, http.StatusBadRequest, "Potentially malicious input detected")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func applyQueryTransforms(v any) any {
	v = EscapeAngleBrackets(v)
	v = CollapseDuplicates(v)
	v = StripOperatorKeys(v)
	return v
}

// JSON bodies skip the duplicate collapse: arrays are a legitimate shape
// there, and parameter pollution only exists in the query string.
func applyBodyTransforms(v any) any {
	v = EscapeAngleBrackets(v)
	v = StripOperatorKeys(v)
	return v
}

func hasJSONBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
