package handlers

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain composes middleware. The first one is outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ErrorWriter renders an error response. The server passes its envelope
// writer so middleware errors look like handler errors.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

func plainErrorWriter(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}` + "\n"))
}

// ══════════════════════════════════════════════════════════════════════════════
// API KEYS
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth guards write endpoints. Only bcrypt hashes of the keys are
// configured; a key that matched once is remembered by its SHA-256 digest so
// later requests skip the bcrypt cost.
type APIKeyAuth struct {
	header   string
	hashes   [][]byte
	writeErr ErrorWriter
	verified sync.Map // [sha256.Size]byte -> struct{}
}

// NewAPIKeyAuth reads keys from header (or "Authorization: Bearer").
// Blank hashes are ignored. A nil writeErr writes a bare JSON error.
func NewAPIKeyAuth(header string, hashes []string, writeErr ErrorWriter) *APIKeyAuth {
	a := &APIKeyAuth{header: header, writeErr: writeErr}
	if a.writeErr == nil {
		a.writeErr = plainErrorWriter
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// IsValid reports whether key matches a configured hash.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))
	if _, ok := a.verified.Load(digest); ok {
		return true
	}
	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.verified.Store(digest, struct{}{})
			return true
		}
	}
	return false
}

func (a *APIKeyAuth) keyFrom(r *http.Request) string {
	if key := r.Header.Get(a.header); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Middleware rejects requests without a valid key with 401. When no keys
// are configured it returns next unchanged.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch key := a.keyFrom(r); {
		case key == "":
			a.writeErr(w, r, http.StatusUnauthorized, "missing_api_key", "API key is required")
		case !a.IsValid(key):
			a.writeErr(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HEADERS AND BODY LIMITS
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware sets headers for a JSON-only API.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware rejects declared bodies over maxBytes and caps
// streamed ones with http.MaxBytesReader.
func RequestSizeLimitMiddleware(maxBytes int64, writeErr ErrorWriter) MiddlewareFunc {
	if writeErr == nil {
		writeErr = plainErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErr(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
