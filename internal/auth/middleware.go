package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"courier-dispatch/internal/logx"
)

// Middleware resolves the caller identity and rejects anonymous requests with 401.
func Middleware(v *Verifier, logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := Identify(v, r)
			if !ok {
				logger.Debug("unauthenticated request",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

// Identify returns the caller of r: the bearer token subject when v is
// enabled, the X-User-ID header otherwise.
func Identify(v *Verifier, r *http.Request) (string, bool) {
	if !v.Enabled() {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		return id, id != ""
	}
	tok, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", false
	}
	id, err := v.Verify(tok)
	if err != nil {
		return "", false
	}
	return id, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="dispatch"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "authentication required",
		"reason": "unauthorized",
	})
}
