package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/wishmail/wishmail/internal/errors"
)

// requireBearer rejects requests that do not carry "Authorization: Bearer <token>".
func requireBearer(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wishmail-admin"`)
				HandleError(w, r, apperrors.NewUnauthorizedError("a valid admin bearer token is required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
