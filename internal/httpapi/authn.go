package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"linkdesk.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/users/signup",
	"/v1/users/login",
	"/v1/users/forgot-password",
}

// The reset token in the path is the credential itself.
var publicPrefixes = []string{
	"/v1/users/reset-password/",
}

// withAuth runs the request through the authentication chain: extract the
// bearer token, verify it, re-resolve the user and reject stale tokens. The
// authenticated user is attached to the request context for downstream
// handlers.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="linkdesk"`)
			writeError(w, r, http.StatusUnauthorized, "you are not logged in, please log in to get access")
			return
		}

		user, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token, please log in again")
			case errors.Is(err, auth.ErrTokenStale):
				writeError(w, r, http.StatusUnauthorized, "password was changed recently, please log in again")
			case errors.Is(err, auth.ErrUserNotFound):
				writeError(w, r, http.StatusUnauthorized, "the user belonging to this token no longer exists")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler behind a permitted role set. It composes after
// withAuth: a missing identity is a 401, a role mismatch a 403, and the
// downstream handler is never invoked in either case.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="linkdesk"`)
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !auth.RoleAllowed(user.Role, roles...) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="linkdesk", error="insufficient_scope"`)
				writeError(w, r, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
