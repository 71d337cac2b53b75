package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"linkdesk.org/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc.def.ghi", "abc.def.ghi", false},
		{"Bearer   spaced-token  ", "spaced-token", false},
		{"", "", true},
		{"Bearer ", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"abc.def.ghi", "", true},
	}
	for _, tc := range cases {
		token, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Errorf("header %q: expected error, got token %q", tc.header, token)
			}
			continue
		}
		if err != nil {
			t.Errorf("header %q: unexpected error %v", tc.header, err)
			continue
		}
		if token != tc.token {
			t.Errorf("header %q: got token %q, want %q", tc.header, token, tc.token)
		}
	}
}

func TestExtractBearerTokenMissingSentinel(t *testing.T) {
	if _, err := extractBearerToken(""); !errors.Is(err, auth.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestIsPublicPath(t *testing.T) {
	public := []string{
		"/",
		"/healthz",
		"/readyz",
		"/metrics",
		"/v1/info",
		"/v1/users/signup",
		"/v1/users/login",
		"/v1/users/forgot-password",
		"/v1/users/reset-password/0123abcd",
	}
	for _, p := range public {
		if !isPublicPath(p) {
			t.Errorf("%s must be public", p)
		}
	}
	private := []string{
		"/v1/users",
		"/v1/users/me",
		"/v1/users/update-password",
		"/v1/link-sources",
	}
	for _, p := range private {
		if isPublicPath(p) {
			t.Errorf("%s must require authentication", p)
		}
	}
}

func TestRequireRole(t *testing.T) {
	called := false
	h := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	// no identity on the context
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/link-sources", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	// wrong role
	req := httptest.NewRequest(http.MethodPost, "/v1/link-sources", nil)
	ctx := auth.ContextWithUser(req.Context(), &auth.User{ID: "u1", Role: auth.RoleUser})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(ctx))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != `Bearer realm="linkdesk", error="insufficient_scope"` {
		t.Fatalf("unexpected challenge: %q", got)
	}
	if called {
		t.Fatal("handler must not run for a forbidden caller")
	}

	// permitted role
	req = httptest.NewRequest(http.MethodPost, "/v1/link-sources", nil)
	ctx = auth.ContextWithUser(req.Context(), &auth.User{ID: "u2", Role: auth.RoleAdmin})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req.WithContext(ctx))
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
}
