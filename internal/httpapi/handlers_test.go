package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"linkdesk.org/internal/auth"
	"linkdesk.org/internal/linksource"
)

type captureMailer struct {
	mu   sync.Mutex
	body string
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	return nil
}

func (m *captureMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

type testEnv struct {
	handler http.Handler
	store   *auth.MemoryStore
	mailer  *captureMailer
	clock   *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{at: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokens("test-secret", time.Hour, auth.WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	store := auth.NewMemoryStore()
	mailer := &captureMailer{}
	authSvc, err := auth.NewService(store, tokens, auth.WithMailer(mailer), auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	links := linksource.NewService(linksource.NewMemoryStore())

	api := New(ReadyProbe{}, "test", authSvc, links)
	// keep the per-IP limiter out of the way; all requests share one address
	api.rateBurst = 10000
	api.ratePerSec = 10000
	return &testEnv{
		handler: api.Handler(),
		store:   store,
		mailer:  mailer,
		clock:   clock,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "http://api.test"+path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rr.Body.String())
	}
	return out
}

// signup registers a user through the API and returns the session token.
func (e *testEnv) signup(t *testing.T, name, email, password string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/v1/users/signup", "", map[string]string{
		"full_name": name, "email": email, "password": password,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rr.Code, rr.Body.String())
	}
	token, _ := jsonBody(t, rr)["token"].(string)
	if token == "" {
		t.Fatal("signup response missing token")
	}
	return token
}

// seedAdmin inserts an admin account directly into the store and logs it in.
func (e *testEnv) seedAdmin(t *testing.T, email, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	err = e.store.Create(context.Background(), &auth.User{
		ID:           "admin-1",
		FullName:     "Site Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	rr := e.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": email, "password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login failed: %d %s", rr.Code, rr.Body.String())
	}
	token, _ := jsonBody(t, rr)["token"].(string)
	return token
}

func resetTokenFromMail(t *testing.T, body string) string {
	t.Helper()
	const marker = "/v1/users/reset-password/"
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("reset URL missing from mail body: %q", body)
	}
	token := body[idx+len(marker):]
	if len(token) < 64 {
		t.Fatalf("token too short in mail body: %q", body)
	}
	return token[:64]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := jsonBody(t, rr)
	if body["status"] != "ok" || body["service"] != "linkdesk-api" {
		t.Fatalf("unexpected body: %v", body)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing from chain")
	}
}

func TestReadyWithoutDB(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/readyz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	// the root path is public and falls through to the JSON 404
	rr := env.do(t, http.MethodGet, "/", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := jsonBody(t, rr); body["error"] != "/ not found" {
		t.Fatalf("unexpected body: %v", body)
	}

	// any other unknown path sits behind the auth gate
	rr = env.do(t, http.MethodGet, "/nope", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	token := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")
	rr = env.do(t, http.MethodGet, "/nope", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := jsonBody(t, rr); body["error"] != "/nope not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/users/signup", "", map[string]string{
		"full_name": "Ada Lovelace", "email": "a@x.com", "password": "pass-123",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Fatalf("password material leaked in response: %s", rr.Body.String())
	}
	body := jsonBody(t, rr)
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "a@x.com" || user["role"] != "user" {
		t.Fatalf("unexpected user payload: %v", body)
	}

	// duplicate email
	rr = env.do(t, http.MethodPost, "/v1/users/signup", "", map[string]string{
		"full_name": "Imposter", "email": "a@x.com", "password": "other",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	// missing fields
	rr = env.do(t, http.MethodPost, "/v1/users/signup", "", map[string]string{
		"email": "b@x.com",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	// unknown fields are rejected
	rr = env.do(t, http.MethodPost, "/v1/users/signup", "", map[string]string{
		"full_name": "Eve", "email": "e@x.com", "password": "pass", "role": "admin",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}

	// wrong method
	rr = env.do(t, http.MethodGet, "/v1/users/signup", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("Allow") != "POST" {
		t.Fatalf("expected Allow header, got %q", rr.Header().Get("Allow"))
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	rr := env.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rr.Code)
	}
	if jsonBody(t, rr)["error"] != "incorrect password" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": "missing@x.com", "password": "pass-123",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email": "a@x.com", "password": "pass-123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if token, _ := jsonBody(t, rr)["token"].(string); token == "" {
		t.Fatal("login response missing token")
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	// no token
	rr := env.do(t, http.MethodGet, "/v1/users", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	// garbage token
	rr = env.do(t, http.MethodGet, "/v1/users", "not-a-jwt", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if jsonBody(t, rr)["error"] != "invalid token, please log in again" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	// valid token
	rr = env.do(t, http.MethodGet, "/v1/users", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	users, _ := jsonBody(t, rr)["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected one user, got %v", users)
	}

	// expired token
	env.clock.Advance(2 * time.Hour)
	rr = env.do(t, http.MethodGet, "/v1/users", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rr.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	oldToken := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	// unknown account
	rr := env.do(t, http.MethodPost, "/v1/users/forgot-password", "", map[string]string{
		"email": "missing@x.com",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/users/forgot-password", "", map[string]string{
		"email": "a@x.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if jsonBody(t, rr)["message"] != "token sent to email" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	plaintext := resetTokenFromMail(t, env.mailer.lastBody())

	env.clock.Advance(2 * time.Second)
	rr = env.do(t, http.MethodPatch, "/v1/users/reset-password/"+plaintext, "", map[string]string{
		"password": "brand-new-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	fresh, _ := jsonBody(t, rr)["token"].(string)
	if fresh == "" {
		t.Fatal("reset response missing token")
	}

	// the pre-reset session token is now stale
	rr = env.do(t, http.MethodGet, "/v1/users", oldToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale token, got %d", rr.Code)
	}
	if jsonBody(t, rr)["error"] != "password was changed recently, please log in again" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	// the token issued by the reset works
	rr = env.do(t, http.MethodGet, "/v1/users", fresh, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with fresh token, got %d %s", rr.Code, rr.Body.String())
	}

	// single use
	rr = env.do(t, http.MethodPatch, "/v1/users/reset-password/"+plaintext, "", map[string]string{
		"password": "third-pass",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reuse, got %d", rr.Code)
	}
	if jsonBody(t, rr)["error"] != "token is invalid or expired" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	rr := env.do(t, http.MethodPost, "/v1/users/forgot-password", "", map[string]string{
		"email": "a@x.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	plaintext := resetTokenFromMail(t, env.mailer.lastBody())

	env.clock.Advance(11 * time.Minute)
	rr = env.do(t, http.MethodPatch, "/v1/users/reset-password/"+plaintext, "", map[string]string{
		"password": "new-pass",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 after expiry, got %d", rr.Code)
	}
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	oldToken := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	// wrong current password
	rr := env.do(t, http.MethodPatch, "/v1/users/update-password", oldToken, map[string]string{
		"current_password": "wrong", "new_password": "new-pass",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	env.clock.Advance(2 * time.Second)
	rr = env.do(t, http.MethodPatch, "/v1/users/update-password", oldToken, map[string]string{
		"current_password": "pass-123", "new_password": "new-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	fresh, _ := jsonBody(t, rr)["token"].(string)

	rr = env.do(t, http.MethodGet, "/v1/users", oldToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale 401, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/v1/users", fresh, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("fresh token rejected: %d %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateAndDeleteMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	rr := env.do(t, http.MethodPatch, "/v1/users/me", token, map[string]string{
		"full_name": "Ada King",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	user, _ := jsonBody(t, rr)["user"].(map[string]any)
	if user["full_name"] != "Ada King" || user["email"] != "a@x.com" {
		t.Fatalf("unexpected profile: %v", user)
	}

	// unknown fields (e.g. role escalation) are rejected
	rr = env.do(t, http.MethodPatch, "/v1/users/me", token, map[string]string{
		"role": "admin",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/v1/users/me", token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d %s", rr.Code, rr.Body.String())
	}

	// the account is gone as far as the token is concerned
	rr = env.do(t, http.MethodGet, "/v1/users", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after delete, got %d", rr.Code)
	}
	if jsonBody(t, rr)["error"] != "the user belonging to this token no longer exists" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestLinkSourcesRoleGate(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.signup(t, "Ada Lovelace", "a@x.com", "pass-123")

	// reads are open to any authenticated role
	rr := env.do(t, http.MethodGet, "/v1/link-sources", userToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}

	// writes need the admin role
	rr = env.do(t, http.MethodPost, "/v1/link-sources", userToken, map[string]string{
		"link_source_name": "newsletter",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("WWW-Authenticate"), "insufficient_scope") {
		t.Fatalf("expected insufficient_scope challenge, got %q", rr.Header().Get("WWW-Authenticate"))
	}

	// no token at all
	rr = env.do(t, http.MethodPost, "/v1/link-sources", "", map[string]string{
		"link_source_name": "newsletter",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLinkSourcesCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "admin@x.com", "admin-pass")

	rr := env.do(t, http.MethodPost, "/v1/link-sources", admin, map[string]string{
		"link_source_name": "newsletter",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	created, _ := jsonBody(t, rr)["link_source"].(map[string]any)
	id, _ := created["link_source_id"].(string)
	if id == "" || created["link_source_name"] != "newsletter" {
		t.Fatalf("unexpected record: %v", created)
	}

	rr = env.do(t, http.MethodGet, "/v1/link-sources", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	list, _ := jsonBody(t, rr)["link_sources"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %v", list)
	}

	rr = env.do(t, http.MethodPatch, "/v1/link-sources", admin, map[string]string{
		"link_source_id": id, "link_source_name": "weekly newsletter",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	renamed, _ := jsonBody(t, rr)["link_source"].(map[string]any)
	if renamed["link_source_name"] != "weekly newsletter" {
		t.Fatalf("unexpected record: %v", renamed)
	}

	// validation and unknown ids
	rr = env.do(t, http.MethodPatch, "/v1/link-sources", admin, map[string]string{
		"link_source_name": "no id",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodDelete, "/v1/link-sources", admin, map[string]string{
		"link_source_id": "missing",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/v1/link-sources", admin, map[string]string{
		"link_source_id": id,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	deleted, _ := jsonBody(t, rr)["link_source"].(map[string]any)
	if deleted["link_source_id"] != id {
		t.Fatalf("delete must return the removed record: %v", deleted)
	}

	rr = env.do(t, http.MethodGet, "/v1/link-sources", admin, nil)
	list, _ = jsonBody(t, rr)["link_sources"].([]any)
	if len(list) != 0 {
		t.Fatalf("expected empty catalog, got %v", list)
	}
}
