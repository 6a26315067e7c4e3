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

	"github.com/immolink/authcore"
	"github.com/immolink/authcore/store/memory"
)

type recordingMailer struct {
	mu           sync.Mutex
	verifyTokens map[string]string
}

func (m *recordingMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens[email] = token
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return nil
}

func newTestAPI(t *testing.T) (*http.ServeMux, *recordingMailer) {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = 4

	mailer := &recordingMailer{verifyTokens: map[string]string{}}
	svc, err := authcore.New().
		WithConfig(cfg).
		WithStore(memory.NewStore()).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(svc.Close)

	h := NewHandler(svc, Config{RefreshTTL: cfg.Token.RefreshTTL})
	return h.Routes(), mailer
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any, edit ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range edit {
		fn(req)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, mux *http.ServeMux) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()

	rec := postJSON(t, mux, "/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
		"firstName": "Alice", "lastName": "Martin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, mux, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("login body: %v", err)
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			refreshCookie = c
		}
	}
	if refreshCookie == nil {
		t.Fatal("login did not set the refresh cookie")
	}
	return body.AccessToken, refreshCookie
}

func TestLoginSetsHardenedRefreshCookie(t *testing.T) {
	mux, _ := newTestAPI(t)
	_, cookie := registerAndLogin(t, mux)

	if !cookie.HttpOnly {
		t.Error("refresh cookie is not http-only")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", cookie.SameSite)
	}
	if cookie.MaxAge != int((30*24*time.Hour)/time.Second) {
		t.Errorf("MaxAge = %d, want refresh TTL", cookie.MaxAge)
	}
	if cookie.Value == "" {
		t.Error("empty refresh token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mux, _ := newTestAPI(t)
	registerAndLogin(t, mux)

	rec := postJSON(t, mux, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "refresh_token") {
		t.Error("error body leaks token material")
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	mux, _ := newTestAPI(t)
	registerAndLogin(t, mux)

	rec := postJSON(t, mux, "/api/auth/register", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
		"firstName": "Alice", "lastName": "Martin",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRefreshUsesCookie(t *testing.T) {
	mux, _ := newTestAPI(t)
	_, cookie := registerAndLogin(t, mux)

	rec := postJSON(t, mux, "/api/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.AccessToken == "" {
		t.Error("no access token in refresh response")
	}

	// No cookie, no refresh.
	rec = postJSON(t, mux, "/api/auth/refresh", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cookieless refresh status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	mux, _ := newTestAPI(t)
	access, _ := registerAndLogin(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.User.Email != "alice@example.com" {
		t.Errorf("email = %q", body.User.Email)
	}
}

func TestLogoutClearsRefreshCookie(t *testing.T) {
	mux, _ := newTestAPI(t)
	access, cookie := registerAndLogin(t, mux)

	rec := postJSON(t, mux, "/api/auth/logout", nil, func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set("Authorization", "Bearer "+access)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatal("logout did not touch the refresh cookie")
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("cookie not cleared: value=%q maxAge=%d", cleared.Value, cleared.MaxAge)
	}
}

func TestVerifyEmailEndpoint(t *testing.T) {
	mux, mailer := newTestAPI(t)

	rec := postJSON(t, mux, "/api/auth/register", map[string]string{
		"email": "bob@example.com", "password": "correct-horse",
		"firstName": "Bob", "lastName": "Durand",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}

	mailer.mu.Lock()
	token := mailer.verifyTokens["bob@example.com"]
	mailer.mu.Unlock()
	if token == "" {
		t.Fatal("no verification token captured")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify-email?token="+token, nil)
	out := httptest.NewRecorder()
	mux.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", out.Code, out.Body.String())
	}

	// Single use.
	out = httptest.NewRecorder()
	mux.ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/api/auth/verify-email?token="+token, nil))
	if out.Code != http.StatusUnauthorized {
		t.Errorf("reuse status = %d, want 401", out.Code)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	mux, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not-json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
