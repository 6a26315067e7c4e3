package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/immolink/authcore"
	"github.com/immolink/authcore/store/memory"
)

func newTestService(t *testing.T) (*authcore.Service, string) {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = 4

	svc, err := authcore.New().
		WithConfig(cfg).
		WithStore(memory.NewStore()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(svc.Close)

	ctx := context.Background()
	if _, err := svc.Register(ctx, authcore.RegisterInput{
		Email: "alice@example.com", Password: "correct-horse",
		FirstName: "Alice", LastName: "Martin",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return svc, res.AccessToken
}

func TestGuardInjectsPrincipal(t *testing.T) {
	svc, access := newTestService(t)

	var got *authcore.Principal
	handler := Guard(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("no principal in context")
		}
		got = p
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.Email != "alice@example.com" || got.Name != "Alice Martin" {
		t.Errorf("principal = %+v", got)
	}
}

func TestGuardRejectsMissingOrBadTokens(t *testing.T) {
	svc, _ := newTestService(t)

	handler := Guard(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a valid token")
	}))

	cases := map[string]string{
		"no header":      "",
		"not bearer":     "Basic dXNlcjpwYXNz",
		"empty bearer":   "Bearer ",
		"garbage bearer": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
