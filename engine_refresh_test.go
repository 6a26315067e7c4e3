package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRefreshMintsNewAccessToken(t *testing.T) {
	env := newTestEnv(t)
	id, login := env.login(t, "alice@example.com")

	res, err := env.svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("no access token minted")
	}
	if res.User == nil || res.User.ID != id {
		t.Error("refresh result missing the user view")
	}

	// The minted token authenticates.
	principal, err := env.svc.Authenticate(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.UserID != id {
		t.Errorf("principal user = %q, want %q", principal.UserID, id)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	_, login := env.login(t, "alice@example.com")

	if _, err := env.svc.Refresh(context.Background(), login.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token as refresh: err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshDeniedForDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	id, login := env.login(t, "alice@example.com")

	env.store.mutate(t, id, func(u *User) { u.IsActive = false })

	if _, err := env.svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("err = %v, want ErrUserInactive", err)
	}
}

func TestRefreshReflectsCurrentRole(t *testing.T) {
	env := newTestEnv(t)
	id, login := env.login(t, "alice@example.com")

	// A promotion between login and refresh lands in the new access token.
	env.store.mutate(t, id, func(u *User) { u.Role = RoleAdmin })

	res, err := env.svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.User.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", res.User.Role)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	id, login := env.login(t, "alice@example.com")

	principal, err := env.svc.Authenticate(context.Background(), login.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.UserID != id || principal.Email != "alice@example.com" || principal.Name != "Alice Martin" {
		t.Errorf("principal = %+v", principal)
	}

	if _, err := env.svc.Authenticate(context.Background(), login.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh token as access: err = %v, want ErrTokenInvalid", err)
	}
	if _, err := env.svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage: err = %v, want ErrTokenInvalid", err)
	}

	env.store.mutate(t, id, func(u *User) { u.IsBlocked = true })
	if _, err := env.svc.Authenticate(context.Background(), login.AccessToken); !errors.Is(err, ErrUserInactive) {
		t.Errorf("blocked: err = %v, want ErrUserInactive", err)
	}
}
