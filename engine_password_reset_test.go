package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	// Same outcome as a known address: the caller learns nothing.
	if err := env.svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	if err := env.svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := env.mailer.resetToken("alice@example.com")
	if token == "" {
		t.Fatal("no reset email dispatched")
	}

	if err := env.svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := env.svc.Login(context.Background(), "alice@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), "alice@example.com", "new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	if err := env.svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := env.mailer.resetToken("alice@example.com")

	if err := env.svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := env.svc.ResetPassword(context.Background(), token, "other-password"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("second use: err = %v, want ErrTokenInvalid", err)
	}
}

func TestPasswordResetExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice@example.com")

	if err := env.svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := env.mailer.resetToken("alice@example.com")

	env.store.mutate(t, id, func(u *User) {
		u.PasswordResetExpires = time.Now().Add(-time.Minute)
	})

	if err := env.svc.ResetPassword(context.Background(), token, "new-password"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestPasswordResetValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	if err := env.svc.ResetPassword(context.Background(), "", "new-password"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("empty token: err = %v, want ErrTokenInvalid", err)
	}

	if err := env.svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := env.mailer.resetToken("alice@example.com")
	if err := env.svc.ResetPassword(context.Background(), token, "short"); !errors.Is(err, ErrValidation) {
		t.Errorf("short password: err = %v, want ErrValidation", err)
	}
	// The rejected attempt must not consume the token.
	if err := env.svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Errorf("token gone after a validation failure: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice@example.com")

	if err := env.svc.ChangePassword(context.Background(), id, "wrong-password", "new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: err = %v, want ErrInvalidCredentials", err)
	}
	if err := env.svc.ChangePassword(context.Background(), id, testPassword, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("short new: err = %v, want ErrValidation", err)
	}

	if err := env.svc.ChangePassword(context.Background(), id, testPassword, "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := env.svc.Login(context.Background(), "alice@example.com", "new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}
