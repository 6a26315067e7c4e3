package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginIssuesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	id, res := env.login(t, "alice@example.com")

	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("login did not issue both tokens")
	}
	if res.TwoFactorRequired {
		t.Error("unexpected two-factor challenge")
	}
	if res.User == nil || res.User.ID != id {
		t.Error("login result missing the user view")
	}

	stored, err := env.store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if stored.LoginCount != 1 {
		t.Errorf("login count = %d, want 1", stored.LoginCount)
	}
	if stored.LastLogin.IsZero() {
		t.Error("last login not recorded")
	}
}

func TestLoginResultCarriesFreshStats(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice@example.com")

	for want := int64(1); want <= 3; want++ {
		res, err := env.svc.Login(context.Background(), "alice@example.com", testPassword)
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if res.User.LoginCount != want {
			t.Errorf("returned login count = %d, want %d", res.User.LoginCount, want)
		}
		if res.User.LastLogin.IsZero() {
			t.Error("returned view missing last login")
		}

		stored, err := env.store.GetUserByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetUserByID: %v", err)
		}
		if stored.LoginCount != want {
			t.Errorf("stored login count = %d, want %d", stored.LoginCount, want)
		}
	}
}

func TestLoginWrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	_, wrongPass := env.svc.Login(context.Background(), "alice@example.com", "wrong-password")
	_, unknown := env.svc.Login(context.Background(), "nobody@example.com", "wrong-password")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", wrongPass)
	}
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Error("the two failure modes leak different error messages")
	}
}

func TestLoginEmptyPasswordRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	if _, err := env.svc.Login(context.Background(), "alice@example.com", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginAccountGates(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice@example.com")

	env.store.mutate(t, id, func(u *User) { u.IsActive = false })
	if _, err := env.svc.Login(context.Background(), "alice@example.com", testPassword); !errors.Is(err, ErrAccountInactive) {
		t.Errorf("inactive: err = %v, want ErrAccountInactive", err)
	}

	env.store.mutate(t, id, func(u *User) {
		u.IsActive = true
		u.IsBlocked = true
		u.BlockedReason = "fraud review"
	})
	if _, err := env.svc.Login(context.Background(), "alice@example.com", testPassword); !errors.Is(err, ErrAccountBlocked) {
		t.Errorf("blocked: err = %v, want ErrAccountBlocked", err)
	}
}

func TestLoginUnverifiedEmail(t *testing.T) {
	// Outside production an unverified account may log in.
	dev := newTestEnv(t)
	if _, err := dev.svc.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Password: testPassword, FirstName: "Alice", LastName: "Martin",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := dev.svc.Login(context.Background(), "alice@example.com", testPassword); err != nil {
		t.Errorf("dev-mode unverified login: %v", err)
	}

	// In production it may not.
	prod := newTestEnv(t, func(cfg *Config) { cfg.Security.ProductionMode = true })
	if _, err := prod.svc.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Password: testPassword, FirstName: "Alice", LastName: "Martin",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := prod.svc.Login(context.Background(), "alice@example.com", testPassword); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("production unverified login: err = %v, want ErrEmailNotVerified", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.Password.Cost = 6 })
	id := env.register(t, "alice@example.com")

	weak, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	env.store.mutate(t, id, func(u *User) { u.PasswordHash = string(weak) })

	if _, err := env.svc.Login(context.Background(), "alice@example.com", testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}

	stored, err := env.store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != 6 {
		t.Errorf("stored cost = %d, want upgraded to 6", cost)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	cfg.Limits.MaxLoginAttempts = 3

	store := newFakeStore()
	mailer := newCaptureMailer()
	svc, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithMailer(mailer).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(svc.Close)

	env := &testEnv{svc: svc, store: store, mailer: mailer}
	env.register(t, "alice@example.com")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Budget exhausted: even the correct password is refused.
	if _, err := svc.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("over budget: err = %v, want ErrLoginRateLimited", err)
	}

	// Cooldown expiry restores access.
	mr.FastForward(cfg.Limits.LoginCooldown)
	if _, err := svc.Login(ctx, "alice@example.com", testPassword); err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
}
