package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.Register(context.Background(), RegisterInput{
		Email:     "Alice@Example.COM ",
		Password:  testPassword,
		FirstName: " Alice ",
		LastName:  "Martin",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.FirstName != "Alice" {
		t.Errorf("first name not trimmed: %q", user.FirstName)
	}
	if user.AccountType != AccountTypeIndividual {
		t.Errorf("default account type = %q, want individual", user.AccountType)
	}
	if user.Role != RoleIndividual {
		t.Errorf("role = %q, want individual", user.Role)
	}
	if user.EmailVerified {
		t.Error("new account reported verified before the verification flow")
	}

	if env.mailer.verifyToken("alice@example.com") == "" {
		t.Error("no verification email dispatched")
	}

	stored, err := env.store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if stored.EmailVerificationToken == "" {
		t.Error("verification token not persisted")
	}
	if stored.EmailVerificationToken != env.mailer.verifyToken("alice@example.com") {
		t.Error("persisted token differs from the emailed token")
	}
	if stored.PasswordHash == testPassword || stored.PasswordHash == "" {
		t.Error("password not hashed")
	}
}

func TestRegisterBusinessAccountRole(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.Register(context.Background(), RegisterInput{
		Email:       "agency@example.com",
		Password:    testPassword,
		FirstName:   "Bob",
		LastName:    "Durand",
		AccountType: AccountTypeBusiness,
		Company:     &CompanyInfo{CompanyName: "Durand Immobilier", SIRET: "12345678901234"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != RoleBusiness {
		t.Errorf("role = %q, want business", user.Role)
	}
	if user.Company == nil || user.Company.CompanyName != "Durand Immobilier" {
		t.Error("company info not carried through")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Email:     "ALICE@example.com",
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Martin",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"missing email", RegisterInput{Password: testPassword, FirstName: "A", LastName: "B"}},
		{"malformed email", RegisterInput{Email: "not-an-email", Password: testPassword, FirstName: "A", LastName: "B"}},
		{"short password", RegisterInput{Email: "a@b.fr", Password: "12345", FirstName: "A", LastName: "B"}},
		{"missing first name", RegisterInput{Email: "a@b.fr", Password: testPassword, LastName: "B"}},
		{"missing last name", RegisterInput{Email: "a@b.fr", Password: testPassword, FirstName: "A"}},
		{"unknown account type", RegisterInput{Email: "a@b.fr", Password: testPassword, FirstName: "A", LastName: "B", AccountType: "corporation"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Register(context.Background(), tc.input); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegisterMailFailureAutoVerifiesOutsideProduction(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.failSend = true

	user, err := env.svc.Register(context.Background(), RegisterInput{
		Email:     "alice@example.com",
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Martin",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	stored, err := env.store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !stored.EmailVerified {
		t.Error("dev-mode mail failure should auto-verify the account")
	}
	if stored.EmailVerificationToken != "" {
		t.Error("verification token should be cleared with the auto-verify")
	}
}

func TestRegisterMailFailureKeepsUnverifiedInProduction(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.Security.ProductionMode = true })
	env.mailer.failSend = true

	user, err := env.svc.Register(context.Background(), RegisterInput{
		Email:     "alice@example.com",
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Martin",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	stored, err := env.store.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if stored.EmailVerified {
		t.Error("production mail failure must not auto-verify")
	}
	if stored.EmailVerificationToken == "" {
		t.Error("verification token must survive the mail failure")
	}
}
