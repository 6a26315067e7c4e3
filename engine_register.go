package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immolink/authcore/internal"
)

// Register creates an unverified account, emails the verification token and
// returns the redacted user view.
//
// Outside production mode a failed email dispatch marks the account
// verified immediately so local stacks work without an SMTP server. In
// production the unverified state stands and login is blocked until the
// verification flow completes.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*SafeUser, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}
	if err := validateRegisterInput(&input); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, internalErr(err)
	}

	verificationToken, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, internalErr(err)
	}

	now := time.Now()
	user := &User{
		ID:                       uuid.NewString(),
		Email:                    NormalizeEmail(input.Email),
		PasswordHash:             hash,
		FirstName:                strings.TrimSpace(input.FirstName),
		LastName:                 strings.TrimSpace(input.LastName),
		Phone:                    strings.TrimSpace(input.Phone),
		AccountType:              input.AccountType,
		Role:                     RoleForAccountType(input.AccountType),
		Company:                  input.Company,
		EmailVerificationToken:   verificationToken,
		EmailVerificationExpires: now.Add(s.config.Verification.TokenTTL),
		IsActive:                 true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.metricInc(MetricRegisterDuplicate)
			s.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrDuplicateEmail, map[string]string{
				"email": user.Email,
			})
			return nil, ErrDuplicateEmail
		}
		return nil, internalErr(err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, verificationToken); err != nil {
		s.metricInc(MetricMailDispatchFailure)
		s.logger.Warn("verification email dispatch failed",
			"user_id", user.ID, "error", err)

		if !s.config.Security.ProductionMode {
			user.EmailVerified = true
			user.EmailVerificationToken = ""
			user.EmailVerificationExpires = time.Time{}
			if err := s.store.UpdateUser(ctx, user); err != nil {
				return nil, internalErr(err)
			}
		}
	}

	s.metricInc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, nil, map[string]string{
		"account_type": string(user.AccountType),
	})
	return user.SafeView(), nil
}

func validateRegisterInput(input *RegisterInput) error {
	input.Email = NormalizeEmail(input.Email)
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return validationErr("valid email required")
	}
	if len(input.Password) < 6 {
		return validationErr("password must be at least 6 characters")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return validationErr("first name required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		return validationErr("last name required")
	}
	switch input.AccountType {
	case "":
		input.AccountType = AccountTypeIndividual
	case AccountTypeIndividual, AccountTypeBusiness:
	default:
		return validationErr("unknown account type")
	}
	return nil
}
