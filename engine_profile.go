package authcore

import (
	"context"
	"strings"
)

// Profile returns the redacted view of the account.
func (s *Service) Profile(ctx context.Context, userID string) (*SafeUser, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.SafeView(), nil
}

// UpdateProfile applies the allow-listed profile fields and returns the
// updated view. Credential and lifecycle fields are not reachable from
// here.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*SafeUser, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		name := strings.TrimSpace(*update.FirstName)
		if name == "" {
			return nil, validationErr("first name required")
		}
		user.FirstName = name
	}
	if update.LastName != nil {
		name := strings.TrimSpace(*update.LastName)
		if name == "" {
			return nil, validationErr("last name required")
		}
		user.LastName = name
	}
	if update.Phone != nil {
		user.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.Company != nil {
		c := *update.Company
		user.Company = &c
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, internalErr(err)
	}
	return user.SafeView(), nil
}

// Deactivate flips the active flag off. Accounts are never hard-deleted by
// this core.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	user.IsActive = false
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	s.emitAudit(ctx, auditEventAccountDeactivated, true, user.ID, nil, nil)
	return nil
}

// Block marks the account blocked with an operator-facing reason. Blocked
// accounts fail login and refresh until unblocked.
func (s *Service) Block(ctx context.Context, userID, reason string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	user.IsBlocked = true
	user.BlockedReason = reason
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	s.emitAudit(ctx, auditEventAccountBlocked, true, user.ID, nil, map[string]string{"reason": reason})
	return nil
}

// Unblock clears the blocked flag and reason.
func (s *Service) Unblock(ctx context.Context, userID string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	user.IsBlocked = false
	user.BlockedReason = ""
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}
	return nil
}
