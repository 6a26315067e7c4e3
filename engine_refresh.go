package authcore

import (
	"context"
	"errors"

	"github.com/immolink/authcore/token"
)

// Refresh verifies a refresh token and mints a new access token. Role and
// account type are re-read from the store rather than trusted from the old
// token, so a demoted or deactivated account cannot extend its access.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	claims, err := s.tokens.Parse(refreshToken, token.KindRefresh)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		if errors.Is(err, token.ErrExpired) {
			s.emitAudit(ctx, auditEventRefreshFailure, false, "", ErrTokenExpired, nil)
			return nil, ErrTokenExpired
		}
		s.emitAudit(ctx, auditEventRefreshFailure, false, "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metricInc(MetricRefreshFailure)
			s.emitAudit(ctx, auditEventRefreshFailure, false, claims.Subject, ErrUserInactive, nil)
			return nil, ErrUserInactive
		}
		return nil, internalErr(err)
	}
	if !user.IsActive || user.IsBlocked {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshFailure, false, user.ID, ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	access, err := s.tokens.IssueAccess(s.tokenPayload(user))
	if err != nil {
		return nil, internalErr(err)
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)
	return &RefreshResult{
		AccessToken: access,
		User:        user.SafeView(),
	}, nil
}

// Logout acknowledges the end of a session. Tokens are stateless, so there
// is nothing to revoke server-side; the caller clears its refresh cookie.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if s == nil {
		return ErrServiceNotReady
	}
	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// Authenticate verifies an access token and performs the live-user lookup.
// Both the HTTP guard and the realtime connection handshake go through
// here, so a deactivated account is rejected even with a valid token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	claims, err := s.tokens.Parse(accessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserInactive
		}
		return nil, internalErr(err)
	}
	if !user.IsActive || user.IsBlocked {
		return nil, ErrUserInactive
	}

	return &Principal{
		UserID: user.ID,
		Name:   user.FullName(),
		Email:  user.Email,
	}, nil
}
