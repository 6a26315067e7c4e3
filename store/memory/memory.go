// Package memory provides an in-process UserStore for tests and local
// development. It mirrors the concurrency contract of the MongoDB store:
// version-checked updates and atomic backup-code consumption.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/immolink/authcore"
)

// Store keeps user records in maps guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*authcore.User
	byEmail map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*authcore.User),
		byEmail: make(map[string]string),
	}
}

// CreateUser inserts the record, enforcing email uniqueness.
func (s *Store) CreateUser(ctx context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return authcore.ErrDuplicateEmail
	}

	stored := cloneUser(user)
	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, authcore.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) GetUserByVerificationToken(ctx context.Context, token string) (*authcore.User, error) {
	return s.findBy(func(u *authcore.User) bool {
		return token != "" && u.EmailVerificationToken == token
	})
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*authcore.User, error) {
	return s.findBy(func(u *authcore.User) bool {
		return token != "" && u.PasswordResetToken == token
	})
}

// UpdateUser persists the record iff the stored version matches, then bumps
// the version on both the stored copy and the caller's record.
func (s *Store) UpdateUser(ctx context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[user.ID]
	if !ok {
		return authcore.ErrNotFound
	}
	if stored.Version != user.Version {
		return authcore.ErrVersionConflict
	}

	updated := cloneUser(user)
	updated.Version = user.Version + 1
	updated.UpdatedAt = time.Now()

	// Stats fields are owned by RecordLogin; keep the stored values so a
	// concurrent login is not rolled back by a profile update.
	updated.LastLogin = stored.LastLogin
	updated.LoginCount = stored.LoginCount

	if updated.Email != stored.Email {
		if _, exists := s.byEmail[updated.Email]; exists {
			return authcore.ErrDuplicateEmail
		}
		delete(s.byEmail, stored.Email)
		s.byEmail[updated.Email] = updated.ID
	}

	s.byID[updated.ID] = updated
	user.Version = updated.Version
	return nil
}

// RecordLogin atomically updates the login stats without touching the
// record version.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return authcore.ErrNotFound
	}
	user.LastLogin = at
	user.LoginCount++
	return nil
}

// ConsumeBackupCode flips the matching unused code to used. Exactly one of
// any number of concurrent calls with the same hash gets true.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return false, authcore.ErrNotFound
	}

	for i := range user.TwoFactorBackupCodes {
		code := &user.TwoFactorBackupCodes[i]
		if code.Hash == hash && !code.Used {
			code.Used = true
			user.Version++
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) findBy(match func(*authcore.User) bool) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.byID {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return nil, authcore.ErrNotFound
}

func cloneUser(u *authcore.User) *authcore.User {
	c := *u
	if u.Company != nil {
		company := *u.Company
		c.Company = &company
	}
	if u.TwoFactorSecret != nil {
		c.TwoFactorSecret = append([]byte(nil), u.TwoFactorSecret...)
	}
	if u.TwoFactorBackupCodes != nil {
		c.TwoFactorBackupCodes = append([]authcore.BackupCode(nil), u.TwoFactorBackupCodes...)
	}
	return &c
}
