package authcore

import (
	"context"
	"strings"
	"time"
)

// AccountType classifies the account at registration time.
type AccountType string

const (
	// AccountTypeIndividual is a private-person account.
	AccountTypeIndividual AccountType = "individual"
	// AccountTypeBusiness is a company account.
	AccountTypeBusiness AccountType = "business"
)

// Role is the coarse authorization role carried in token claims.
type Role string

const (
	RoleVisitor    Role = "visitor"
	RoleIndividual Role = "individual"
	RoleBusiness   Role = "business"
	RoleAdmin      Role = "admin"
)

// RoleForAccountType derives the default role assigned at registration.
func RoleForAccountType(t AccountType) Role {
	if t == AccountTypeBusiness {
		return RoleBusiness
	}
	return RoleIndividual
}

// BackupCode is one single-use 2FA fallback credential. Only the SHA-256
// hash of the code is stored; the Used flag makes double-spend structurally
// impossible once consumption is atomic at the store.
type BackupCode struct {
	Hash [32]byte
	Used bool
}

// CompanyInfo carries the business-account profile fields.
type CompanyInfo struct {
	CompanyName string
	SIRET       string
	Street      string
	City        string
	PostalCode  string
	Country     string
	KYCVerified bool
}

// User is the durable account record. It is owned by the UserStore and
// mutated only through Service flows.
//
// Invariants:
//   - EmailVerificationToken and EmailVerificationExpires are both set or
//     both zero; once EmailVerified is true, both are zero.
//   - PasswordResetToken and PasswordResetExpires pair the same way and the
//     token is cleared in the same update that applies the new password.
//   - A BackupCode with Used=true is never accepted again.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	AccountType  AccountType
	Role         Role
	Company      *CompanyInfo

	EmailVerified            bool
	EmailVerificationToken   string
	EmailVerificationExpires time.Time

	PasswordResetToken   string
	PasswordResetExpires time.Time

	TwoFactorEnabled     bool
	TwoFactorSecret      []byte
	TwoFactorBackupCodes []BackupCode

	IsActive      bool
	IsBlocked     bool
	BlockedReason string

	LastLogin  time.Time
	LoginCount int64

	// Version is the optimistic-concurrency token checked by
	// UserStore.UpdateUser.
	Version   uint32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name for display contexts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SafeUser is the redacted view returned to callers. It never carries the
// password hash, token fields or 2FA secrets.
type SafeUser struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Phone         string       `json:"phone,omitempty"`
	AccountType   AccountType  `json:"accountType"`
	Role          Role         `json:"role"`
	Company       *CompanyInfo `json:"company,omitempty"`
	EmailVerified bool         `json:"emailVerified"`
	TwoFactor     bool         `json:"twoFactorEnabled"`
	IsActive      bool         `json:"isActive"`
	LastLogin     time.Time    `json:"lastLogin,omitzero"`
	LoginCount    int64        `json:"loginCount"`
	CreatedAt     time.Time    `json:"createdAt,omitzero"`
}

// SafeView redacts the record for transport.
func (u *User) SafeView() *SafeUser {
	var company *CompanyInfo
	if u.Company != nil {
		c := *u.Company
		company = &c
	}
	return &SafeUser{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		AccountType:   u.AccountType,
		Role:          u.Role,
		Company:       company,
		EmailVerified: u.EmailVerified,
		TwoFactor:     u.TwoFactorEnabled,
		IsActive:      u.IsActive,
		LastLogin:     u.LastLogin,
		LoginCount:    u.LoginCount,
		CreatedAt:     u.CreatedAt,
	}
}

// UserStore is the credential repository the service is built on.
//
// Implementations must provide the two atomic primitives the flows rely on:
// UpdateUser with an optimistic version check, and ConsumeBackupCode as a
// conditional flip of a single unused code. Lookup misses return ErrNotFound,
// a unique-email violation on create returns ErrDuplicateEmail, and a lost
// version race on update returns ErrVersionConflict.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*User, error)
	GetUserByResetToken(ctx context.Context, token string) (*User, error)

	// UpdateUser persists the record iff the stored Version matches
	// user.Version, then bumps it.
	UpdateUser(ctx context.Context, user *User) error

	// RecordLogin atomically sets LastLogin and increments LoginCount.
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	// ConsumeBackupCode marks the matching unused code as used and reports
	// whether this call was the one that consumed it.
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
}

// Mailer is the outbound-email collaborator. Dispatch failures are
// non-fatal to the flows that use it.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// RegisterInput is the input to Service.Register.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	AccountType AccountType
	Company     *CompanyInfo
}

// LoginResult is returned by Service.Login and Service.VerifyTwoFactorLogin.
// When TwoFactorRequired is set no tokens have been issued yet and the
// caller must follow up with VerifyTwoFactorLogin for UserID.
type LoginResult struct {
	AccessToken  string
	RefreshToken string

	TwoFactorRequired bool
	UserID            string

	User *SafeUser
}

// RefreshResult is returned by Service.Refresh.
type RefreshResult struct {
	AccessToken string
	User        *SafeUser
}

// TwoFactorSetup is returned once by Service.GenerateTwoFactorSetup. The
// plaintext backup codes are never recoverable afterwards.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// TwoFactorStatus is returned by Service.TwoFactorStatus.
type TwoFactorStatus struct {
	Enabled              bool
	BackupCodesRemaining int
}

// ProfileUpdate carries the allow-listed mutable profile fields. Nil fields
// are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Company   *CompanyInfo
}

// Principal identifies an authenticated caller, as attached to HTTP requests
// and realtime connections.
type Principal struct {
	UserID string
	Name   string
	Email  string
}

// NormalizeEmail lower-cases and trims an email for case-insensitive
// uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
