package mongo

import (
	"time"

	"github.com/immolink/authcore"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// userDoc is the BSON shape of a user record. Kept separate from the domain
// type so wire-format concerns stay out of the core package.
type userDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	FirstName    string `bson:"first_name"`
	LastName     string `bson:"last_name"`
	Phone        string `bson:"phone,omitempty"`
	AccountType  string `bson:"account_type"`
	Role         string `bson:"role"`

	Company *companyDoc `bson:"company,omitempty"`

	EmailVerified            bool      `bson:"email_verified"`
	EmailVerificationToken   string    `bson:"email_verification_token,omitempty"`
	EmailVerificationExpires time.Time `bson:"email_verification_expires,omitempty"`

	PasswordResetToken   string    `bson:"password_reset_token,omitempty"`
	PasswordResetExpires time.Time `bson:"password_reset_expires,omitempty"`

	TwoFactorEnabled     bool            `bson:"two_factor_enabled"`
	TwoFactorSecret      []byte          `bson:"two_factor_secret,omitempty"`
	TwoFactorBackupCodes []backupCodeDoc `bson:"two_factor_backup_codes,omitempty"`

	IsActive      bool   `bson:"is_active"`
	IsBlocked     bool   `bson:"is_blocked"`
	BlockedReason string `bson:"blocked_reason,omitempty"`

	LastLogin  time.Time `bson:"last_login,omitempty"`
	LoginCount int64     `bson:"login_count"`

	Version   uint32    `bson:"version"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type companyDoc struct {
	CompanyName string `bson:"company_name,omitempty"`
	SIRET       string `bson:"siret,omitempty"`
	Street      string `bson:"street,omitempty"`
	City        string `bson:"city,omitempty"`
	PostalCode  string `bson:"postal_code,omitempty"`
	Country     string `bson:"country,omitempty"`
	KYCVerified bool   `bson:"kyc_verified"`
}

type backupCodeDoc struct {
	Hash []byte `bson:"hash"`
	Used bool   `bson:"used"`
}

func toDoc(u *authcore.User) *userDoc {
	doc := &userDoc{
		ID:                       u.ID,
		Email:                    u.Email,
		PasswordHash:             u.PasswordHash,
		FirstName:                u.FirstName,
		LastName:                 u.LastName,
		Phone:                    u.Phone,
		AccountType:              string(u.AccountType),
		Role:                     string(u.Role),
		EmailVerified:            u.EmailVerified,
		EmailVerificationToken:   u.EmailVerificationToken,
		EmailVerificationExpires: u.EmailVerificationExpires,
		PasswordResetToken:       u.PasswordResetToken,
		PasswordResetExpires:     u.PasswordResetExpires,
		TwoFactorEnabled:         u.TwoFactorEnabled,
		TwoFactorSecret:          u.TwoFactorSecret,
		IsActive:                 u.IsActive,
		IsBlocked:                u.IsBlocked,
		BlockedReason:            u.BlockedReason,
		LastLogin:                u.LastLogin,
		LoginCount:               u.LoginCount,
		Version:                  u.Version,
		CreatedAt:                u.CreatedAt,
		UpdatedAt:                u.UpdatedAt,
	}
	if u.Company != nil {
		doc.Company = &companyDoc{
			CompanyName: u.Company.CompanyName,
			SIRET:       u.Company.SIRET,
			Street:      u.Company.Street,
			City:        u.Company.City,
			PostalCode:  u.Company.PostalCode,
			Country:     u.Company.Country,
			KYCVerified: u.Company.KYCVerified,
		}
	}
	for _, code := range u.TwoFactorBackupCodes {
		doc.TwoFactorBackupCodes = append(doc.TwoFactorBackupCodes, backupCodeDoc{
			Hash: append([]byte(nil), code.Hash[:]...),
			Used: code.Used,
		})
	}
	return doc
}

// updateFields is the $set document for UpdateUser. It carries every field
// except the immutable ones (_id, created_at), the version (bumped by $inc in
// the same update) and the login stats (last_login, login_count), which only
// RecordLogin may write.
func (d *userDoc) updateFields() bson.D {
	return bson.D{
		{Key: "email", Value: d.Email},
		{Key: "password_hash", Value: d.PasswordHash},
		{Key: "first_name", Value: d.FirstName},
		{Key: "last_name", Value: d.LastName},
		{Key: "phone", Value: d.Phone},
		{Key: "account_type", Value: d.AccountType},
		{Key: "role", Value: d.Role},
		{Key: "company", Value: d.Company},
		{Key: "email_verified", Value: d.EmailVerified},
		{Key: "email_verification_token", Value: d.EmailVerificationToken},
		{Key: "email_verification_expires", Value: d.EmailVerificationExpires},
		{Key: "password_reset_token", Value: d.PasswordResetToken},
		{Key: "password_reset_expires", Value: d.PasswordResetExpires},
		{Key: "two_factor_enabled", Value: d.TwoFactorEnabled},
		{Key: "two_factor_secret", Value: d.TwoFactorSecret},
		{Key: "two_factor_backup_codes", Value: d.TwoFactorBackupCodes},
		{Key: "is_active", Value: d.IsActive},
		{Key: "is_blocked", Value: d.IsBlocked},
		{Key: "blocked_reason", Value: d.BlockedReason},
		{Key: "updated_at", Value: d.UpdatedAt},
	}
}

func fromDoc(doc *userDoc) *authcore.User {
	user := &authcore.User{
		ID:                       doc.ID,
		Email:                    doc.Email,
		PasswordHash:             doc.PasswordHash,
		FirstName:                doc.FirstName,
		LastName:                 doc.LastName,
		Phone:                    doc.Phone,
		AccountType:              authcore.AccountType(doc.AccountType),
		Role:                     authcore.Role(doc.Role),
		EmailVerified:            doc.EmailVerified,
		EmailVerificationToken:   doc.EmailVerificationToken,
		EmailVerificationExpires: doc.EmailVerificationExpires,
		PasswordResetToken:       doc.PasswordResetToken,
		PasswordResetExpires:     doc.PasswordResetExpires,
		TwoFactorEnabled:         doc.TwoFactorEnabled,
		TwoFactorSecret:          doc.TwoFactorSecret,
		IsActive:                 doc.IsActive,
		IsBlocked:                doc.IsBlocked,
		BlockedReason:            doc.BlockedReason,
		LastLogin:                doc.LastLogin,
		LoginCount:               doc.LoginCount,
		Version:                  doc.Version,
		CreatedAt:                doc.CreatedAt,
		UpdatedAt:                doc.UpdatedAt,
	}
	if doc.Company != nil {
		user.Company = &authcore.CompanyInfo{
			CompanyName: doc.Company.CompanyName,
			SIRET:       doc.Company.SIRET,
			Street:      doc.Company.Street,
			City:        doc.Company.City,
			PostalCode:  doc.Company.PostalCode,
			Country:     doc.Company.Country,
			KYCVerified: doc.Company.KYCVerified,
		}
	}
	for _, code := range doc.TwoFactorBackupCodes {
		var hash [32]byte
		copy(hash[:], code.Hash)
		user.TwoFactorBackupCodes = append(user.TwoFactorBackupCodes, authcore.BackupCode{
			Hash: hash,
			Used: code.Used,
		})
	}
	return user
}
