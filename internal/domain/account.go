package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

type MFAMethod string

const (
	MFAMethodTOTP  MFAMethod = "totp"
	MFAMethodEmail MFAMethod = "email"
)

// CodePurpose binds a one-time code to the flow that issued it. A code
// issued for one purpose never verifies for another, even though all
// purposes share the same storage columns.
type CodePurpose string

const (
	CodePurposeSignup        CodePurpose = "signup"
	CodePurposeLogin         CodePurpose = "login"
	CodePurposePasswordReset CodePurpose = "password_reset"
)

// ValidRoles is the allow-list for account roles at registration.
var ValidRoles = map[string]bool{
	"admin":    true,
	"operator": true,
	"viewer":   true,
}

// OneTimeCode is a single-use numeric code with a fixed expiry.
type OneTimeCode struct {
	Purpose   CodePurpose
	Value     string
	ExpiresAt time.Time
}

func (c OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type Account struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	OrganizationID       uuid.UUID     `json:"organization_id" db:"organization_id"`
	Email                string        `json:"email" db:"email"`
	PasswordHash         *string       `json:"-" db:"password_hash"`
	Role                 string        `json:"role" db:"role"`
	Status               AccountStatus `json:"status" db:"status"`
	MFASecret            string        `json:"-" db:"mfa_secret"`
	MFAMethod            MFAMethod     `json:"mfa_method" db:"mfa_method"`
	OneTimeCode          *string       `json:"-" db:"one_time_code"`
	OneTimeCodePurpose   *string       `json:"-" db:"one_time_code_purpose"`
	OneTimeCodeExpiresAt *time.Time    `json:"-" db:"one_time_code_expires_at"`
	Provider             *string       `json:"provider,omitempty" db:"provider"`
	ProviderID           *string       `json:"provider_id,omitempty" db:"provider_id"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
	LastLoginAt          *time.Time    `json:"last_login_at" db:"last_login_at"`
}

// PendingCode assembles the one-time code value type from the three
// storage columns, or nil when no code is outstanding.
func (a *Account) PendingCode() *OneTimeCode {
	if a.OneTimeCode == nil || a.OneTimeCodePurpose == nil || a.OneTimeCodeExpiresAt == nil {
		return nil
	}
	return &OneTimeCode{
		Purpose:   CodePurpose(*a.OneTimeCodePurpose),
		Value:     *a.OneTimeCode,
		ExpiresAt: *a.OneTimeCodeExpiresAt,
	}
}

// AssignCode sets the one-time code columns on the in-memory account.
// Persisting is the repository's job.
func (a *Account) AssignCode(code OneTimeCode) {
	purpose := string(code.Purpose)
	a.OneTimeCode = &code.Value
	a.OneTimeCodePurpose = &purpose
	a.OneTimeCodeExpiresAt = &code.ExpiresAt
}
