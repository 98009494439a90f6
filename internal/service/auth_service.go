package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/email"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/hash"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/throttle"
)

// Flow status values returned to callers. "verification pending" and
// "verification required" are second steps, not terminal failures.
const (
	StatusActive               = "active"
	StatusVerificationPending  = "verification_pending"
	StatusVerificationRequired = "verification_required"
)

// AuthService is the registration/login orchestrator. It owns the
// Unregistered -> PendingVerification -> Active state machine and is
// the only writer of pending reservations.
type AuthService struct {
	accounts repository.AccountRepository
	attempts repository.LoginAttemptRepository
	mfa      *MFAService
	tokens   *jwt.TokenService
	mailer   email.Mailer
	throttle *throttle.LoginThrottle
}

func NewAuthService(
	accounts repository.AccountRepository,
	attempts repository.LoginAttemptRepository,
	mfa *MFAService,
	tokens *jwt.TokenService,
	mailer email.Mailer,
	loginThrottle *throttle.LoginThrottle,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		attempts: attempts,
		mfa:      mfa,
		tokens:   tokens,
		mailer:   mailer,
		throttle: loginThrottle,
	}
}

type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Role           string `json:"role" validate:"required,oneof=admin operator viewer"`
	MFAMethod      string `json:"mfa_method,omitempty" validate:"omitempty,oneof=totp email"`
	TwoFactorToken string `json:"twoFactorToken,omitempty"`
	OrganizationID string `json:"organization_id,omitempty" validate:"omitempty,uuid"`
}

type AccountDTO struct {
	ID             uuid.UUID        `json:"id"`
	Email          string           `json:"email"`
	Role           string           `json:"role"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	MFAMethod      domain.MFAMethod `json:"mfa_method"`
}

type RegisterResponse struct {
	Status     string               `json:"status"`
	Token      *domain.SessionToken `json:"token,omitempty"`
	Account    *AccountDTO          `json:"account,omitempty"`
	Enrollment *EnrollmentArtifact  `json:"enrollment,omitempty"`
}

type LoginRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	TwoFactorToken string `json:"twoFactorToken,omitempty"`
}

type LoginResponse struct {
	Status  string               `json:"status"`
	Token   *domain.SessionToken `json:"token,omitempty"`
	Account *AccountDTO          `json:"account,omitempty"`
}

// Register drives the sign-up state machine. Without a code it creates
// (or replaces) the pending reservation and mails a code; with a code
// it verifies, activates, and mints a session. A failed verification
// discards the reservation so the email can start over.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if !domain.ValidRoles[req.Role] {
		return nil, domain.Ef(domain.KindValidation, "unknown role %q", req.Role)
	}

	method := domain.MFAMethodEmail
	if req.MFAMethod == string(domain.MFAMethodTOTP) {
		method = domain.MFAMethodTOTP
	}

	if req.TwoFactorToken == "" {
		return s.startRegistration(ctx, req, method)
	}
	return s.completeRegistration(ctx, req)
}

func (s *AuthService) startRegistration(ctx context.Context, req RegisterRequest, method domain.MFAMethod) (*RegisterResponse, error) {
	passwordHash, err := hash.Password(req.Password)
	if err != nil {
		return nil, err
	}

	secret, err := s.mfa.GenerateSecret()
	if err != nil {
		return nil, err
	}

	organizationID := uuid.New()
	if req.OrganizationID != "" {
		organizationID, err = uuid.Parse(req.OrganizationID)
		if err != nil {
			return nil, domain.E(domain.KindValidation, "invalid organization_id format")
		}
	}

	now := time.Now()
	account := &domain.Account{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Email:          req.Email,
		PasswordHash:   &passwordHash,
		Role:           req.Role,
		Status:         domain.AccountStatusPending,
		MFASecret:      secret,
		MFAMethod:      method,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	code, err := s.mfa.GenerateOneTimeCode(domain.CodePurposeSignup, now)
	if err != nil {
		return nil, err
	}
	account.AssignCode(code)

	if err := s.accounts.ReservePending(ctx, account); err != nil {
		return nil, err
	}

	if err := s.mailer.SendOneTimeCode(ctx, account.Email, code.Value, domain.CodePurposeSignup); err != nil {
		// The reservation must not leak behind an undeliverable code.
		if derr := s.accounts.DiscardPending(ctx, account.ID); derr != nil {
			log.Printf("[AUTH_SERVICE] Failed to discard pending account %s after delivery failure: %v", account.ID, derr)
		}
		return nil, domain.Wrap(domain.KindDeliveryFailure, "could not deliver verification code", err)
	}

	log.Printf("[AUTH_SERVICE] Registration pending for %s", account.Email)
	return &RegisterResponse{Status: StatusVerificationPending}, nil
}

func (s *AuthService) completeRegistration(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	pending, err := s.accounts.GetPendingByEmail(ctx, req.Email)
	if err != nil {
		return nil, err // NotFound: reservation expired or never existed
	}

	if !s.verifyAndConsume(ctx, pending, req.TwoFactorToken, domain.CodePurposeSignup) {
		// Force a restart; the reservation is spent.
		if derr := s.accounts.DiscardPending(ctx, pending.ID); derr != nil {
			log.Printf("[AUTH_SERVICE] Failed to discard pending account %s: %v", pending.ID, derr)
		}
		return nil, domain.E(domain.KindUnauthorized, "invalid verification code")
	}

	if err := s.accounts.Activate(ctx, pending.ID); err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueSession(pending.ID, pending.Email, pending.Role, pending.OrganizationID)
	if err != nil {
		return nil, err
	}

	resp := &RegisterResponse{
		Status:  StatusActive,
		Token:   token,
		Account: accountDTO(pending),
	}

	if pending.MFAMethod == domain.MFAMethodTOTP {
		enrollment, err := s.mfa.Enrollment(pending)
		if err != nil {
			return nil, err
		}
		resp.Enrollment = enrollment
	}

	if err := s.mailer.SendWelcome(ctx, pending.Email); err != nil {
		// Account is active; onboarding mail is best-effort.
		log.Printf("[AUTH_SERVICE] Welcome email to %s failed: %v", pending.Email, err)
	}

	log.Printf("[AUTH_SERVICE] Account activated for %s", pending.Email)
	return resp, nil
}

// Login drives the sign-in state machine. MFA is mandatory for every
// account: a correct password without a code yields a fresh emailed
// code and "verification required". Failures are deliberately uniform
// so callers cannot distinguish unknown email from wrong password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, sourceIP string) (*LoginResponse, error) {
	blocked, err := s.throttle.Blocked(ctx, req.Email, sourceIP)
	if err != nil {
		log.Printf("[AUTH_SERVICE] Throttle check failed for %s: %v", req.Email, err)
	}
	if blocked {
		s.recordAttempt(ctx, req.Email, sourceIP, false)
		return nil, domain.E(domain.KindUnauthorized, "invalid credentials")
	}

	account, err := s.accounts.GetActiveByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.failLogin(ctx, req.Email, sourceIP)
	}

	if account.PasswordHash == nil {
		return nil, s.failLogin(ctx, req.Email, sourceIP)
	}
	valid, err := hash.Verify(req.Password, *account.PasswordHash)
	if err != nil || !valid {
		return nil, s.failLogin(ctx, req.Email, sourceIP)
	}

	if req.TwoFactorToken == "" {
		now := time.Now()
		code, err := s.mfa.GenerateOneTimeCode(domain.CodePurposeLogin, now)
		if err != nil {
			return nil, err
		}
		if err := s.accounts.SetOneTimeCode(ctx, account.ID, code); err != nil {
			return nil, err
		}
		if err := s.mailer.SendOneTimeCode(ctx, account.Email, code.Value, domain.CodePurposeLogin); err != nil {
			if cerr := s.accounts.ClearOneTimeCode(ctx, account.ID); cerr != nil {
				log.Printf("[AUTH_SERVICE] Failed to clear undeliverable code for %s: %v", account.Email, cerr)
			}
			return nil, domain.Wrap(domain.KindDeliveryFailure, "could not deliver verification code", err)
		}

		s.recordAttempt(ctx, req.Email, sourceIP, false)
		return &LoginResponse{Status: StatusVerificationRequired}, nil
	}

	if !s.verifyAndConsume(ctx, account, req.TwoFactorToken, domain.CodePurposeLogin) {
		return nil, s.failLogin(ctx, req.Email, sourceIP)
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID); err != nil {
		log.Printf("[AUTH_SERVICE] Failed to stamp last login for %s: %v", account.Email, err)
	}
	if err := s.throttle.Reset(ctx, req.Email, sourceIP); err != nil {
		log.Printf("[AUTH_SERVICE] Failed to reset throttle for %s: %v", req.Email, err)
	}
	s.recordAttempt(ctx, req.Email, sourceIP, true)

	token, err := s.tokens.IssueSession(account.ID, account.Email, account.Role, account.OrganizationID)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Status:  StatusActive,
		Token:   token,
		Account: accountDTO(account),
	}, nil
}

// RecordRejectedLogin appends an attempt that was rejected before
// authentication ran. The audit trail covers every login request,
// malformed input included.
func (s *AuthService) RecordRejectedLogin(ctx context.Context, emailAddr, sourceIP string) {
	s.recordAttempt(ctx, emailAddr, sourceIP, false)
}

// RequestPasswordReset issues a reset code. An unknown or inactive
// email is silently accepted so the endpoint does not enumerate
// accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	account, err := s.accounts.GetActiveByEmail(ctx, emailAddr)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil
		}
		return err
	}

	now := time.Now()
	code, err := s.mfa.GenerateOneTimeCode(domain.CodePurposePasswordReset, now)
	if err != nil {
		return err
	}
	if err := s.accounts.SetOneTimeCode(ctx, account.ID, code); err != nil {
		return err
	}

	if err := s.mailer.SendOneTimeCode(ctx, account.Email, code.Value, domain.CodePurposePasswordReset); err != nil {
		if cerr := s.accounts.ClearOneTimeCode(ctx, account.ID); cerr != nil {
			log.Printf("[AUTH_SERVICE] Failed to clear undeliverable reset code for %s: %v", account.Email, cerr)
		}
		return domain.Wrap(domain.KindDeliveryFailure, "could not deliver reset code", err)
	}

	return nil
}

// VerifyPasswordResetCode checks a reset code without consuming it, so
// the UI can gate the new-password form before the final submit.
func (s *AuthService) VerifyPasswordResetCode(ctx context.Context, emailAddr, code string) error {
	account, err := s.accounts.GetActiveByEmail(ctx, emailAddr)
	if err != nil {
		return domain.E(domain.KindUnauthorized, "invalid reset code")
	}

	if s.mfa.Verify(account, code, domain.CodePurposePasswordReset, time.Now()) == MFANoMatch {
		return domain.E(domain.KindUnauthorized, "invalid reset code")
	}

	return nil
}

// CompletePasswordReset consumes the reset code and installs the new
// password hash.
func (s *AuthService) CompletePasswordReset(ctx context.Context, emailAddr, code, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.E(domain.KindValidation, "password must be at least 8 characters")
	}

	account, err := s.accounts.GetActiveByEmail(ctx, emailAddr)
	if err != nil {
		return domain.E(domain.KindUnauthorized, "invalid reset code")
	}

	if !s.verifyAndConsume(ctx, account, code, domain.CodePurposePasswordReset) {
		return domain.E(domain.KindUnauthorized, "invalid reset code")
	}

	passwordHash, err := hash.Password(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = &passwordHash
	// The snapshot predates consumption; writing it back unchanged
	// would revive the spent code.
	account.OneTimeCode = nil
	account.OneTimeCodePurpose = nil
	account.OneTimeCodeExpiresAt = nil
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	log.Printf("[AUTH_SERVICE] Password reset completed for %s", account.Email)
	return nil
}

// BackfillMFASecrets runs the startup migration that guarantees every
// account carries an MFA secret.
func (s *AuthService) BackfillMFASecrets(ctx context.Context) (int, error) {
	return s.accounts.BackfillMFASecrets(ctx, s.mfa.GenerateSecret)
}

// verifyAndConsume runs the dual-path verifier and, when an emailed
// code matched, consumes it atomically. A code that was already spent
// by a concurrent request counts as no match.
func (s *AuthService) verifyAndConsume(ctx context.Context, account *domain.Account, code string, purpose domain.CodePurpose) bool {
	switch s.mfa.Verify(account, code, purpose, time.Now()) {
	case MFAOneTimeCodeMatch:
		consumed, err := s.accounts.ConsumeOneTimeCode(ctx, account.ID, code, purpose)
		if err != nil {
			log.Printf("[AUTH_SERVICE] Failed to consume one-time code for %s: %v", account.Email, err)
			return false
		}
		return consumed
	case MFATOTPMatch:
		return true
	default:
		return false
	}
}

// failLogin records the attempt, bumps the throttle, and returns the
// uniform unauthorized error. The reason is never disclosed.
func (s *AuthService) failLogin(ctx context.Context, emailAddr, sourceIP string) error {
	s.recordAttempt(ctx, emailAddr, sourceIP, false)
	if err := s.throttle.RecordFailure(ctx, emailAddr, sourceIP); err != nil {
		log.Printf("[AUTH_SERVICE] Failed to record throttle failure for %s: %v", emailAddr, err)
	}
	return domain.E(domain.KindUnauthorized, "invalid credentials")
}

func (s *AuthService) recordAttempt(ctx context.Context, emailAddr, sourceIP string, succeeded bool) {
	attempt := &domain.LoginAttempt{
		Email:     emailAddr,
		SourceIP:  sourceIP,
		Succeeded: succeeded,
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		// The audit trail must not block authentication.
		log.Printf("[AUTH_SERVICE] Failed to record login attempt for %s: %v", emailAddr, err)
	}
}

func accountDTO(account *domain.Account) *AccountDTO {
	return &AccountDTO{
		ID:             account.ID,
		Email:          account.Email,
		Role:           account.Role,
		OrganizationID: account.OrganizationID,
		MFAMethod:      account.MFAMethod,
	}
}
