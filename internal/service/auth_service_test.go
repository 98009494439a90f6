package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/throttle"
)

// fakeAccountRepo is an in-memory AccountRepository with the same
// reservation and consumption semantics as the Postgres implementation.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	clone := *a
	return &clone
}

func (r *fakeAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "account not found")
	}
	return cloneAccount(account), nil
}

func (r *fakeAccountRepo) getByEmail(email string, status domain.AccountStatus) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Email == email && account.Status == status {
			return cloneAccount(account), nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "account not found")
}

func (r *fakeAccountRepo) GetActiveByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByEmail(email, domain.AccountStatusActive)
}

func (r *fakeAccountRepo) GetPendingByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByEmail(email, domain.AccountStatusPending)
}

func (r *fakeAccountRepo) ReservePending(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.accounts {
		if existing.Email != account.Email {
			continue
		}
		if existing.Status == domain.AccountStatusActive {
			return domain.E(domain.KindConflict, "email is already registered")
		}
		if existing.Status == domain.AccountStatusPending {
			delete(r.accounts, id)
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *fakeAccountRepo) Activate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok || account.Status != domain.AccountStatusPending {
		return domain.E(domain.KindNotFound, "pending account not found")
	}
	now := time.Now()
	account.Status = domain.AccountStatusActive
	account.OneTimeCode = nil
	account.OneTimeCodePurpose = nil
	account.OneTimeCodeExpiresAt = nil
	account.LastLoginAt = &now
	account.UpdatedAt = now
	return nil
}

func (r *fakeAccountRepo) DiscardPending(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok && account.Status == domain.AccountStatusPending {
		delete(r.accounts, id)
	}
	return nil
}

func (r *fakeAccountRepo) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return domain.E(domain.KindNotFound, "account not found")
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *fakeAccountRepo) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		now := time.Now()
		account.LastLoginAt = &now
	}
	return nil
}

func (r *fakeAccountRepo) SetOneTimeCode(_ context.Context, id uuid.UUID, code domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return domain.E(domain.KindNotFound, "account not found")
	}
	account.AssignCode(code)
	return nil
}

func (r *fakeAccountRepo) ClearOneTimeCode(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.OneTimeCode = nil
		account.OneTimeCodePurpose = nil
		account.OneTimeCodeExpiresAt = nil
	}
	return nil
}

func (r *fakeAccountRepo) ConsumeOneTimeCode(_ context.Context, id uuid.UUID, value string, purpose domain.CodePurpose) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	pending := account.PendingCode()
	if pending == nil || pending.Value != value || pending.Purpose != purpose || pending.Expired(time.Now()) {
		return false, nil
	}
	account.OneTimeCode = nil
	account.OneTimeCodePurpose = nil
	account.OneTimeCodeExpiresAt = nil
	return true, nil
}

func (r *fakeAccountRepo) BackfillMFASecrets(_ context.Context, gen func() (string, error)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, account := range r.accounts {
		if account.MFASecret != "" {
			continue
		}
		secret, err := gen()
		if err != nil {
			return count, err
		}
		account.MFASecret = secret
		count++
	}
	return count, nil
}

func (r *fakeAccountRepo) pendingCount(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, account := range r.accounts {
		if account.Email == email && account.Status == domain.AccountStatusPending {
			count++
		}
	}
	return count
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*domain.LoginAttempt
}

func (r *fakeAttemptRepo) Record(_ context.Context, attempt *domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) ListByEmail(_ context.Context, email string, limit int) ([]*domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LoginAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].Email == email {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

type sentCode struct {
	to      string
	code    string
	purpose domain.CodePurpose
}

type fakeMailer struct {
	mu        sync.Mutex
	codes     []sentCode
	welcomes  []string
	failCodes bool
}

func (m *fakeMailer) SendOneTimeCode(_ context.Context, to, code string, purpose domain.CodePurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCodes {
		return domain.E(domain.KindDeliveryFailure, "smtp is down")
	}
	m.codes = append(m.codes, sentCode{to: to, code: code, purpose: purpose})
	return nil
}

func (m *fakeMailer) SendWelcome(_ context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, to)
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.codes)
	return m.codes[len(m.codes)-1]
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeAccountRepo, *fakeAttemptRepo, *fakeMailer) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	tokens, err := jwt.NewTokenService([]byte("test-secret"), time.Hour, 10*time.Minute, "identity-service")
	require.NoError(t, err)

	accounts := newFakeAccountRepo()
	attempts := &fakeAttemptRepo{}
	mailer := &fakeMailer{}

	svc := NewAuthService(
		accounts,
		attempts,
		NewMFAService("identity-service"),
		tokens,
		mailer,
		throttle.NewLoginThrottle(redisClient),
	)
	return svc, accounts, attempts, mailer
}

// registerActive runs both registration steps and returns the activated
// account.
func registerActive(t *testing.T, svc *AuthService, accounts *fakeAccountRepo, mailer *fakeMailer, email, password, method string) *domain.Account {
	t.Helper()
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:     email,
		Password:  password,
		Role:      "operator",
		MFAMethod: method,
	})
	require.NoError(t, err)
	require.Equal(t, StatusVerificationPending, resp.Status)

	resp, err = svc.Register(ctx, RegisterRequest{
		Email:          email,
		Password:       password,
		Role:           "operator",
		MFAMethod:      method,
		TwoFactorToken: mailer.lastCode(t).code,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, resp.Status)

	account, err := accounts.GetActiveByEmail(ctx, email)
	require.NoError(t, err)
	return account
}

func TestRegisterStartsPendingVerification(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)
	require.Equal(t, StatusVerificationPending, resp.Status)
	require.Nil(t, resp.Token)

	pending, err := accounts.GetPendingByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusPending, pending.Status)
	require.NotEmpty(t, pending.MFASecret)
	require.NotNil(t, pending.PasswordHash)
	require.NotEqual(t, "password123", *pending.PasswordHash)

	sent := mailer.lastCode(t)
	require.Equal(t, "ops@example.com", sent.to)
	require.Equal(t, domain.CodePurposeSignup, sent.purpose)
	require.Len(t, sent.code, 6)
}

func TestRegisterCompleteActivatesAccount(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		Role:           "admin",
		TwoFactorToken: mailer.lastCode(t).code,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, resp.Status)
	require.NotNil(t, resp.Token)
	require.NotNil(t, resp.Account)
	require.Equal(t, "admin", resp.Account.Role)
	require.Nil(t, resp.Enrollment, "email-method accounts get no TOTP enrollment")

	account, err := accounts.GetActiveByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Nil(t, account.PendingCode(), "signup code must be cleared on activation")
	require.NotNil(t, account.LastLoginAt)

	require.Contains(t, mailer.welcomes, "ops@example.com")
}

func TestRegisterTOTPReturnsEnrollment(t *testing.T) {
	svc, _, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email:     "ops@example.com",
		Password:  "password123",
		Role:      "viewer",
		MFAMethod: "totp",
	})
	require.NoError(t, err)

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		Role:           "viewer",
		MFAMethod:      "totp",
		TwoFactorToken: mailer.lastCode(t).code,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Enrollment)
	require.Contains(t, resp.Enrollment.URL, "otpauth://totp/")
	require.NotEmpty(t, resp.Enrollment.QRCodePNG)
}

func TestRegisterWrongCodeDiscardsPending(t *testing.T) {
	svc, accounts, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		Role:           "admin",
		TwoFactorToken: "000000",
	})
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))

	// The reservation is spent; the email can start over.
	_, err = accounts.GetPendingByEmail(ctx, "ops@example.com")
	require.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestRegisterConflictsWithActiveAccount(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ops@example.com",
		Password: "different456",
		Role:     "viewer",
	})
	require.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestRegisterDeliveryFailureRollsBackReservation(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	mailer.failCodes = true

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.True(t, domain.IsKind(err, domain.KindDeliveryFailure))

	require.Equal(t, 0, accounts.pendingCount("ops@example.com"))
}

func TestReRegisterReplacesPendingReservation(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "admin",
	})
	require.NoError(t, err)
	secondCode := mailer.lastCode(t).code

	require.Equal(t, 1, accounts.pendingCount("ops@example.com"))

	// Only the latest reservation's code redeems.
	resp, err := svc.Register(ctx, RegisterRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		Role:           "admin",
		TwoFactorToken: secondCode,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, resp.Status)
}

func TestLoginRequiresVerificationCode(t *testing.T) {
	svc, accounts, attempts, mailer := newTestAuthService(t)
	ctx := context.Background()

	account := registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "password123",
	}, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, StatusVerificationRequired, resp.Status)
	require.Nil(t, resp.Token)

	sent := mailer.lastCode(t)
	require.Equal(t, domain.CodePurposeLogin, sent.purpose)

	stored, err := accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PendingCode())
	require.Equal(t, domain.CodePurposeLogin, stored.PendingCode().Purpose)

	recent, err := attempts.ListByEmail(ctx, "ops@example.com", 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	require.False(t, recent[0].Succeeded)
}

func TestLoginWithEmailedCode(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	_, err := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "password123",
	}, "10.0.0.1")
	require.NoError(t, err)
	code := mailer.lastCode(t).code

	resp, err := svc.Login(ctx, LoginRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		TwoFactorToken: code,
	}, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, resp.Status)
	require.NotNil(t, resp.Token)

	// The code is single-use.
	_, err = svc.Login(ctx, LoginRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		TwoFactorToken: code,
	}, "10.0.0.1")
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestLoginWithTOTP(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	account := registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "totp")

	resp, err := svc.Login(ctx, LoginRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		TwoFactorToken: totpCode(t, account.MFASecret, time.Now()),
	}, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, resp.Status)
	require.NotNil(t, resp.Token)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	_, unknownErr := svc.Login(ctx, LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	}, "10.0.0.1")
	_, wrongErr := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "wrong password",
	}, "10.0.0.1")

	require.True(t, domain.IsKind(unknownErr, domain.KindUnauthorized))
	require.True(t, domain.IsKind(wrongErr, domain.KindUnauthorized))
	require.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginBlockedAfterRepeatedFailures(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, LoginRequest{
			Email:    "ops@example.com",
			Password: "wrong password",
		}, "10.0.0.1")
		require.Error(t, err)
	}

	// Correct credentials no longer help until the block expires.
	_, err := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "password123",
	}, "10.0.0.1")
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))

	// A different source address is unaffected.
	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "password123",
	}, "10.0.0.2")
	require.NoError(t, err)
	require.Equal(t, StatusVerificationRequired, resp.Status)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ops@example.com"))
	sent := mailer.lastCode(t)
	require.Equal(t, domain.CodePurposePasswordReset, sent.purpose)

	// Verification does not consume the code.
	require.NoError(t, svc.VerifyPasswordResetCode(ctx, "ops@example.com", sent.code))
	require.NoError(t, svc.VerifyPasswordResetCode(ctx, "ops@example.com", sent.code))

	require.NoError(t, svc.CompletePasswordReset(ctx, "ops@example.com", sent.code, "newpassword456"))

	// Completion does.
	err := svc.CompletePasswordReset(ctx, "ops@example.com", sent.code, "anotherpass789")
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))

	// Old password out, new password in.
	_, err = svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "password123",
	}, "10.0.0.9")
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "ops@example.com",
		Password: "newpassword456",
	}, "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, StatusVerificationRequired, resp.Status)
}

func TestPasswordResetCodeRejectedForLogin(t *testing.T) {
	svc, accounts, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerActive(t, svc, accounts, mailer, "ops@example.com", "password123", "")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ops@example.com"))
	resetCode := mailer.lastCode(t).code

	_, err := svc.Login(ctx, LoginRequest{
		Email:          "ops@example.com",
		Password:       "password123",
		TwoFactorToken: resetCode,
	}, "10.0.0.1")
	require.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, _, _, mailer := newTestAuthService(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	require.Empty(t, mailer.codes)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ops@example.com",
		Password: "password123",
		Role:     "superuser",
	})
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestBackfillMFASecrets(t *testing.T) {
	svc, accounts, _, _ := newTestAuthService(t)
	ctx := context.Background()

	legacy := &domain.Account{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Email:          "legacy@example.com",
		Role:           "viewer",
		Status:         domain.AccountStatusActive,
	}
	require.NoError(t, accounts.Create(ctx, legacy))

	n, err := svc.BackfillMFASecrets(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := accounts.GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.MFASecret)

	// Idempotent.
	n, err = svc.BackfillMFASecrets(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
