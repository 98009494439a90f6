package service

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"math/big"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

const (
	// OneTimeCodeTTL is how long an emailed code stays redeemable.
	OneTimeCodeTTL = 10 * time.Minute

	totpPeriod = 30
	totpSkew   = 1 // accept the previous and next 30-second window

	mfaSecretBytes = 20
)

// MFAResult reports which verification path matched.
type MFAResult int

const (
	MFANoMatch MFAResult = iota
	MFAOneTimeCodeMatch
	MFATOTPMatch
)

// EnrollmentArtifact is what a TOTP user scans into an authenticator
// app: the otpauth URL and a QR rendering of it.
type EnrollmentArtifact struct {
	URL       string `json:"url"`
	QRCodePNG string `json:"qr_code_png"` // base64-encoded PNG
}

// MFAService verifies one-time proofs. It is pure: issuing codes to
// accounts, emailing them, and consuming them atomically are the
// orchestrator's and repository's jobs.
type MFAService struct {
	issuer string
}

func NewMFAService(issuer string) *MFAService {
	return &MFAService{issuer: issuer}
}

// Verify checks the supplied code against the account, first match
// wins: a live single-use code of the right purpose, then the TOTP
// secret within the tolerance window.
func (s *MFAService) Verify(account *domain.Account, code string, purpose domain.CodePurpose, now time.Time) MFAResult {
	if code == "" {
		return MFANoMatch
	}

	if pending := account.PendingCode(); pending != nil {
		if pending.Purpose == purpose && !pending.Expired(now) && pending.Value == code {
			return MFAOneTimeCodeMatch
		}
	}

	if account.MFASecret != "" {
		valid, err := totp.ValidateCustom(code, account.MFASecret, now, totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpSkew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err == nil && valid {
			return MFATOTPMatch
		}
	}

	return MFANoMatch
}

// GenerateSecret produces a fresh base32 TOTP secret. Every account
// gets one at creation, enrolled or not.
func (s *MFAService) GenerateSecret() (string, error) {
	raw := make([]byte, mfaSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate MFA secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// GenerateOneTimeCode issues a random 6-digit code with the standard
// expiry, bound to one purpose.
func (s *MFAService) GenerateOneTimeCode(purpose domain.CodePurpose, now time.Time) (domain.OneTimeCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return domain.OneTimeCode{}, fmt.Errorf("failed to generate one-time code: %w", err)
	}

	return domain.OneTimeCode{
		Purpose:   purpose,
		Value:     fmt.Sprintf("%06d", n.Int64()),
		ExpiresAt: now.Add(OneTimeCodeTTL),
	}, nil
}

// Enrollment renders the account's secret into a scannable artifact.
func (s *MFAService) Enrollment(account *domain.Account) (*EnrollmentArtifact, error) {
	otpauth := fmt.Sprintf(
		"otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=%d&secret=%s",
		url.PathEscape(s.issuer), url.PathEscape(account.Email),
		url.QueryEscape(s.issuer), totpPeriod, account.MFASecret,
	)

	key, err := otp.NewKeyFromURL(otpauth)
	if err != nil {
		return nil, fmt.Errorf("failed to build enrollment key: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to render enrollment QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode enrollment QR code: %w", err)
	}

	return &EnrollmentArtifact{
		URL:       key.URL(),
		QRCodePNG: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
