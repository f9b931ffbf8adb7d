package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

// resetSignTTL is the signature lifetime of the forgot-password token. The
// usable deadline is the separately tracked reset-token expiry.
const resetSignTTL = 5 * time.Minute

// ResetPolicy groups the OTP and password-reset policy constants.
type ResetPolicy struct {
	OTPLength         int
	OTPTTL            time.Duration
	ResetWindow       time.Duration
	ForgotTokenTTL    time.Duration
	PasswordMinLength int
}

// Throttle rate-limits OTP issuance per email. Implementations must fail
// open: a throttle backend error never blocks the flow.
type Throttle interface {
	Allow(ctx context.Context, email string) (bool, error)
}

// ResetService runs the OTP password-reset flow: challenge issuance,
// verification, and the final password update that tears down all sessions.
type ResetService struct {
	repo     ports.CredentialRepository
	issuer   *TokenIssuer
	notifier ports.Notifier
	throttle Throttle
	policy   ResetPolicy
	log      zerolog.Logger
	now      func() time.Time
}

func NewResetService(repo ports.CredentialRepository, issuer *TokenIssuer, notifier ports.Notifier, throttle Throttle, policy ResetPolicy, log zerolog.Logger) *ResetService {
	if policy.OTPLength <= 0 {
		policy.OTPLength = 6
	}
	return &ResetService{repo: repo, issuer: issuer, notifier: notifier, throttle: throttle, policy: policy, log: log, now: time.Now}
}

func (s *ResetService) ForgotPassword(ctx context.Context, email string) error {
	cred, err := s.repo.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("forgot password: lookup: %w", err)
	}
	return s.issueChallenge(ctx, cred, ports.NotifyOTP)
}

// ResendOTP re-issues the challenge, but only while the current OTP is still
// unverified; resending after verification is rejected.
func (s *ResetService) ResendOTP(ctx context.Context, email string) error {
	cred, err := s.repo.FindWithPendingOTP(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("resend otp: lookup: %w", err)
	}
	return s.issueChallenge(ctx, cred, ports.NotifyOTPResend)
}

func (s *ResetService) issueChallenge(ctx context.Context, cred *domain.Credential, kind ports.NotificationKind) error {
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, cred.Email)
		if err != nil {
			s.log.Warn().Err(err).Str("email", cred.Email).Msg("otp throttle check failed, continuing")
		} else if !allowed {
			s.log.Info().Str("email", cred.Email).Msg("otp resend suppressed by cooldown")
			return nil
		}
	}

	otp, err := generateOTP(s.policy.OTPLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	resetToken, err := s.issuer.IssueReset(cred, otp, resetSignTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	now := s.now().UTC()
	ch := ports.ResetChallenge{
		OTP:              otp,
		OTPCreatedAt:     now,
		OTPExpiresAt:     now.Add(s.policy.OTPTTL),
		ResetToken:       resetToken,
		ResetTokenExpiry: now.Add(s.policy.ForgotTokenTTL),
	}
	if err := s.repo.SetResetChallenge(ctx, cred.ID, ch); err != nil {
		return fmt.Errorf("store reset challenge: %w", err)
	}

	s.notifier.Notify(ports.Notification{
		Email:     cred.Email,
		Recipient: cred.UserName,
		Kind:      kind,
		Data: map[string]string{
			"otp":        otp,
			"expires_in": strconv.Itoa(int(s.policy.OTPTTL.Minutes())) + "m",
		},
	})
	return nil
}

func (s *ResetService) VerifyOTP(ctx context.Context, email, otp string) error {
	if email == "" || otp == "" {
		return domain.ErrMissingField
	}

	cred, err := s.repo.FindWithPendingOTP(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("verify otp: lookup: %w", err)
	}

	// The stored reset token must still carry a valid signature.
	if _, err := s.issuer.VerifyReset(cred.ResetToken); err != nil {
		return domain.ErrInvalidToken
	}
	if cred.ResetTokenExpiry != nil && s.now().After(*cred.ResetTokenExpiry) {
		return domain.ErrInvalidToken
	}
	if cred.OTPExpired(s.now()) {
		if err := s.repo.ClearOTP(ctx, cred.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", cred.ID).Msg("failed to clear expired otp")
		}
		return domain.ErrOTPExpired
	}
	if cred.OTP != otp {
		return domain.ErrOTPMismatch
	}

	if err := s.repo.MarkOTPVerified(ctx, cred.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("verify otp: mark verified: %w", err)
	}
	return nil
}

// ResetPassword completes the flow. On success the credential's whole
// session and reset state is cleared in the same update that installs the
// new hash, terminating every existing session.
func (s *ResetService) ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) error {
	cred, err := s.repo.FindOTPVerified(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrResetNotAllowed
		}
		return fmt.Errorf("reset password: lookup: %w", err)
	}

	if !cred.ResetWindowOpen(s.now(), s.policy.ResetWindow) {
		return domain.ErrResetNotAllowed
	}
	if newPassword == "" || confirmPassword == "" {
		return domain.ErrMissingField
	}
	if newPassword != confirmPassword {
		return domain.ErrPasswordMismatch
	}
	if !isPasswordSecure(newPassword, s.policy.PasswordMinLength) {
		return domain.ErrWeakPassword
	}
	if comparePassword(newPassword, cred.PasswordHash) {
		return domain.ErrPasswordReused
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}
	if err := s.repo.CompletePasswordReset(ctx, cred.ID, hash, s.now().UTC()); err != nil {
		return fmt.Errorf("reset password: complete: %w", err)
	}

	s.log.Info().Str("user_id", cred.ID).Msg("password reset, all sessions invalidated")
	return nil
}
