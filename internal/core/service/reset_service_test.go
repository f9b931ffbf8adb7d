package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

func newTestResetService(repo *stubCredentialRepo, notifier *stubNotifier, throttle Throttle) *ResetService {
	issuer := NewTokenIssuer("access-secret", "refresh-secret", 24*time.Hour)
	return NewResetService(repo, issuer, notifier, throttle, ResetPolicy{
		OTPLength:         6,
		OTPTTL:            5 * time.Minute,
		ResetWindow:       10 * time.Minute,
		ForgotTokenTTL:    15 * time.Minute,
		PasswordMinLength: 8,
	}, zerolog.Nop())
}

func seedCredential(t *testing.T, repo *stubCredentialRepo, email, password string) *domain.Credential {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cred, err := repo.Insert(context.Background(), &domain.Credential{
		Email:        email,
		UserName:     "tester",
		PasswordHash: hash,
		Status:       domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return cred
}

func TestResetService_ForgotPassword_IssuesChallenge(t *testing.T) {
	repo := newStubCredentialRepo()
	notifier := &stubNotifier{}
	svc := newTestResetService(repo, notifier, nil)

	cred := seedCredential(t, repo, "alice@example.com", "OldPass1!")

	if err := svc.ForgotPassword(context.Background(), "Alice@Example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if len(stored.OTP) != 6 {
		t.Fatalf("expected 6-digit otp, got %q", stored.OTP)
	}
	if stored.ResetToken == "" || stored.ResetTokenExpiry == nil {
		t.Fatalf("reset token not stored")
	}
	if stored.OTPVerified {
		t.Fatalf("otp must start unverified")
	}

	n := notifier.last()
	if n == nil || n.Kind != ports.NotifyOTP {
		t.Fatalf("expected otp notification, got %+v", n)
	}
	if n.Data["otp"] != stored.OTP {
		t.Fatalf("notification otp mismatch")
	}
}

func TestResetService_ForgotPassword_UnknownEmail(t *testing.T) {
	svc := newTestResetService(newStubCredentialRepo(), &stubNotifier{}, nil)
	if err := svc.ForgotPassword(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestResetService_ResendOTP_ReplacesChallenge(t *testing.T) {
	repo := newStubCredentialRepo()
	notifier := &stubNotifier{}
	svc := newTestResetService(repo, notifier, nil)

	cred := seedCredential(t, repo, "bob@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "bob@example.com")
	first, _ := repo.FindByID(context.Background(), cred.ID)

	if err := svc.ResendOTP(context.Background(), "bob@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second, _ := repo.FindByID(context.Background(), cred.ID)
	if second.ResetToken == first.ResetToken {
		t.Fatalf("reset token not reissued")
	}
	if n := notifier.last(); n == nil || n.Kind != ports.NotifyOTPResend {
		t.Fatalf("expected resend notification, got %+v", n)
	}
}

func TestResetService_ResendOTP_AfterVerificationRejected(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "carol@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "carol@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if err := svc.VerifyOTP(context.Background(), "carol@example.com", stored.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.ResendOTP(context.Background(), "carol@example.com"); !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound for verified otp, got %v", err)
	}
}

func TestResetService_CooldownSuppressesResend(t *testing.T) {
	repo := newStubCredentialRepo()
	notifier := &stubNotifier{}
	throttle := &stubThrottle{allow: false}
	svc := newTestResetService(repo, notifier, throttle)

	cred := seedCredential(t, repo, "dave@example.com", "OldPass1!")

	// Suppression is silent: no error, no challenge, no notification.
	if err := svc.ForgotPassword(context.Background(), "dave@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if throttle.calls != 1 {
		t.Fatalf("throttle not consulted")
	}
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if stored.OTP != "" || len(notifier.sent) != 0 {
		t.Fatalf("challenge issued despite cooldown")
	}
}

func TestResetService_ThrottleErrorFailsOpen(t *testing.T) {
	repo := newStubCredentialRepo()
	notifier := &stubNotifier{}
	throttle := &stubThrottle{err: errors.New("redis down")}
	svc := newTestResetService(repo, notifier, throttle)

	cred := seedCredential(t, repo, "erin@example.com", "OldPass1!")

	if err := svc.ForgotPassword(context.Background(), "erin@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if stored.OTP == "" || len(notifier.sent) != 1 {
		t.Fatalf("throttle backend failure must not block the flow")
	}
}

func TestResetService_VerifyOTP_Success(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "frank@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "frank@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)

	if err := svc.VerifyOTP(context.Background(), "frank@example.com", stored.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}
	after, _ := repo.FindByID(context.Background(), cred.ID)
	if !after.OTPVerified || after.OTPVerifiedAt == nil {
		t.Fatalf("otp not marked verified")
	}
	if after.OTP != "" {
		t.Fatalf("consumed otp still stored")
	}
}

func TestResetService_VerifyOTP_Mismatch(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	seedCredential(t, repo, "grace@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "grace@example.com")

	if err := svc.VerifyOTP(context.Background(), "grace@example.com", "000000"); !errors.Is(err, domain.ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
}

func TestResetService_VerifyOTP_MissingFields(t *testing.T) {
	svc := newTestResetService(newStubCredentialRepo(), &stubNotifier{}, nil)

	if err := svc.VerifyOTP(context.Background(), "", "123456"); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if err := svc.VerifyOTP(context.Background(), "x@example.com", ""); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestResetService_VerifyOTP_Expired(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "heidi@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "heidi@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)

	// Past the OTP TTL but inside the reset token's signature window would
	// not hold for real clocks; keep the issuer clock with the service clock.
	later := time.Now().Add(6 * time.Minute)
	svc.now = func() time.Time { return later }
	svc.issuer.now = func() time.Time { return time.Now() }

	if err := svc.VerifyOTP(context.Background(), "heidi@example.com", stored.OTP); !errors.Is(err, domain.ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	after, _ := repo.FindByID(context.Background(), cred.ID)
	if after.OTP != "" || after.OTPExpiresAt != nil {
		t.Fatalf("expired otp fields not cleared")
	}
}

func TestResetService_ResetPassword_FullFlow(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "ivan@example.com", "OldPass1!")
	// Give the credential a live session so we can observe the teardown.
	_ = repo.InstallSession(context.Background(), cred.ID, ports.SessionState{
		AccessToken:      "access",
		RefreshTokenHash: "refresh-hash",
		SessionID:        "session-1",
	})

	_ = svc.ForgotPassword(context.Background(), "ivan@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if err := svc.VerifyOTP(context.Background(), "ivan@example.com", stored.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), "ivan@example.com", "NewPass1!", "NewPass1!"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	after, _ := repo.FindByID(context.Background(), cred.ID)
	if err := bcrypt.CompareHashAndPassword([]byte(after.PasswordHash), []byte("NewPass1!")); err != nil {
		t.Fatalf("new password not stored: %v", err)
	}
	if after.SessionID != "" || after.AccessToken != "" || after.RefreshTokenHash != "" {
		t.Fatalf("sessions not terminated by reset")
	}
	if after.OTPVerified || after.ResetToken != "" {
		t.Fatalf("reset state not cleared")
	}
}

func TestResetService_ResetPassword_WithoutVerification(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	seedCredential(t, repo, "judy@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "judy@example.com")

	if err := svc.ResetPassword(context.Background(), "judy@example.com", "NewPass1!", "NewPass1!"); !errors.Is(err, domain.ErrResetNotAllowed) {
		t.Fatalf("expected ErrResetNotAllowed, got %v", err)
	}
}

func TestResetService_ResetPassword_WindowClosed(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "kate@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "kate@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if err := svc.VerifyOTP(context.Background(), "kate@example.com", stored.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	if err := svc.ResetPassword(context.Background(), "kate@example.com", "NewPass1!", "NewPass1!"); !errors.Is(err, domain.ErrResetNotAllowed) {
		t.Fatalf("expected ErrResetNotAllowed after window, got %v", err)
	}
}

func TestResetService_ResetPassword_FirstTimeBypassesWindow(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "leo@example.com", "OldPass1!")
	invited := time.Now().Add(-48 * time.Hour)
	_ = repo.Reprovision(context.Background(), cred.ID, ports.ProvisionState{
		PasswordHash:     cred.PasswordHash,
		ResetToken:       "invite-token",
		ResetTokenExpiry: time.Now().Add(time.Hour),
		InvitedAt:        invited,
	})

	// Two days past the invite; the first-time flag keeps the reset open.
	if err := svc.ResetPassword(context.Background(), "leo@example.com", "NewPass1!", "NewPass1!"); err != nil {
		t.Fatalf("first-time reset: %v", err)
	}
}

func TestResetService_ResetPassword_Validation(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestResetService(repo, &stubNotifier{}, nil)

	cred := seedCredential(t, repo, "mia@example.com", "OldPass1!")
	_ = svc.ForgotPassword(context.Background(), "mia@example.com")
	stored, _ := repo.FindByID(context.Background(), cred.ID)
	if err := svc.VerifyOTP(context.Background(), "mia@example.com", stored.OTP); err != nil {
		t.Fatalf("verify: %v", err)
	}

	cases := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{"empty", "", "", domain.ErrMissingField},
		{"mismatch", "NewPass1!", "Different1!", domain.ErrPasswordMismatch},
		{"too short", "Np1!", "Np1!", domain.ErrWeakPassword},
		{"no upper", "newpass1!", "newpass1!", domain.ErrWeakPassword},
		{"no digit", "NewPass!!", "NewPass!!", domain.ErrWeakPassword},
		{"no special", "NewPass11", "NewPass11", domain.ErrWeakPassword},
		{"reused", "OldPass1!", "OldPass1!", domain.ErrPasswordReused},
	}
	for _, tc := range cases {
		if err := svc.ResetPassword(context.Background(), "mia@example.com", tc.password, tc.confirm); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
