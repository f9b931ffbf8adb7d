package ports

import (
	"context"
	"time"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

// SessionState is the full token triple installed on login, signup, and
// refresh. The repository must apply it in a single atomic update.
type SessionState struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshTokenHash   string
	RefreshTokenExpiry time.Time
	SessionID          string
	RememberMe         bool
	LastLogin          *time.Time
}

// ResetChallenge is the OTP + reset-token state installed by the
// forgot-password and resend paths.
type ResetChallenge struct {
	OTP              string
	OTPCreatedAt     time.Time
	OTPExpiresAt     time.Time
	ResetToken       string
	ResetTokenExpiry time.Time
}

// ProvisionState reactivates a soft-deleted credential for re-invitation.
type ProvisionState struct {
	PasswordHash     string
	ResetToken       string
	ResetTokenExpiry time.Time
	CreatedBy        string
	InvitedAt        time.Time
}

// CredentialRepository defines persistence for the credential aggregate.
// Each method is a single find or a single atomic update; concurrent
// operations on the same credential serialize at the store.
type CredentialRepository interface {
	Insert(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
	FindByID(ctx context.Context, id string) (*domain.Credential, error)

	// FindByEmail matches case-insensitively among non-deleted credentials.
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	// FindByEmailAny includes soft-deleted credentials (provisioning path).
	FindByEmailAny(ctx context.Context, email string) (*domain.Credential, error)
	// FindLoginCandidate filters to non-deleted, active or inactive credentials.
	FindLoginCandidate(ctx context.Context, email string) (*domain.Credential, error)
	// FindWithPendingOTP filters to non-deleted credentials whose OTP is not
	// yet verified; FindOTPVerified is its post-verification counterpart.
	FindWithPendingOTP(ctx context.Context, email string) (*domain.Credential, error)
	FindOTPVerified(ctx context.Context, email string) (*domain.Credential, error)

	// InstallSession overwrites the session triple and zeroes lockout state,
	// stamping status ACTIVE and accepted terms.
	InstallSession(ctx context.Context, id string, s SessionState) error
	// RotateSession installs the new triple only if the stored session id
	// still equals oldSessionID; returns false when the swap did not match.
	RotateSession(ctx context.Context, id, oldSessionID string, s SessionState) (bool, error)
	// ClearSession removes all token, session, and reset fields and marks
	// the credential INACTIVE. Idempotent.
	ClearSession(ctx context.Context, id string) error
	// ClearRefresh drops only the refresh token state (one-time-use cleanup).
	ClearRefresh(ctx context.Context, id string) error

	SetResetChallenge(ctx context.Context, id string, ch ResetChallenge) error
	ClearOTP(ctx context.Context, id string) error
	MarkOTPVerified(ctx context.Context, id string, at time.Time) error
	// CompletePasswordReset stores the new hash and atomically clears the
	// whole session and reset state, terminating every existing session.
	CompletePasswordReset(ctx context.Context, id, passwordHash string, at time.Time) error

	RecordFailedLogin(ctx context.Context, id string, attempts int, locked bool) error
	Unlock(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status domain.Status) error
	SoftDelete(ctx context.Context, id string) error
	// Reprovision reactivates a soft-deleted credential in place, reusing
	// the same document instead of creating a duplicate.
	Reprovision(ctx context.Context, id string, p ProvisionState) error

	// PushGrants appends permission grants to the granted or restricted set;
	// PullGrants removes ids from one of them. Both are single updates.
	PushGrants(ctx context.Context, id string, grants []domain.PermissionGrant, restricted bool) error
	PullGrants(ctx context.Context, id string, permissionIDs []string, restricted bool) error
}
