package ports

import (
	"context"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

// AuthResult is returned by signup and login.
type AuthResult struct {
	User         *domain.Credential
	AccessToken  string
	RefreshToken string
}

// TokenPair is returned by a successful refresh rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService orchestrates the session state machine.
type AuthService interface {
	Signup(ctx context.Context, email, username, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string, rememberMe, hasAcceptedTerms bool) (*AuthResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// ResetService runs the OTP password-reset flow.
type ResetService interface {
	ForgotPassword(ctx context.Context, email string) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) error
}

// ProvisionInput describes an admin-created account.
type ProvisionInput struct {
	Email     string
	UserName  string
	CreatedBy string
}

// AccountService covers administrative account management.
type AccountService interface {
	Provision(ctx context.Context, in ProvisionInput) (*domain.Credential, error)
	Delete(ctx context.Context, userID string) error
	ChangeStatus(ctx context.Context, userID string, status string) error
	Unlock(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (*domain.Credential, error)
}

// PermissionDelta reports the outcome of a grant or restrict call.
type PermissionDelta struct {
	Applied []string
	Total   int
}

// RevokeResult reports the outcome of a revoke call.
type RevokeResult struct {
	Revoked   int
	Remaining int
}

// PermissionService maintains the two mutually exclusive permission sets.
type PermissionService interface {
	Grant(ctx context.Context, userID string, permissionIDs []string, grantedBy string) (*PermissionDelta, error)
	Restrict(ctx context.Context, userID string, permissionIDs []string, grantedBy string) (*PermissionDelta, error)
	Revoke(ctx context.Context, userID string, permissionIDs []string, grantedBy string, fromRestricted bool) (*RevokeResult, error)
}
