package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

// AuthPolicy groups the session-related policy constants.
type AuthPolicy struct {
	AccessTokenTTL     time.Duration
	RememberMeTokenTTL time.Duration
	LoginAttemptLimit  int
}

// AuthService implements signup, login, logout, and refresh-token rotation.
type AuthService struct {
	repo   ports.CredentialRepository
	issuer *TokenIssuer
	policy AuthPolicy
	log    zerolog.Logger
	now    func() time.Time
}

func NewAuthService(repo ports.CredentialRepository, issuer *TokenIssuer, policy AuthPolicy, log zerolog.Logger) *AuthService {
	if policy.LoginAttemptLimit <= 0 {
		policy.LoginAttemptLimit = 5
	}
	return &AuthService{repo: repo, issuer: issuer, policy: policy, log: log, now: time.Now}
}

func (s *AuthService) Signup(ctx context.Context, email, username, password string) (*ports.AuthResult, error) {
	if email == "" || password == "" {
		return nil, domain.ErrMissingField
	}
	email = strings.ToLower(email)

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, domain.ErrEmailTaken
	}
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, fmt.Errorf("signup: lookup: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("signup: hash: %w", err)
	}

	now := s.now().UTC()
	cred := &domain.Credential{
		Email:            email,
		UserName:         usernameOrDefault(username, email),
		PasswordHash:     hash,
		Status:           domain.StatusActive,
		HasAcceptedTerms: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.repo.Insert(ctx, cred)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("signup: insert: %w", err)
	}

	triple, state, err := s.mintSession(created, s.policy.AccessTokenTTL, false, nil)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if err := s.repo.InstallSession(ctx, created.ID, state); err != nil {
		return nil, fmt.Errorf("signup: install session: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Msg("credential created")
	return &ports.AuthResult{User: created, AccessToken: triple.AccessToken, RefreshToken: triple.RefreshToken}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe, hasAcceptedTerms bool) (*ports.AuthResult, error) {
	cred, err := s.repo.FindLoginCandidate(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("login: lookup: %w", err)
	}
	if !hasAcceptedTerms {
		return nil, domain.ErrTermsNotAccepted
	}
	if cred.Locked {
		return nil, domain.ErrAccountLocked
	}

	if !comparePassword(password, cred.PasswordHash) {
		attempts := cred.FailedLoginAttempts + 1
		locked := attempts >= s.policy.LoginAttemptLimit
		if err := s.repo.RecordFailedLogin(ctx, cred.ID, attempts, locked); err != nil {
			return nil, fmt.Errorf("login: record failure: %w", err)
		}
		if locked {
			s.log.Warn().Str("user_id", cred.ID).Int("attempts", attempts).Msg("account locked")
			return nil, domain.ErrAccountLocked
		}
		return nil, fmt.Errorf("%w (%d attempts remaining)", domain.ErrInvalidCredentials, s.policy.LoginAttemptLimit-attempts)
	}

	ttl := s.policy.AccessTokenTTL
	if rememberMe {
		ttl = s.policy.RememberMeTokenTTL
	}
	lastLogin := s.now().UTC()
	triple, state, err := s.mintSession(cred, ttl, rememberMe, &lastLogin)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.repo.InstallSession(ctx, cred.ID, state); err != nil {
		return nil, fmt.Errorf("login: install session: %w", err)
	}

	cred.Status = domain.StatusActive
	return &ports.AuthResult{User: cred, AccessToken: triple.AccessToken, RefreshToken: triple.RefreshToken}, nil
}

// Logout clears all session and reset state. Idempotent: logging out an
// already logged-out credential succeeds.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidToken
	}
	if err := s.repo.ClearSession(ctx, userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Refresh rotates the token pair. The presented refresh token is single-use:
// the rotation is a compare-and-swap keyed on the stored session id, so two
// concurrent calls with the same token cannot both succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	cred, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("refresh: lookup: %w", err)
	}

	if cred.RefreshTokenHash == "" || cred.SessionID == "" {
		return nil, domain.ErrInvalidToken
	}
	if cred.SessionID != claims.SessionID {
		// Stored session moved on: this token was already rotated.
		return nil, domain.ErrSessionExpired
	}
	if !compareToken(refreshToken, cred.RefreshTokenHash) {
		return nil, domain.ErrInvalidToken
	}
	if cred.RefreshTokenExpiry != nil && s.now().After(*cred.RefreshTokenExpiry) {
		if err := s.repo.ClearRefresh(ctx, cred.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", cred.ID).Msg("failed to clear expired refresh state")
		}
		return nil, domain.ErrInvalidToken
	}

	ttl := s.policy.AccessTokenTTL
	if cred.RememberMe {
		ttl = s.policy.RememberMeTokenTTL
	}
	triple, state, err := s.mintSession(cred, ttl, cred.RememberMe, nil)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	rotated, err := s.repo.RotateSession(ctx, cred.ID, claims.SessionID, state)
	if err != nil {
		return nil, fmt.Errorf("refresh: rotate: %w", err)
	}
	if !rotated {
		return nil, domain.ErrSessionExpired
	}

	return &ports.TokenPair{AccessToken: triple.AccessToken, RefreshToken: triple.RefreshToken}, nil
}

// mintSession issues a token triple and builds the matching persisted state,
// with the refresh token stored only as a bcrypt hash.
func (s *AuthService) mintSession(cred *domain.Credential, ttl time.Duration, rememberMe bool, lastLogin *time.Time) (*TokenTriple, ports.SessionState, error) {
	triple, err := s.issuer.Issue(cred, ttl)
	if err != nil {
		return nil, ports.SessionState{}, fmt.Errorf("issue tokens: %w", err)
	}
	refreshHash, err := hashToken(triple.RefreshToken)
	if err != nil {
		return nil, ports.SessionState{}, fmt.Errorf("hash refresh token: %w", err)
	}
	now := s.now().UTC()
	return triple, ports.SessionState{
		AccessToken:        triple.AccessToken,
		AccessTokenExpiry:  now.Add(ttl),
		RefreshTokenHash:   refreshHash,
		RefreshTokenExpiry: now.Add(s.issuer.refreshTTL),
		SessionID:          triple.SessionID,
		RememberMe:         rememberMe,
		LastLogin:          lastLogin,
	}, nil
}

func usernameOrDefault(username, email string) string {
	if username != "" {
		return username
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
