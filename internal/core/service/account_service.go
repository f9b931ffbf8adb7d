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

const provisionPasswordLength = 24

// AccountService covers administrative account management: provisioning
// with a set-password invite, soft deletion, status changes, and unlock.
type AccountService struct {
	repo           ports.CredentialRepository
	issuer         *TokenIssuer
	notifier       ports.Notifier
	inviteTokenTTL time.Duration
	log            zerolog.Logger
	now            func() time.Time
}

func NewAccountService(repo ports.CredentialRepository, issuer *TokenIssuer, notifier ports.Notifier, inviteTokenTTL time.Duration, log zerolog.Logger) *AccountService {
	return &AccountService{repo: repo, issuer: issuer, notifier: notifier, inviteTokenTTL: inviteTokenTTL, log: log, now: time.Now}
}

// Provision creates a credential on behalf of an administrator. The account
// gets a random password that is never communicated; instead a long-lived
// reset token is issued and sent as a set-password invite. Re-provisioning a
// soft-deleted email reactivates the same document.
func (s *AccountService) Provision(ctx context.Context, in ports.ProvisionInput) (*domain.Credential, error) {
	if in.Email == "" {
		return nil, domain.ErrMissingField
	}
	email := strings.ToLower(in.Email)

	existing, err := s.repo.FindByEmailAny(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, fmt.Errorf("provision: lookup: %w", err)
	}
	if existing != nil && !existing.IsDeleted {
		return nil, domain.ErrEmailTaken
	}

	password, err := generateRandomPassword(provisionPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("provision: random password: %w", err)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("provision: hash: %w", err)
	}

	now := s.now().UTC()
	if existing != nil {
		// Soft-deleted: reactivate in place, reusing the invite path.
		existing.PasswordHash = hash
		resetToken, err := s.issuer.IssueReset(existing, "", s.inviteTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("provision: issue invite token: %w", err)
		}
		p := ports.ProvisionState{
			PasswordHash:     hash,
			ResetToken:       resetToken,
			ResetTokenExpiry: now.Add(s.inviteTokenTTL),
			CreatedBy:        in.CreatedBy,
			InvitedAt:        now,
		}
		if err := s.repo.Reprovision(ctx, existing.ID, p); err != nil {
			return nil, fmt.Errorf("provision: reactivate: %w", err)
		}
		s.notifySetPassword(existing.Email, in.UserName, resetToken)
		return s.repo.FindByID(ctx, existing.ID)
	}

	cred := &domain.Credential{
		Email:        email,
		UserName:     usernameOrDefault(in.UserName, email),
		PasswordHash: hash,
		Status:       domain.StatusInactive,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Insert(ctx, cred)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("provision: insert: %w", err)
	}

	// The invite reuses the reset flow: Reprovision marks the credential
	// pre-verified with the first-time flag so the reset window does not
	// apply, and installs the set-password token.
	resetToken, err := s.issuer.IssueReset(created, "", s.inviteTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("provision: issue invite token: %w", err)
	}
	p := ports.ProvisionState{
		PasswordHash:     hash,
		ResetToken:       resetToken,
		ResetTokenExpiry: now.Add(s.inviteTokenTTL),
		CreatedBy:        in.CreatedBy,
		InvitedAt:        now,
	}
	if err := s.repo.Reprovision(ctx, created.ID, p); err != nil {
		return nil, fmt.Errorf("provision: install invite: %w", err)
	}

	s.notifySetPassword(created.Email, in.UserName, resetToken)
	s.log.Info().Str("user_id", created.ID).Str("created_by", in.CreatedBy).Msg("credential provisioned")
	return s.repo.FindByID(ctx, created.ID)
}

// Delete soft-deletes the credential and forcibly clears its session and
// reset state. Documents are never hard-deleted.
func (s *AccountService) Delete(ctx context.Context, userID string) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("delete: lookup: %w", err)
	}
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("credential soft-deleted")
	return nil
}

func (s *AccountService) ChangeStatus(ctx context.Context, userID string, status string) error {
	var next domain.Status
	switch strings.ToUpper(status) {
	case string(domain.StatusActive):
		next = domain.StatusActive
	case string(domain.StatusInactive):
		next = domain.StatusInactive
	default:
		return domain.ErrInvalidStatus
	}

	cred, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("change status: lookup: %w", err)
	}
	if cred.Status == next {
		return domain.ErrStatusUnchanged
	}
	if err := s.repo.SetStatus(ctx, userID, next); err != nil {
		return fmt.Errorf("change status: %w", err)
	}

	kind := ports.NotifyReactivated
	if next == domain.StatusInactive {
		kind = ports.NotifyDeactivated
	}
	s.notifier.Notify(ports.Notification{Email: cred.Email, Recipient: cred.UserName, Kind: kind})
	return nil
}

// Unlock clears the lockout flag and counter. The lock never self-expires,
// so this administrative path is the only way out besides a successful
// login being impossible while locked.
func (s *AccountService) Unlock(ctx context.Context, userID string) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return domain.ErrCredentialNotFound
		}
		return fmt.Errorf("unlock: lookup: %w", err)
	}
	if err := s.repo.Unlock(ctx, userID); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("account unlocked")
	return nil
}

func (s *AccountService) GetByID(ctx context.Context, userID string) (*domain.Credential, error) {
	if userID == "" {
		return nil, domain.ErrMissingField
	}
	cred, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (s *AccountService) notifySetPassword(email, recipient, resetToken string) {
	s.notifier.Notify(ports.Notification{
		Email:     email,
		Recipient: recipient,
		Kind:      ports.NotifySetPassword,
		Data:      map[string]string{"reset_token": resetToken},
	})
}
