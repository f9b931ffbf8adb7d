package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

// stubCredentialRepo is an in-memory CredentialRepository mirroring the
// update semantics of the Mongo implementation.
type stubCredentialRepo struct {
	creds map[string]*domain.Credential
	seq   int
}

func newStubCredentialRepo() *stubCredentialRepo {
	return &stubCredentialRepo{creds: make(map[string]*domain.Credential)}
}

func cloneCredential(c *domain.Credential) *domain.Credential {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Granted = append([]domain.PermissionGrant(nil), c.Granted...)
	clone.Restricted = append([]domain.PermissionGrant(nil), c.Restricted...)
	return &clone
}

func (r *stubCredentialRepo) get(id string) (*domain.Credential, error) {
	c, ok := r.creds[id]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return c, nil
}

func (r *stubCredentialRepo) Insert(_ context.Context, cred *domain.Credential) (*domain.Credential, error) {
	email := strings.ToLower(cred.Email)
	for _, c := range r.creds {
		if c.Email == email && !c.IsDeleted {
			return nil, domain.ErrEmailTaken
		}
	}
	copy := cloneCredential(cred)
	copy.Email = email
	if copy.ID == "" {
		r.seq++
		copy.ID = "cred-" + strconv.Itoa(r.seq)
	}
	r.creds[copy.ID] = copy
	return cloneCredential(copy), nil
}

func (r *stubCredentialRepo) FindByID(_ context.Context, id string) (*domain.Credential, error) {
	c, err := r.get(id)
	if err != nil || c.IsDeleted {
		return nil, domain.ErrCredentialNotFound
	}
	return cloneCredential(c), nil
}

func (r *stubCredentialRepo) findByEmail(email string, pred func(*domain.Credential) bool) (*domain.Credential, error) {
	email = strings.ToLower(email)
	for _, c := range r.creds {
		if c.Email == email && pred(c) {
			return cloneCredential(c), nil
		}
	}
	return nil, domain.ErrCredentialNotFound
}

func (r *stubCredentialRepo) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	return r.findByEmail(email, func(c *domain.Credential) bool { return !c.IsDeleted })
}

func (r *stubCredentialRepo) FindByEmailAny(_ context.Context, email string) (*domain.Credential, error) {
	return r.findByEmail(email, func(c *domain.Credential) bool { return true })
}

func (r *stubCredentialRepo) FindLoginCandidate(_ context.Context, email string) (*domain.Credential, error) {
	return r.findByEmail(email, func(c *domain.Credential) bool {
		return !c.IsDeleted && (c.Status == domain.StatusActive || c.Status == domain.StatusInactive)
	})
}

func (r *stubCredentialRepo) FindWithPendingOTP(_ context.Context, email string) (*domain.Credential, error) {
	return r.findByEmail(email, func(c *domain.Credential) bool { return !c.IsDeleted && !c.OTPVerified })
}

func (r *stubCredentialRepo) FindOTPVerified(_ context.Context, email string) (*domain.Credential, error) {
	return r.findByEmail(email, func(c *domain.Credential) bool { return !c.IsDeleted && c.OTPVerified })
}

func (r *stubCredentialRepo) InstallSession(_ context.Context, id string, s ports.SessionState) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.AccessToken = s.AccessToken
	c.AccessTokenExpiry = timePtr(s.AccessTokenExpiry)
	c.RefreshTokenHash = s.RefreshTokenHash
	c.RefreshTokenExpiry = timePtr(s.RefreshTokenExpiry)
	c.SessionID = s.SessionID
	c.RememberMe = s.RememberMe
	c.FailedLoginAttempts = 0
	c.Locked = false
	c.Status = domain.StatusActive
	c.HasAcceptedTerms = true
	if s.LastLogin != nil {
		c.LastLogin = s.LastLogin
	}
	return nil
}

func (r *stubCredentialRepo) RotateSession(_ context.Context, id, oldSessionID string, s ports.SessionState) (bool, error) {
	c, err := r.get(id)
	if err != nil {
		return false, err
	}
	if c.SessionID != oldSessionID {
		return false, nil
	}
	c.AccessToken = s.AccessToken
	c.AccessTokenExpiry = timePtr(s.AccessTokenExpiry)
	c.RefreshTokenHash = s.RefreshTokenHash
	c.RefreshTokenExpiry = timePtr(s.RefreshTokenExpiry)
	c.SessionID = s.SessionID
	return true, nil
}

func (r *stubCredentialRepo) ClearSession(_ context.Context, id string) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.Status = domain.StatusInactive
	c.HasAcceptedTerms = false
	r.clearTokens(c)
	c.ResetToken = ""
	c.ResetTokenExpiry = nil
	return nil
}

func (r *stubCredentialRepo) ClearRefresh(_ context.Context, id string) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.RefreshTokenHash = ""
	c.RefreshTokenExpiry = nil
	c.SessionID = ""
	return nil
}

func (r *stubCredentialRepo) SetResetChallenge(_ context.Context, id string, ch ports.ResetChallenge) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.OTP = ch.OTP
	c.OTPCreatedAt = timePtr(ch.OTPCreatedAt)
	c.OTPExpiresAt = timePtr(ch.OTPExpiresAt)
	c.OTPVerified = false
	c.OTPVerifiedAt = nil
	c.ResetToken = ch.ResetToken
	c.ResetTokenExpiry = timePtr(ch.ResetTokenExpiry)
	c.FirstTimeReset = false
	return nil
}

func (r *stubCredentialRepo) ClearOTP(_ context.Context, id string) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.OTP = ""
	c.OTPCreatedAt = nil
	c.OTPExpiresAt = nil
	return nil
}

func (r *stubCredentialRepo) MarkOTPVerified(_ context.Context, id string, at time.Time) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.OTPVerified = true
	c.OTPVerifiedAt = &at
	c.OTP = ""
	c.OTPCreatedAt = nil
	c.OTPExpiresAt = nil
	return nil
}

func (r *stubCredentialRepo) CompletePasswordReset(_ context.Context, id, passwordHash string, at time.Time) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.PasswordHash = passwordHash
	c.PasswordUpdatedAt = &at
	c.OTPVerified = false
	c.OTPVerifiedAt = nil
	c.FirstTimeReset = false
	c.FailedLoginAttempts = 0
	c.Locked = false
	c.ResetToken = ""
	c.ResetTokenExpiry = nil
	r.clearTokens(c)
	return nil
}

func (r *stubCredentialRepo) RecordFailedLogin(_ context.Context, id string, attempts int, locked bool) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.FailedLoginAttempts = attempts
	c.Locked = locked
	return nil
}

func (r *stubCredentialRepo) Unlock(_ context.Context, id string) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.FailedLoginAttempts = 0
	c.Locked = false
	return nil
}

func (r *stubCredentialRepo) SetStatus(_ context.Context, id string, status domain.Status) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.Status = status
	return nil
}

func (r *stubCredentialRepo) SoftDelete(_ context.Context, id string) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	c.IsDeleted = true
	c.DeletedAt = &now
	c.Status = domain.StatusDeactivated
	r.clearTokens(c)
	c.ResetToken = ""
	c.ResetTokenExpiry = nil
	c.OTP = ""
	c.OTPCreatedAt = nil
	c.OTPExpiresAt = nil
	c.OTPVerifiedAt = nil
	return nil
}

func (r *stubCredentialRepo) Reprovision(_ context.Context, id string, p ports.ProvisionState) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	c.IsDeleted = false
	c.DeletedAt = nil
	c.PasswordHash = p.PasswordHash
	c.PasswordUpdatedAt = nil
	c.ResetToken = p.ResetToken
	c.ResetTokenExpiry = timePtr(p.ResetTokenExpiry)
	c.OTPVerified = true
	c.OTPVerifiedAt = timePtr(p.InvitedAt)
	c.FirstTimeReset = true
	c.Status = domain.StatusInactive
	c.InviteStatus = domain.InviteWaitingToAccept
	c.InvitedAt = timePtr(p.InvitedAt)
	c.CreatedBy = p.CreatedBy
	c.FailedLoginAttempts = 0
	c.Locked = false
	r.clearTokens(c)
	return nil
}

func (r *stubCredentialRepo) PushGrants(_ context.Context, id string, grants []domain.PermissionGrant, restricted bool) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	if restricted {
		c.Restricted = append(c.Restricted, grants...)
	} else {
		c.Granted = append(c.Granted, grants...)
	}
	return nil
}

func (r *stubCredentialRepo) PullGrants(_ context.Context, id string, permissionIDs []string, restricted bool) error {
	c, err := r.get(id)
	if err != nil {
		return err
	}
	remove := make(map[string]bool, len(permissionIDs))
	for _, pid := range permissionIDs {
		remove[pid] = true
	}
	filter := func(in []domain.PermissionGrant) []domain.PermissionGrant {
		out := in[:0]
		for _, g := range in {
			if !remove[g.PermissionID] {
				out = append(out, g)
			}
		}
		return out
	}
	if restricted {
		c.Restricted = filter(c.Restricted)
	} else {
		c.Granted = filter(c.Granted)
	}
	return nil
}

func (r *stubCredentialRepo) clearTokens(c *domain.Credential) {
	c.AccessToken = ""
	c.AccessTokenExpiry = nil
	c.RefreshTokenHash = ""
	c.RefreshTokenExpiry = nil
	c.SessionID = ""
}

func timePtr(t time.Time) *time.Time { return &t }

// stubNotifier records every notification synchronously.
type stubNotifier struct {
	sent []ports.Notification
}

func (n *stubNotifier) Notify(notification ports.Notification) {
	n.sent = append(n.sent, notification)
}

func (n *stubNotifier) last() *ports.Notification {
	if len(n.sent) == 0 {
		return nil
	}
	return &n.sent[len(n.sent)-1]
}

// stubCatalog resolves a fixed set of permission ids.
type stubCatalog struct {
	known map[string]bool
}

func newStubCatalog(ids ...string) *stubCatalog {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &stubCatalog{known: known}
}

func (s *stubCatalog) FindByIDs(_ context.Context, ids []string) ([]domain.Permission, error) {
	var perms []domain.Permission
	for _, id := range ids {
		if s.known[id] {
			perms = append(perms, domain.Permission{ID: id, Name: id})
		}
	}
	return perms, nil
}

func (s *stubCatalog) Insert(_ context.Context, p *domain.Permission) (*domain.Permission, error) {
	s.known[p.ID] = true
	return p, nil
}

func (s *stubCatalog) FindAll(_ context.Context) ([]domain.Permission, error) {
	var perms []domain.Permission
	for id := range s.known {
		perms = append(perms, domain.Permission{ID: id, Name: id})
	}
	return perms, nil
}

// stubThrottle flips between allowing and suppressing challenges.
type stubThrottle struct {
	allow bool
	err   error
	calls int
}

func (s *stubThrottle) Allow(_ context.Context, _ string) (bool, error) {
	s.calls++
	return s.allow, s.err
}
