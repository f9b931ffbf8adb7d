package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

// PermissionService maintains the two mutually exclusive permission sets on
// a credential. Grant and restrict never override the opposite set: the
// conflict must be lifted explicitly through Revoke first, which keeps every
// permission change auditable at the API boundary.
type PermissionService struct {
	creds   ports.CredentialRepository
	catalog ports.PermissionRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewPermissionService(creds ports.CredentialRepository, catalog ports.PermissionRepository, log zerolog.Logger) *PermissionService {
	return &PermissionService{creds: creds, catalog: catalog, log: log, now: time.Now}
}

func (s *PermissionService) Grant(ctx context.Context, userID string, permissionIDs []string, grantedBy string) (*ports.PermissionDelta, error) {
	cred, err := s.loadTarget(ctx, userID, permissionIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range permissionIDs {
		if cred.HasRestricted(id) {
			return nil, fmt.Errorf("%w: revoke %s from restricted first", domain.ErrPermissionConflict, id)
		}
	}

	grants := s.newGrants(cred.Granted, permissionIDs, grantedBy)
	if len(grants) > 0 {
		if err := s.creds.PushGrants(ctx, userID, grants, false); err != nil {
			return nil, fmt.Errorf("grant: %w", err)
		}
	}

	applied := make([]string, len(grants))
	for i, g := range grants {
		applied[i] = g.PermissionID
	}
	s.log.Info().Str("user_id", userID).Str("granted_by", grantedBy).Strs("permissions", applied).Msg("permissions granted")
	return &ports.PermissionDelta{Applied: applied, Total: len(cred.Granted) + len(grants)}, nil
}

func (s *PermissionService) Restrict(ctx context.Context, userID string, permissionIDs []string, grantedBy string) (*ports.PermissionDelta, error) {
	cred, err := s.loadTarget(ctx, userID, permissionIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range permissionIDs {
		if cred.HasGranted(id) {
			return nil, fmt.Errorf("%w: revoke %s from granted first", domain.ErrPermissionConflict, id)
		}
	}

	grants := s.newGrants(cred.Restricted, permissionIDs, grantedBy)
	if len(grants) > 0 {
		if err := s.creds.PushGrants(ctx, userID, grants, true); err != nil {
			return nil, fmt.Errorf("restrict: %w", err)
		}
	}

	applied := make([]string, len(grants))
	for i, g := range grants {
		applied[i] = g.PermissionID
	}
	s.log.Info().Str("user_id", userID).Str("granted_by", grantedBy).Strs("permissions", applied).Msg("permissions restricted")
	return &ports.PermissionDelta{Applied: applied, Total: len(cred.Restricted) + len(grants)}, nil
}

// Revoke removes the intersection of permissionIDs with whichever set the
// flag selects. It fails when none of the requested ids are present.
func (s *PermissionService) Revoke(ctx context.Context, userID string, permissionIDs []string, grantedBy string, fromRestricted bool) (*ports.RevokeResult, error) {
	cred, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("revoke: lookup: %w", err)
	}

	target := cred.Granted
	if fromRestricted {
		target = cred.Restricted
	}
	var present []string
	for _, id := range permissionIDs {
		if containsGrant(target, id) {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil, domain.ErrNothingToRevoke
	}

	if err := s.creds.PullGrants(ctx, userID, present, fromRestricted); err != nil {
		return nil, fmt.Errorf("revoke: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("granted_by", grantedBy).Bool("from_restricted", fromRestricted).Strs("permissions", present).Msg("permissions revoked")
	return &ports.RevokeResult{Revoked: len(present), Remaining: len(target) - len(present)}, nil
}

// loadTarget fetches the credential and checks every requested id resolves
// to a known catalog permission.
func (s *PermissionService) loadTarget(ctx context.Context, userID string, permissionIDs []string) (*domain.Credential, error) {
	if len(permissionIDs) == 0 {
		return nil, domain.ErrMissingField
	}
	cred, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("permission lookup: %w", err)
	}
	known, err := s.catalog.FindByIDs(ctx, permissionIDs)
	if err != nil {
		return nil, fmt.Errorf("permission catalog: %w", err)
	}
	if len(known) != len(permissionIDs) {
		return nil, domain.ErrPermissionNotFound
	}
	return cred, nil
}

// newGrants builds grant entries for the ids not already present, making
// grant and restrict idempotent on duplicates.
func (s *PermissionService) newGrants(existing []domain.PermissionGrant, permissionIDs []string, grantedBy string) []domain.PermissionGrant {
	now := s.now().UTC()
	var grants []domain.PermissionGrant
	for _, id := range permissionIDs {
		if containsGrant(existing, id) || containsGrant(grants, id) {
			continue
		}
		grants = append(grants, domain.PermissionGrant{PermissionID: id, GrantedBy: grantedBy, GrantedAt: now})
	}
	return grants
}

func containsGrant(grants []domain.PermissionGrant, id string) bool {
	for _, g := range grants {
		if g.PermissionID == id {
			return true
		}
	}
	return false
}
