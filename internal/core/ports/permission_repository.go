package ports

import (
	"context"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

// PermissionRepository is the read side of the permission catalog. Grant and
// restriction state lives on the credential itself.
type PermissionRepository interface {
	// FindByIDs returns the catalog entries for the given ids. Callers use
	// the result length to detect unknown ids.
	FindByIDs(ctx context.Context, ids []string) ([]domain.Permission, error)
	Insert(ctx context.Context, p *domain.Permission) (*domain.Permission, error)
	FindAll(ctx context.Context) ([]domain.Permission, error)
}
