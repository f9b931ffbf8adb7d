package domain

import "time"

// Well-known catalog ids guarding the administrative surface.
const (
	PermissionManageUsers       = "users:manage"
	PermissionManagePermissions = "permissions:manage"
)

// Permission is a catalog entry; credentials reference it by id.
type Permission struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// PermissionGrant records one permission id on a credential with provenance.
// The same id must never appear in both the granted and restricted sets.
type PermissionGrant struct {
	PermissionID string    `json:"permission_id" bson:"permission_id"`
	GrantedBy    string    `json:"granted_by" bson:"granted_by"`
	GrantedAt    time.Time `json:"granted_at" bson:"granted_at"`
}

// HasGranted reports whether the permission id is in the granted set.
func (c *Credential) HasGranted(id string) bool {
	return containsGrant(c.Granted, id)
}

// HasRestricted reports whether the permission id is in the restricted set.
func (c *Credential) HasRestricted(id string) bool {
	return containsGrant(c.Restricted, id)
}

func containsGrant(grants []PermissionGrant, id string) bool {
	for _, g := range grants {
		if g.PermissionID == id {
			return true
		}
	}
	return false
}
