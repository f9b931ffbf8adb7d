package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

const collectionPermissions = "permissions"

// PermissionRepository is the permission catalog.
type PermissionRepository struct {
	col *mongo.Collection
}

func NewPermissionRepository(db *mongo.Database) *PermissionRepository {
	return &PermissionRepository{col: db.Collection(collectionPermissions)}
}

func (r *PermissionRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var perms []domain.Permission
	if err := cur.All(ctx, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *PermissionRepository) Insert(ctx context.Context, p *domain.Permission) (*domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Seed upserts the well-known administrative catalog entries. Safe to run on
// every startup.
func (r *PermissionRepository) Seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	entries := []domain.Permission{
		{ID: domain.PermissionManageUsers, Name: "Manage users", Description: "Provision, delete, and change account status"},
		{ID: domain.PermissionManagePermissions, Name: "Manage permissions", Description: "Grant, restrict, and revoke permissions"},
	}
	for _, p := range entries {
		update := bson.M{"$setOnInsert": bson.M{
			"name":        p.Name,
			"description": p.Description,
			"created_at":  time.Now().UTC(),
		}}
		opts := options.Update().SetUpsert(true)
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": p.ID}, update, opts); err != nil {
			return err
		}
	}
	return nil
}

func (r *PermissionRepository) FindAll(ctx context.Context) ([]domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var perms []domain.Permission
	if err := cur.All(ctx, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}
