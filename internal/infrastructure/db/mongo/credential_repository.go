package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

const collectionCredentials = "credentials"

// CredentialRepository persists the credential aggregate. Every state
// transition is one UpdateOne call, so concurrent operations on the same
// credential serialize at the server.
type CredentialRepository struct {
	col *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{col: db.Collection(collectionCredentials)}
}

// EnsureIndexes creates the partial unique email index: uniqueness is
// enforced only among non-deleted documents, so a soft-deleted credential
// never blocks re-registration or re-provisioning.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_deleted": false}),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *CredentialRepository) Insert(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cred.Email = strings.ToLower(cred.Email)
	if cred.ID == "" {
		cred.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.col.InsertOne(ctx, cred); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": cred.ID})
}

func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"_id": id, "is_deleted": false})
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email), "is_deleted": false})
}

func (r *CredentialRepository) FindByEmailAny(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *CredentialRepository) FindLoginCandidate(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{
		"email":      strings.ToLower(email),
		"is_deleted": false,
		"status":     bson.M{"$in": []domain.Status{domain.StatusActive, domain.StatusInactive}},
	})
}

func (r *CredentialRepository) FindWithPendingOTP(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email), "is_deleted": false, "otp_verified": false})
}

func (r *CredentialRepository) FindOTPVerified(ctx context.Context, email string) (*domain.Credential, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email), "is_deleted": false, "otp_verified": true})
}

func (r *CredentialRepository) InstallSession(ctx context.Context, id string, s ports.SessionState) error {
	set := bson.M{
		"access_token":          s.AccessToken,
		"access_token_expiry":   s.AccessTokenExpiry,
		"refresh_token_hash":    s.RefreshTokenHash,
		"refresh_token_expiry":  s.RefreshTokenExpiry,
		"session_id":            s.SessionID,
		"remember_me":           s.RememberMe,
		"failed_login_attempts": 0,
		"locked":                false,
		"status":                domain.StatusActive,
		"has_accepted_terms":    true,
		"updated_at":            time.Now().UTC(),
	}
	if s.LastLogin != nil {
		set["last_login"] = *s.LastLogin
	}
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// RotateSession installs the new triple only when the stored session id
// still matches; the filter makes the rotation a compare-and-swap, so a
// concurrent rotation of the same session can succeed at most once.
func (r *CredentialRepository) RotateSession(ctx context.Context, id, oldSessionID string, s ports.SessionState) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "session_id": oldSessionID},
		bson.M{"$set": bson.M{
			"access_token":         s.AccessToken,
			"access_token_expiry":  s.AccessTokenExpiry,
			"refresh_token_hash":   s.RefreshTokenHash,
			"refresh_token_expiry": s.RefreshTokenExpiry,
			"session_id":           s.SessionID,
			"updated_at":           time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *CredentialRepository) ClearSession(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":             domain.StatusInactive,
			"has_accepted_terms": false,
			"updated_at":         time.Now().UTC(),
		},
		"$unset": bson.M{
			"access_token":         "",
			"access_token_expiry":  "",
			"refresh_token_hash":   "",
			"refresh_token_expiry": "",
			"session_id":           "",
			"reset_token":          "",
			"reset_token_expiry":   "",
		},
	})
}

func (r *CredentialRepository) ClearRefresh(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{
			"refresh_token_hash":   "",
			"refresh_token_expiry": "",
			"session_id":           "",
		},
	})
}

func (r *CredentialRepository) SetResetChallenge(ctx context.Context, id string, ch ports.ResetChallenge) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"otp":                ch.OTP,
			"otp_created_at":     ch.OTPCreatedAt,
			"otp_expires_at":     ch.OTPExpiresAt,
			"otp_verified":       false,
			"reset_token":        ch.ResetToken,
			"reset_token_expiry": ch.ResetTokenExpiry,
			"first_time_reset":   false,
			"updated_at":         time.Now().UTC(),
		},
		"$unset": bson.M{"otp_verified_at": ""},
	})
}

func (r *CredentialRepository) ClearOTP(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"otp": "", "otp_created_at": "", "otp_expires_at": ""},
	})
}

func (r *CredentialRepository) MarkOTPVerified(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"otp_verified":    true,
			"otp_verified_at": at,
			"updated_at":      time.Now().UTC(),
		},
		"$unset": bson.M{"otp": "", "otp_created_at": "", "otp_expires_at": ""},
	})
}

// CompletePasswordReset installs the new hash and tears down the whole
// session and reset state in one update.
func (r *CredentialRepository) CompletePasswordReset(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"password_hash":         passwordHash,
			"password_updated_at":   at,
			"otp_verified":          false,
			"first_time_reset":      false,
			"failed_login_attempts": 0,
			"locked":                false,
			"updated_at":            time.Now().UTC(),
		},
		"$unset": bson.M{
			"otp":                  "",
			"otp_created_at":       "",
			"otp_expires_at":       "",
			"otp_verified_at":      "",
			"reset_token":          "",
			"reset_token_expiry":   "",
			"access_token":         "",
			"access_token_expiry":  "",
			"refresh_token_hash":   "",
			"refresh_token_expiry": "",
			"session_id":           "",
		},
	})
}

func (r *CredentialRepository) RecordFailedLogin(ctx context.Context, id string, attempts int, locked bool) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"failed_login_attempts": attempts,
			"locked":                locked,
			"updated_at":            time.Now().UTC(),
		},
	})
}

func (r *CredentialRepository) Unlock(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"failed_login_attempts": 0,
			"locked":                false,
			"updated_at":            time.Now().UTC(),
		},
	})
}

func (r *CredentialRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
}

func (r *CredentialRepository) SoftDelete(ctx context.Context, id string) error {
	return r.updateOne(ctx, bson.M{"_id": id, "is_deleted": false}, bson.M{
		"$set": bson.M{
			"is_deleted": true,
			"deleted_at": time.Now().UTC(),
			"status":     domain.StatusDeactivated,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"access_token":         "",
			"access_token_expiry":  "",
			"refresh_token_hash":   "",
			"refresh_token_expiry": "",
			"session_id":           "",
			"reset_token":          "",
			"reset_token_expiry":   "",
			"otp":                  "",
			"otp_created_at":       "",
			"otp_expires_at":       "",
			"otp_verified_at":      "",
		},
	})
}

func (r *CredentialRepository) Reprovision(ctx context.Context, id string, p ports.ProvisionState) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"is_deleted":            false,
			"password_hash":         p.PasswordHash,
			"reset_token":           p.ResetToken,
			"reset_token_expiry":    p.ResetTokenExpiry,
			"otp_verified":          true,
			"otp_verified_at":       p.InvitedAt,
			"first_time_reset":      true,
			"status":                domain.StatusInactive,
			"invite_status":         domain.InviteWaitingToAccept,
			"invited_at":            p.InvitedAt,
			"created_by":            p.CreatedBy,
			"failed_login_attempts": 0,
			"locked":                false,
			"updated_at":            time.Now().UTC(),
		},
		"$unset": bson.M{
			"deleted_at":           "",
			"password_updated_at":  "",
			"access_token":         "",
			"access_token_expiry":  "",
			"refresh_token_hash":   "",
			"refresh_token_expiry": "",
			"session_id":           "",
		},
	})
}

func (r *CredentialRepository) PushGrants(ctx context.Context, id string, grants []domain.PermissionGrant, restricted bool) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{grantField(restricted): bson.M{"$each": grants}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *CredentialRepository) PullGrants(ctx context.Context, id string, permissionIDs []string, restricted bool) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{grantField(restricted): bson.M{"permission_id": bson.M{"$in": permissionIDs}}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func grantField(restricted bool) string {
	if restricted {
		return "restricted"
	}
	return "granted"
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.M) (*domain.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var cred domain.Credential
	if err := r.col.FindOne(ctx, filter).Decode(&cred); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx, filter, update)
	return err
}
