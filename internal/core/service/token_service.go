package service

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

// AccessClaims is the access token payload. It carries a fingerprint of the
// password hash current at issue time, so a password change implicitly
// invalidates every previously issued access token without a revocation list.
type AccessClaims struct {
	Email      string `json:"email"`
	PasswordFP string `json:"pwd_fp"`
	SessionID  string `json:"sid"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload, signed with a distinct key.
type RefreshClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// ResetClaims is the forgot-password token payload.
type ResetClaims struct {
	Email      string `json:"email"`
	OTP        string `json:"otp"`
	PasswordFP string `json:"pwd_fp"`
	jwt.RegisteredClaims
}

// TokenTriple binds one access/refresh pair to one logical session.
type TokenTriple struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// TokenIssuer signs and verifies all tokens. Access and reset tokens use the
// access secret; refresh tokens use a separate secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue mints a fresh token triple for the credential with a new session id.
func (i *TokenIssuer) Issue(cred *domain.Credential, ttl time.Duration) (*TokenTriple, error) {
	sessionID := uuid.NewString()
	now := i.now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:      cred.Email,
		PasswordFP: Fingerprint(cred.PasswordHash),
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	accessToken, err := access.SignedString(i.accessSecret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	})
	refreshToken, err := refresh.SignedString(i.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenTriple{AccessToken: accessToken, RefreshToken: refreshToken, SessionID: sessionID}, nil
}

// IssueReset mints a forgot-password token bound to the current password
// hash. signTTL is the token's own signature expiry; the longer-lived reset
// deadline is tracked separately on the credential.
func (i *TokenIssuer) IssueReset(cred *domain.Credential, otp string, signTTL time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{
		Email:      cred.Email,
		OTP:        otp,
		PasswordFP: Fingerprint(cred.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(signTTL)),
		},
	})
	return token.SignedString(i.accessSecret)
}

func (i *TokenIssuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.verify(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.verify(token, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) VerifyReset(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := i.verify(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// verify collapses every parse failure (expired, malformed, tampered) into
// ErrInvalidToken so callers cannot distinguish the failure mode.
func (i *TokenIssuer) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return domain.ErrInvalidToken
	}
	return nil
}

// Fingerprint derives a stable digest of a password hash for embedding in
// token payloads. The hash itself never leaves the store.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:16])
}
