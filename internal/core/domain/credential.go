package domain

import "time"

// Status represents the lifecycle state of a credential.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusDeactivated Status = "DEACTIVATED"
)

// InviteStatus tracks admin-provisioned accounts until the invitee
// completes the set-password flow.
type InviteStatus string

const (
	InviteWaitingToAccept InviteStatus = "WAITING_TO_ACCEPT"
	InviteAccepted        InviteStatus = "ACCEPTED"
)

// Credential is the core aggregate: one document per user, holding
// identity, secret, lockout, session, reset-flow, and permission state.
// Every state transition is applied as a single atomic update on it.
type Credential struct {
	ID       string `json:"id" bson:"_id,omitempty"`
	Email    string `json:"email" bson:"email"`
	UserName string `json:"username,omitempty" bson:"username,omitempty"`

	PasswordHash      string     `json:"-" bson:"password_hash"`
	PasswordUpdatedAt *time.Time `json:"-" bson:"password_updated_at,omitempty"`
	LastLogin         *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`

	FailedLoginAttempts int  `json:"-" bson:"failed_login_attempts"`
	Locked              bool `json:"-" bson:"locked"`

	// Session triple: access token + expiry, bcrypt hash of the refresh
	// token + expiry, and the session id binding them together.
	AccessToken        string     `json:"-" bson:"access_token,omitempty"`
	AccessTokenExpiry  *time.Time `json:"-" bson:"access_token_expiry,omitempty"`
	RefreshTokenHash   string     `json:"-" bson:"refresh_token_hash,omitempty"`
	RefreshTokenExpiry *time.Time `json:"-" bson:"refresh_token_expiry,omitempty"`
	SessionID          string     `json:"-" bson:"session_id,omitempty"`
	RememberMe         bool       `json:"-" bson:"remember_me"`

	// OTP password-reset flow.
	OTP              string     `json:"-" bson:"otp,omitempty"`
	OTPCreatedAt     *time.Time `json:"-" bson:"otp_created_at,omitempty"`
	OTPExpiresAt     *time.Time `json:"-" bson:"otp_expires_at,omitempty"`
	OTPVerified      bool       `json:"-" bson:"otp_verified"`
	OTPVerifiedAt    *time.Time `json:"-" bson:"otp_verified_at,omitempty"`
	ResetToken       string     `json:"-" bson:"reset_token,omitempty"`
	ResetTokenExpiry *time.Time `json:"-" bson:"reset_token_expiry,omitempty"`
	FirstTimeReset   bool       `json:"-" bson:"first_time_reset"`

	HasAcceptedTerms bool         `json:"has_accepted_terms" bson:"has_accepted_terms"`
	Status           Status       `json:"status" bson:"status"`
	InviteStatus     InviteStatus `json:"invite_status,omitempty" bson:"invite_status,omitempty"`
	InvitedAt        *time.Time   `json:"invited_at,omitempty" bson:"invited_at,omitempty"`
	CreatedBy        string       `json:"created_by,omitempty" bson:"created_by,omitempty"`

	IsDeleted bool       `json:"-" bson:"is_deleted"`
	DeletedAt *time.Time `json:"-" bson:"deleted_at,omitempty"`

	Granted    []PermissionGrant `json:"granted" bson:"granted"`
	Restricted []PermissionGrant `json:"restricted" bson:"restricted"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// SessionValid reports whether the stored session triple is still usable
// at the given instant. Expiry of either token invalidates the whole triple.
func (c *Credential) SessionValid(now time.Time) bool {
	if c.SessionID == "" || c.AccessTokenExpiry == nil {
		return false
	}
	if now.After(*c.AccessTokenExpiry) {
		return false
	}
	if c.RefreshTokenExpiry != nil && now.After(*c.RefreshTokenExpiry) {
		return false
	}
	return true
}

// OTPExpired reports whether the stored OTP is past its own deadline.
func (c *Credential) OTPExpired(now time.Time) bool {
	return c.OTPExpiresAt == nil || now.After(*c.OTPExpiresAt)
}

// ResetWindowOpen reports whether a password reset is still permitted:
// within the configured window after OTP verification, or unconditionally
// for first-time administrative resets.
func (c *Credential) ResetWindowOpen(now time.Time, window time.Duration) bool {
	if c.FirstTimeReset {
		return true
	}
	if c.OTPVerifiedAt == nil {
		return false
	}
	return !now.After(c.OTPVerifiedAt.Add(window))
}
