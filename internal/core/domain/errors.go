package domain

import "errors"

// Classified errors. Anything a service returns that is not one of these is
// treated as internal and never shown to callers verbatim.
var (
	// NotFound class.
	ErrCredentialNotFound = errors.New("credential not found")
	ErrPermissionNotFound = errors.New("permission not found")

	// Conflict class.
	ErrEmailTaken = errors.New("email already registered")

	// BadRequest class.
	ErrMissingField       = errors.New("missing required field")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPMismatch        = errors.New("otp does not match")
	ErrWeakPassword       = errors.New("password does not meet strength policy")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordReused     = errors.New("new password must differ from the current one")
	ErrPermissionConflict = errors.New("permission present in the opposite set")
	ErrNothingToRevoke    = errors.New("no matching permissions to revoke")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrStatusUnchanged    = errors.New("status already set")

	// Unauthorized class. Invalid, expired, and tampered tokens all map to
	// ErrInvalidToken so callers cannot distinguish the failure mode.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked after too many failed attempts")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionExpired     = errors.New("session expired")
	ErrResetNotAllowed    = errors.New("password reset not verified or window elapsed")

	// Forbidden class.
	ErrTermsNotAccepted = errors.New("terms must be accepted")
	ErrPermissionDenied = errors.New("permission denied")
)
