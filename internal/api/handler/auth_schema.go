package handler

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
	RememberMe       bool   `json:"remember_me"`
	HasAcceptedTerms bool   `json:"has_accepted_terms"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// The password pair is revalidated by the reset service; the tags here only
// reject obviously malformed payloads early.
type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type provisionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE active inactive"`
}

type permissionRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"required,min=1,dive,required"`
}

type revokePermissionRequest struct {
	PermissionIDs  []string `json:"permission_ids" validate:"required,min=1,dive,required"`
	FromRestricted bool     `json:"from_restricted"`
}
