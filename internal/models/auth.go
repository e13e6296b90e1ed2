package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"required,role"`
	Phone    *string `json:"phone"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// VerifyCurrentPasswordRequest starts the password change flow.
type VerifyCurrentPasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
}

// VerifyCurrentPasswordResponse tells the client which branch comes next.
// The change itself is not yet authorized; a server-side challenge tracks
// progression through the remaining steps.
type VerifyCurrentPasswordResponse struct {
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	Phone            string `json:"phone,omitempty"`
}

// SendOTPRequest asks for a one-time passcode to be delivered to the
// user's registered phone.
type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// VerifyOTPRequest checks the delivered passcode.
type VerifyOTPRequest struct {
	OTP string `json:"otp" validate:"required"`
}

// UpdatePasswordRequest commits the new credential.
type UpdatePasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// PasswordChallengeStage tracks progression through the password change
// state machine, held server-side between steps.
type PasswordChallengeStage string

const (
	// ChallengeStageOTP means the current password was verified and an OTP
	// check is still required before the credential may be replaced.
	ChallengeStageOTP PasswordChallengeStage = "otp"
	// ChallengeStageCommit means all gates have passed and the new
	// credential may be written.
	ChallengeStageCommit PasswordChallengeStage = "commit"
)
