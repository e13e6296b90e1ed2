package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
	"github.com/campuskit/campus-api/pkg/sms"
)

type passwordUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type challengeRepository interface {
	StoreOTP(ctx context.Context, userID, code string, ttl time.Duration) error
	GetOTP(ctx context.Context, userID string) (string, error)
	DeleteOTP(ctx context.Context, userID string) error
	StoreChallenge(ctx context.Context, userID string, stage models.PasswordChallengeStage, ttl time.Duration) error
	GetChallenge(ctx context.Context, userID string) (models.PasswordChallengeStage, error)
	DeleteChallenge(ctx context.Context, userID string) error
}

// PasswordConfig tunes the password change state machine.
type PasswordConfig struct {
	OTPTTL       time.Duration
	ChallengeTTL time.Duration
	OTPDigits    int
}

// PasswordService orchestrates the multi-step password change flow. Every
// step past the first requires a server-held challenge; none of the gates
// can be skipped by a crafted client.
type PasswordService struct {
	users      passwordUserRepository
	challenges challengeRepository
	sender     sms.Sender
	validator  *validator.Validate
	logger     *zap.Logger
	config     PasswordConfig
}

// NewPasswordService constructs the service.
func NewPasswordService(users passwordUserRepository, challenges challengeRepository, sender sms.Sender, validate *validator.Validate, logger *zap.Logger, config PasswordConfig) *PasswordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 5 * time.Minute
	}
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = 10 * time.Minute
	}
	if config.OTPDigits <= 0 {
		config.OTPDigits = 6
	}
	return &PasswordService{users: users, challenges: challenges, sender: sender, validator: validate, logger: logger, config: config}
}

// VerifyCurrent checks the caller's current password and opens a challenge.
// With 2FA enabled the challenge starts at the OTP stage; otherwise it jumps
// straight to commit.
func (s *PasswordService) VerifyCurrent(ctx context.Context, userID string, req models.VerifyCurrentPasswordRequest) (*models.VerifyCurrentPasswordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "current password is required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	stage := models.ChallengeStageCommit
	if user.TwoFactorEnabled {
		stage = models.ChallengeStageOTP
	}
	if err := s.challenges.StoreChallenge(ctx, userID, stage, s.config.ChallengeTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open password challenge")
	}

	resp := &models.VerifyCurrentPasswordResponse{TwoFactorEnabled: user.TwoFactorEnabled}
	if user.Phone != nil {
		resp.Phone = maskPhone(*user.Phone)
	}
	return resp, nil
}

// SendOTP generates a one-time passcode and delivers it to the user's
// registered phone. Requires an open challenge at the OTP stage.
func (s *PasswordService) SendOTP(ctx context.Context, userID string) error {
	stage, err := s.challengeStage(ctx, userID)
	if err != nil {
		return err
	}
	if stage != models.ChallengeStageOTP {
		return appErrors.Clone(appErrors.ErrForbidden, "current password must be verified first")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Phone == nil || *user.Phone == "" {
		return appErrors.Validation("phone", "no phone number on record")
	}

	code, err := s.generateOTP()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate passcode")
	}
	if err := s.challenges.StoreOTP(ctx, userID, code, s.config.OTPTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store passcode")
	}
	if err := s.sender.Send(ctx, *user.Phone, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deliver passcode")
	}
	return nil
}

// VerifyOTP checks the delivered passcode. Success consumes the code and
// advances the challenge to the commit stage; the code is single use either
// way once matched.
func (s *PasswordService) VerifyOTP(ctx context.Context, userID string, req models.VerifyOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "otp is required")
	}

	stage, err := s.challengeStage(ctx, userID)
	if err != nil {
		return err
	}
	if stage != models.ChallengeStageOTP {
		return appErrors.Clone(appErrors.ErrForbidden, "current password must be verified first")
	}

	stored, err := s.challenges.GetOTP(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return appErrors.Clone(appErrors.ErrInvalidCredentials, "passcode expired or not issued")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load passcode")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.OTP)) != 1 {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "incorrect passcode")
	}

	if err := s.challenges.DeleteOTP(ctx, userID); err != nil {
		s.logger.Warn("failed to consume passcode", zap.Error(err))
	}
	if err := s.challenges.StoreChallenge(ctx, userID, models.ChallengeStageCommit, s.config.ChallengeTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance password challenge")
	}
	return nil
}

// Commit writes the new credential. Only a challenge at the commit stage
// authorizes the write; the challenge is consumed and every refresh token
// for the user is revoked.
func (s *PasswordService) Commit(ctx context.Context, userID string, req models.UpdatePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "new password must be at least 6 characters")
	}

	stage, err := s.challengeStage(ctx, userID)
	if err != nil {
		return err
	}
	if stage != models.ChallengeStageCommit {
		return appErrors.Clone(appErrors.ErrForbidden, "verification steps are not complete")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.challenges.DeleteChallenge(ctx, userID); err != nil {
		s.logger.Warn("failed to consume password challenge", zap.Error(err))
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPasswordChange,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"changed"}`),
	}); err != nil {
		s.logger.Warn("failed to record password change audit log", zap.Error(err))
	}
	return nil
}

func (s *PasswordService) challengeStage(ctx context.Context, userID string) (models.PasswordChallengeStage, error) {
	stage, err := s.challenges.GetChallenge(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "no open password challenge")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load password challenge")
	}
	return stage, nil
}

func (s *PasswordService) generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < s.config.OTPDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.config.OTPDigits, n), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + phone[len(phone)-4:]
}
