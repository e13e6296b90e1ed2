package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

const (
	otpKeyPrefix       = "otp:"
	challengeKeyPrefix = "pwdchange:"
)

// ChallengeRepository holds the short-lived state of the password change
// flow: the delivered one-time passcode and the per-user challenge stage.
// Both expire through Redis TTLs, so an abandoned flow simply evaporates.
type ChallengeRepository struct {
	client *redis.Client
}

// NewChallengeRepository creates the repository.
func NewChallengeRepository(client *redis.Client) *ChallengeRepository {
	return &ChallengeRepository{client: client}
}

// StoreOTP saves the passcode for a user, replacing any previous one.
func (r *ChallengeRepository) StoreOTP(ctx context.Context, userID, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, otpKeyPrefix+userID, code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// GetOTP fetches the stored passcode. Missing or expired codes surface as
// ErrCacheMiss.
func (r *ChallengeRepository) GetOTP(ctx context.Context, userID string) (string, error) {
	code, err := r.client.Get(ctx, otpKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("get otp: %w", err)
	}
	return code, nil
}

// DeleteOTP removes the passcode, enforcing single use.
func (r *ChallengeRepository) DeleteOTP(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, otpKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// StoreChallenge saves the user's current stage in the flow.
func (r *ChallengeRepository) StoreChallenge(ctx context.Context, userID string, stage models.PasswordChallengeStage, ttl time.Duration) error {
	if err := r.client.Set(ctx, challengeKeyPrefix+userID, string(stage), ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// GetChallenge returns the user's current stage, ErrCacheMiss when absent.
func (r *ChallengeRepository) GetChallenge(ctx context.Context, userID string) (models.PasswordChallengeStage, error) {
	stage, err := r.client.Get(ctx, challengeKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("get challenge: %w", err)
	}
	return models.PasswordChallengeStage(stage), nil
}

// DeleteChallenge consumes the challenge once the flow commits or aborts.
func (r *ChallengeRepository) DeleteChallenge(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, challengeKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
