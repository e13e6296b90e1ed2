package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type mockPasswordUserRepo struct {
	user           *models.User
	findErr        error
	updatedHash    string
	updateErr      error
	revokedUserID  string
	revokeErr      error
	auditLogs      []*models.AuditLog
	createAuditErr error
}

func (m *mockPasswordUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.user, nil
}

func (m *mockPasswordUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedHash = passwordHash
	return nil
}

func (m *mockPasswordUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revokedUserID = userID
	return nil
}

func (m *mockPasswordUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if m.createAuditErr != nil {
		return m.createAuditErr
	}
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockChallengeRepo struct {
	otps       map[string]string
	challenges map[string]models.PasswordChallengeStage
	storeErr   error
}

func newMockChallengeRepo() *mockChallengeRepo {
	return &mockChallengeRepo{
		otps:       make(map[string]string),
		challenges: make(map[string]models.PasswordChallengeStage),
	}
}

func (m *mockChallengeRepo) StoreOTP(ctx context.Context, userID, code string, ttl time.Duration) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.otps[userID] = code
	return nil
}

func (m *mockChallengeRepo) GetOTP(ctx context.Context, userID string) (string, error) {
	code, ok := m.otps[userID]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	return code, nil
}

func (m *mockChallengeRepo) DeleteOTP(ctx context.Context, userID string) error {
	delete(m.otps, userID)
	return nil
}

func (m *mockChallengeRepo) StoreChallenge(ctx context.Context, userID string, stage models.PasswordChallengeStage, ttl time.Duration) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.challenges[userID] = stage
	return nil
}

func (m *mockChallengeRepo) GetChallenge(ctx context.Context, userID string) (models.PasswordChallengeStage, error) {
	stage, ok := m.challenges[userID]
	if !ok {
		return "", appErrors.ErrCacheMiss
	}
	return stage, nil
}

func (m *mockChallengeRepo) DeleteChallenge(ctx context.Context, userID string) error {
	delete(m.challenges, userID)
	return nil
}

type recordingSMSSender struct {
	phone   string
	message string
	err     error
}

func (m *recordingSMSSender) Send(ctx context.Context, phone, message string) error {
	if m.err != nil {
		return m.err
	}
	m.phone = phone
	m.message = message
	return nil
}

func passwordTestUser(t *testing.T, password string, twoFactor bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	phone := "+6281234567890"
	return &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		PasswordHash:     string(hash),
		Phone:            &phone,
		TwoFactorEnabled: twoFactor,
		Active:           true,
	}
}

func TestVerifyCurrentWrongPassword(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", false)}
	challenges := newMockChallengeRepo()
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	_, err := svc.VerifyCurrent(context.Background(), "user-1", models.VerifyCurrentPasswordRequest{CurrentPassword: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, challenges.challenges)
}

func TestVerifyCurrentWithoutTwoFactorOpensCommit(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", false)}
	challenges := newMockChallengeRepo()
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	resp, err := svc.VerifyCurrent(context.Background(), "user-1", models.VerifyCurrentPasswordRequest{CurrentPassword: "secret99"})
	require.NoError(t, err)
	assert.False(t, resp.TwoFactorEnabled)
	assert.Equal(t, models.ChallengeStageCommit, challenges.challenges["user-1"])
}

func TestVerifyCurrentWithTwoFactorOpensOTPStage(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	resp, err := svc.VerifyCurrent(context.Background(), "user-1", models.VerifyCurrentPasswordRequest{CurrentPassword: "secret99"})
	require.NoError(t, err)
	assert.True(t, resp.TwoFactorEnabled)
	assert.Equal(t, models.ChallengeStageOTP, challenges.challenges["user-1"])
	assert.Equal(t, "**********7890", resp.Phone)
}

func TestSendOTPRequiresOpenChallenge(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	svc := NewPasswordService(users, newMockChallengeRepo(), &recordingSMSSender{}, nil, nil, PasswordConfig{})

	err := svc.SendOTP(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSendOTPDeliversCode(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageOTP
	sender := &recordingSMSSender{}
	svc := NewPasswordService(users, challenges, sender, nil, nil, PasswordConfig{OTPDigits: 6})

	require.NoError(t, svc.SendOTP(context.Background(), "user-1"))
	assert.Equal(t, "+6281234567890", sender.phone)
	assert.Len(t, challenges.otps["user-1"], 6)
	assert.Contains(t, sender.message, challenges.otps["user-1"])
}

func TestVerifyOTPWrongCode(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageOTP
	challenges.otps["user-1"] = "123456"
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	err := svc.VerifyOTP(context.Background(), "user-1", models.VerifyOTPRequest{OTP: "654321"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	// A failed attempt must not advance the challenge.
	assert.Equal(t, models.ChallengeStageOTP, challenges.challenges["user-1"])
}

func TestVerifyOTPExpiredCode(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageOTP
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	err := svc.VerifyOTP(context.Background(), "user-1", models.VerifyOTPRequest{OTP: "123456"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestVerifyOTPAdvancesToCommit(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageOTP
	challenges.otps["user-1"] = "123456"
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	require.NoError(t, svc.VerifyOTP(context.Background(), "user-1", models.VerifyOTPRequest{OTP: "123456"}))
	assert.Equal(t, models.ChallengeStageCommit, challenges.challenges["user-1"])
	// The code is single use.
	_, ok := challenges.otps["user-1"]
	assert.False(t, ok)
}

func TestCommitRejectsSkippedOTP(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", true)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageOTP
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	err := svc.Commit(context.Background(), "user-1", models.UpdatePasswordRequest{NewPassword: "brandnew1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, users.updatedHash)
}

func TestCommitRejectsShortPassword(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", false)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageCommit
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	err := svc.Commit(context.Background(), "user-1", models.UpdatePasswordRequest{NewPassword: "abc"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCommitWritesHashAndRevokesSessions(t *testing.T) {
	users := &mockPasswordUserRepo{user: passwordTestUser(t, "secret99", false)}
	challenges := newMockChallengeRepo()
	challenges.challenges["user-1"] = models.ChallengeStageCommit
	svc := NewPasswordService(users, challenges, &recordingSMSSender{}, nil, nil, PasswordConfig{})

	require.NoError(t, svc.Commit(context.Background(), "user-1", models.UpdatePasswordRequest{NewPassword: "brandnew1"}))
	require.NotEmpty(t, users.updatedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.updatedHash), []byte("brandnew1")))
	assert.Equal(t, "user-1", users.revokedUserID)
	// Challenge is consumed; a second commit needs the whole flow again.
	assert.Empty(t, challenges.challenges)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionPasswordChange, users.auditLogs[0].Action)
}
