package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-api/internal/models"
)

func newUserMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewUserRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "role", "phone", "two_factor_enabled", "active",
		"last_login", "created_at", "updated_at",
	})
}

func TestUserFindByEmail(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := userRows().AddRow("user-1", "teacher@example.com", "hash", "Jane Teacher", "TEACHER", nil, true, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("teacher@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "teacher@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.True(t, user.TwoFactorEnabled)
	assert.Nil(t, user.Phone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByEmailNotFound(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateAssignsID(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{
		Email:        "new@example.com",
		PasswordHash: "hash",
		FullName:     "New User",
		Role:         models.RoleStudent,
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListFilters(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	pattern := regexp.QuoteMeta("role = $1") + ".*" +
		regexp.QuoteMeta("active = $2") + ".*" +
		regexp.QuoteMeta("(LOWER(full_name) LIKE $3 OR LOWER(email) LIKE $3)")
	mock.ExpectQuery(pattern).
		WithArgs("STUDENT", true, "%jane%").
		WillReturnRows(userRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs("STUDENT", true, "%jane%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	role := models.RoleStudent
	active := true
	_, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Active: &active, Search: "Jane"})
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdatePassword(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("new-hash", ts, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "user-1", "new-hash", ts))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRevokeUserRefreshTokens(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW() WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "user-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindRefreshToken(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow("tok-1", "user-1", "opaque", now.Add(time.Hour), now, false, nil, "127.0.0.1", "go-test")
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token = $1 LIMIT 1")).
		WithArgs("opaque").
		WillReturnRows(rows)

	token, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.UserID)
	assert.False(t, token.Revoked)

	assert.NoError(t, mock.ExpectationsWereMet())
}
