package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-api/internal/models"
	"github.com/campuskit/campus-api/internal/repository"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	byID      *models.Announcement
	getErr    error
	created   *models.Announcement
	updated   *models.Announcement
	updateErr error
	listRows  []models.Announcement
	listTotal int
	listErr   error
	filter    models.AnnouncementFilter
	deleteErr error
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	m.filter = filter
	return m.listRows, m.listTotal, m.listErr
}

func (m *mockAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.byID
	return &copied, nil
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	m.created = announcement
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = announcement
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

type mockClassReader struct {
	studentClasses []string
	teacherClasses []string
}

func (m *mockClassReader) ClassIDsForStudent(ctx context.Context, userID string) ([]string, error) {
	return m.studentClasses, nil
}

func (m *mockClassReader) ClassIDsForTeacher(ctx context.Context, userID string) ([]string, error) {
	return m.teacherClasses, nil
}

func validCreateRequest() CreateAnnouncementRequest {
	return CreateAnnouncementRequest{
		Title:       "Exam schedule",
		Content:     "Mid-term exams start Monday.",
		Type:        "GLOBAL",
		PublishDate: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		ExpiryType:  "PERMANENT",
		CreatedBy:   "admin-1",
	}
}

func TestEvaluateVisibility(t *testing.T) {
	publish := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.True(t, EvaluateVisibility(models.ExpiryTypePermanent, publish, models.NeverExpires, expiry.Add(time.Hour)))

	// Limited announcements stay visible before publish as long as the
	// expiry has not elapsed.
	assert.True(t, EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, publish.Add(-24*time.Hour)))
	assert.True(t, EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, expiry.Add(-time.Second)))
	assert.False(t, EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, expiry))
	assert.False(t, EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, expiry.Add(time.Hour)))
}

func TestEvaluateVisibilityIdempotent(t *testing.T) {
	publish := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	now := expiry.Add(-time.Minute)

	first := EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, EvaluateVisibility(models.ExpiryTypeLimited, publish, expiry, now))
	}
}

func TestAnnouncementCreatePermanentForcesSentinel(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &mockClassReader{}, nil, nil)

	ann, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.True(t, ann.ExpiryDate.Equal(models.NeverExpires))
	assert.True(t, ann.Visible)
	require.NotNil(t, repo.created)
}

func TestAnnouncementCreateLimitedRequiresExpiry(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockClassReader{}, nil, nil)

	req := validCreateRequest()
	req.ExpiryType = "LIMITED"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "expiry_date")
}

func TestAnnouncementCreateLimitedExpiryMustFollowPublish(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockClassReader{}, nil, nil)

	req := validCreateRequest()
	req.ExpiryType = "LIMITED"
	expiry := req.PublishDate.Add(-time.Hour)
	req.ExpiryDate = &expiry
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "expiry_date")
}

func TestAnnouncementCreateAudienceValidation(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockClassReader{}, nil, nil)

	cases := []struct {
		name  string
		patch func(*CreateAnnouncementRequest)
		field string
	}{
		{"role without roles", func(r *CreateAnnouncementRequest) { r.Type = "ROLE" }, "roles"},
		{"class without class_ids", func(r *CreateAnnouncementRequest) { r.Type = "CLASS" }, "class_ids"},
		{"individual without targets", func(r *CreateAnnouncementRequest) { r.Type = "INDIVIDUAL" }, "target_user_ids"},
		{"unknown type", func(r *CreateAnnouncementRequest) { r.Type = "EVERYONE" }, "type"},
		{"unknown role entry", func(r *CreateAnnouncementRequest) {
			r.Type = "ROLE"
			r.Roles = []string{"JANITOR"}
		}, "roles"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.patch(&req)
			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.field)
		})
	}
}

func TestAnnouncementCreateAttachmentsNeedMetadata(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockClassReader{}, nil, nil)

	req := validCreateRequest()
	req.AttachmentsEnabled = true
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "attachments")

	req.Attachments = []models.Attachment{{FilePath: "a/b.pdf", Filename: "b.pdf"}}
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "content_type")
}

func TestAnnouncementUpdatePatchMerges(t *testing.T) {
	publish := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo := &mockAnnouncementRepo{byID: &models.Announcement{
		ID:          "ann-1",
		Title:       "Old title",
		Content:     "Body",
		Type:        models.AnnouncementTypeGlobal,
		PublishDate: publish,
		ExpiryType:  models.ExpiryTypePermanent,
		ExpiryDate:  models.NeverExpires,
		Version:     3,
		CreatedBy:   "admin-1",
	}}
	svc := NewAnnouncementService(repo, &mockClassReader{}, nil, nil)

	title := "New title"
	updated, err := svc.Update(context.Background(), "ann-1", UpdateAnnouncementRequest{Title: &title, Version: 3})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "Body", updated.Content)
	assert.Equal(t, "admin-1", updated.CreatedBy)
}

func TestAnnouncementUpdateLimitedWithoutExpiryFails(t *testing.T) {
	repo := &mockAnnouncementRepo{byID: &models.Announcement{
		ID:          "ann-1",
		Title:       "Title",
		Content:     "Body",
		Type:        models.AnnouncementTypeGlobal,
		PublishDate: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		ExpiryType:  models.ExpiryTypePermanent,
		ExpiryDate:  models.NeverExpires,
		Version:     1,
	}}
	svc := NewAnnouncementService(repo, &mockClassReader{}, nil, nil)

	// Switching to LIMITED without supplying a real expiry must not let the
	// stored sentinel satisfy the requirement.
	limited := "LIMITED"
	_, err := svc.Update(context.Background(), "ann-1", UpdateAnnouncementRequest{ExpiryType: &limited, Version: 1})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "expiry_date")
}

func TestAnnouncementUpdateVersionConflict(t *testing.T) {
	repo := &mockAnnouncementRepo{
		byID: &models.Announcement{
			ID:          "ann-1",
			Title:       "Title",
			Content:     "Body",
			Type:        models.AnnouncementTypeGlobal,
			PublishDate: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
			ExpiryType:  models.ExpiryTypePermanent,
			ExpiryDate:  models.NeverExpires,
			Version:     2,
		},
		updateErr: repository.ErrVersionConflict,
	}
	svc := NewAnnouncementService(repo, &mockClassReader{}, nil, nil)

	title := "Race"
	_, err := svc.Update(context.Background(), "ann-1", UpdateAnnouncementRequest{Title: &title, Version: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementUpdateNotFound(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockClassReader{}, nil, nil)

	title := "Gone"
	_, err := svc.Update(context.Background(), "missing", UpdateAnnouncementRequest{Title: &title, Version: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementCreateExpiredLimitedIsHidden(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &mockClassReader{}, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }

	req := validCreateRequest()
	req.ExpiryType = "LIMITED"
	expiry := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	req.ExpiryDate = &expiry

	ann, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, ann.Visible)
}

func TestAnnouncementListResolvesStudentClasses(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	classes := &mockClassReader{studentClasses: []string{"class-1", "class-2"}}
	svc := NewAnnouncementService(repo, classes, nil, nil)

	_, _, err := svc.List(context.Background(), AnnouncementListRequest{ViewerID: "stu-1", ViewerRole: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1", "class-2"}, repo.filter.ClassIDs)
	assert.Equal(t, models.RoleStudent, repo.filter.ViewerRole)
}

func TestAnnouncementListAdminSkipsMembership(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &mockClassReader{studentClasses: []string{"class-1"}}, nil, nil)

	_, _, err := svc.List(context.Background(), AnnouncementListRequest{ViewerID: "adm-1", ViewerRole: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, repo.filter.ClassIDs)
}
