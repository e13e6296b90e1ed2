package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type mockAssignmentRepo struct {
	assignment *models.Assignment
	submission *models.Submission
	created    *models.Submission
	updated    *models.Submission
}

func (m *mockAssignmentRepo) ListForStudent(ctx context.Context, studentID string, classIDs []string, now time.Time) ([]models.Assignment, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) ListByCreator(ctx context.Context, creatorID string) ([]models.Assignment, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	if m.assignment == nil {
		return nil, sql.ErrNoRows
	}
	return m.assignment, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockAssignmentRepo) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	if m.submission == nil {
		return nil, sql.ErrNoRows
	}
	return m.submission, nil
}

func (m *mockAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	m.created = submission
	return nil
}

func (m *mockAssignmentRepo) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	m.updated = submission
	return nil
}

func submitWindowAssignment() *models.Assignment {
	visibility := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	closeDate := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	return &models.Assignment{
		ID:             "asg-1",
		Title:          "Essay",
		VisibilityDate: visibility,
		DueDate:        due,
		CloseDate:      &closeDate,
	}
}

func newSubmitService(repo *mockAssignmentRepo, now time.Time) *AssignmentService {
	svc := NewAssignmentService(repo, &mockClassReader{}, nil, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSubmitBeforeVisibility(t *testing.T) {
	repo := &mockAssignmentRepo{assignment: submitWindowAssignment()}
	svc := newSubmitService(repo, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))

	_, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"a.pdf"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitWithinWindow(t *testing.T) {
	repo := &mockAssignmentRepo{assignment: submitWindowAssignment()}
	svc := newSubmitService(repo, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))

	sub, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"a.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	require.NotNil(t, repo.created)
}

func TestSubmitAfterDueDateWithoutLateAllowance(t *testing.T) {
	repo := &mockAssignmentRepo{assignment: submitWindowAssignment()}
	svc := newSubmitService(repo, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))

	_, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"a.pdf"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitLateWhenAllowed(t *testing.T) {
	assignment := submitWindowAssignment()
	assignment.LateSubmissionsAllowed = true
	repo := &mockAssignmentRepo{assignment: assignment}
	svc := newSubmitService(repo, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))

	_, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"a.pdf"}})
	require.NoError(t, err)
}

func TestSubmitAfterClose(t *testing.T) {
	assignment := submitWindowAssignment()
	assignment.LateSubmissionsAllowed = true
	repo := &mockAssignmentRepo{assignment: assignment}
	svc := newSubmitService(repo, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC))

	// The close date is an absolute cutoff even when late submissions are
	// allowed.
	_, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"a.pdf"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitTwiceWithoutResubmission(t *testing.T) {
	repo := &mockAssignmentRepo{
		assignment: submitWindowAssignment(),
		submission: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusSubmitted},
	}
	svc := newSubmitService(repo, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))

	_, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"b.pdf"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitAgainAfterNeedsRevision(t *testing.T) {
	grade := "C"
	feedback := "redo section 2"
	repo := &mockAssignmentRepo{
		assignment: submitWindowAssignment(),
		submission: &models.Submission{
			ID:       "sub-1",
			Status:   models.SubmissionStatusNeedsRevision,
			Grade:    &grade,
			Feedback: &feedback,
		},
	}
	svc := newSubmitService(repo, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))

	sub, err := svc.Submit(context.Background(), "asg-1", "stu-1", SubmitRequest{FilePaths: []string{"b.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	assert.Nil(t, sub.Grade)
	assert.Nil(t, sub.Feedback)
	require.NotNil(t, repo.updated)
}

func TestCreateAssignmentDateOrdering(t *testing.T) {
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockClassReader{}, nil, nil)

	visibility := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	due := visibility.Add(-24 * time.Hour)
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		Title:          "Essay",
		DueDate:        due,
		VisibilityDate: visibility,
		ClassIDs:       []string{"class-1"},
		CreatedBy:      "tch-1",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "due_date")
}

func TestCreateAssignmentNeedsTarget(t *testing.T) {
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockClassReader{}, nil, nil)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		Title:          "Essay",
		DueDate:        base.Add(48 * time.Hour),
		VisibilityDate: base,
		CreatedBy:      "tch-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeRejectsSubmittedStatus(t *testing.T) {
	repo := &mockAssignmentRepo{submission: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusSubmitted}}
	svc := NewAssignmentService(repo, &mockClassReader{}, nil, nil)

	_, err := svc.Grade(context.Background(), "asg-1", "stu-1", GradeRequest{Grade: "A", Status: "SUBMITTED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeUpdatesSubmission(t *testing.T) {
	repo := &mockAssignmentRepo{submission: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusSubmitted}}
	svc := NewAssignmentService(repo, &mockClassReader{}, nil, nil)

	feedback := "well structured"
	sub, err := svc.Grade(context.Background(), "asg-1", "stu-1", GradeRequest{Grade: "A", Feedback: &feedback, Status: "GRADED"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, sub.Status)
	require.NotNil(t, sub.Grade)
	assert.Equal(t, "A", *sub.Grade)
}
