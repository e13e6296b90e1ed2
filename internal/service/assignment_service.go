package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type assignmentRepository interface {
	ListForStudent(ctx context.Context, studentID string, classIDs []string, now time.Time) ([]models.Assignment, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.Assignment, error)
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	UpdateSubmission(ctx context.Context, submission *models.Submission) error
}

// AssignmentService manages coursework and submissions.
type AssignmentService struct {
	repo      assignmentRepository
	classes   classMembershipReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, classes classMembershipReader, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, classes: classes, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateAssignmentRequest describes the create payload.
type CreateAssignmentRequest struct {
	Title                  string     `json:"title" validate:"required"`
	Description            *string    `json:"description"`
	FilePaths              []string   `json:"file_paths"`
	Links                  []string   `json:"links"`
	DueDate                time.Time  `json:"due_date" validate:"required"`
	VisibilityDate         time.Time  `json:"visibility_date" validate:"required"`
	CloseDate              *time.Time `json:"close_date"`
	LateSubmissionsAllowed bool       `json:"late_submissions_allowed"`
	AllowResubmission      bool       `json:"allow_resubmission"`
	NotifyStudents         bool       `json:"notify_students"`
	ClassIDs               []string   `json:"class_ids"`
	AssignedUserIDs        []string   `json:"assigned_user_ids"`
	CreatedBy              string     `json:"created_by" validate:"required"`
}

// SubmitRequest hands in files for an assignment.
type SubmitRequest struct {
	FilePaths []string `json:"file_paths" validate:"required,min=1"`
}

// GradeRequest records a grade and feedback on a submission.
type GradeRequest struct {
	Grade    string  `json:"grade" validate:"required"`
	Feedback *string `json:"feedback"`
	Status   string  `json:"status" validate:"required"`
}

// ListForStudent returns visible assignments targeted at the student.
func (s *AssignmentService) ListForStudent(ctx context.Context, studentID string) ([]models.Assignment, error) {
	classIDs, err := s.classes.ClassIDsForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class membership")
	}
	assignments, err := s.repo.ListForStudent(ctx, studentID, classIDs, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListByCreator returns assignments authored by a teacher.
func (s *AssignmentService) ListByCreator(ctx context.Context, creatorID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Get returns an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get assignment")
	}
	return assignment, nil
}

// Create registers a new assignment.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if len(req.ClassIDs) == 0 && len(req.AssignedUserIDs) == 0 {
		return nil, appErrors.Validation("class_ids", "assignment needs at least one target class or user")
	}
	if req.DueDate.Before(req.VisibilityDate) {
		return nil, appErrors.Validation("due_date", "must not precede visibility_date")
	}
	if req.CloseDate != nil && req.CloseDate.Before(req.DueDate) {
		return nil, appErrors.Validation("close_date", "must not precede due_date")
	}
	assignment := &models.Assignment{
		Title:                  req.Title,
		Description:            req.Description,
		FilePaths:              pq.StringArray(req.FilePaths),
		Links:                  pq.StringArray(req.Links),
		DueDate:                req.DueDate,
		VisibilityDate:         req.VisibilityDate,
		CloseDate:              req.CloseDate,
		LateSubmissionsAllowed: req.LateSubmissionsAllowed,
		AllowResubmission:      req.AllowResubmission,
		NotifyStudents:         req.NotifyStudents,
		ClassIDs:               pq.StringArray(req.ClassIDs),
		AssignedUserIDs:        pq.StringArray(req.AssignedUserIDs),
		CreatedBy:              req.CreatedBy,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Delete removes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Submit hands in a student's files. Deadlines and resubmission rules are
// enforced here so a crafted client cannot bypass them.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID, studentID string, req SubmitRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	assignment, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Before(assignment.VisibilityDate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment is not open yet")
	}
	if assignment.CloseDate != nil && now.After(*assignment.CloseDate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment is closed")
	}
	if now.After(assignment.DueDate) && !assignment.LateSubmissionsAllowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "deadline has passed")
	}

	existing, err := s.repo.FindSubmission(ctx, assignmentID, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
	}
	if existing != nil {
		if !assignment.AllowResubmission && existing.Status != models.SubmissionStatusNeedsRevision {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already submitted")
		}
		existing.FilePaths = pq.StringArray(req.FilePaths)
		existing.SubmittedAt = now
		existing.Status = models.SubmissionStatusSubmitted
		existing.Grade = nil
		existing.Feedback = nil
		if err := s.repo.UpdateSubmission(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
		}
		return existing, nil
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FilePaths:    pq.StringArray(req.FilePaths),
		SubmittedAt:  now,
		Status:       models.SubmissionStatusSubmitted,
	}
	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// ListSubmissions returns all submissions for an assignment.
func (s *AssignmentService) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	submissions, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Grade records a grade on a student's submission.
func (s *AssignmentService) Grade(ctx context.Context, assignmentID, studentID string, req GradeRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	status := models.SubmissionStatus(req.Status)
	if !status.Valid() || status == models.SubmissionStatusSubmitted {
		return nil, appErrors.Validation("status", "must be GRADED or NEEDS_REVISION")
	}
	submission, err := s.repo.FindSubmission(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	submission.Grade = &req.Grade
	submission.Feedback = req.Feedback
	submission.Status = status
	if err := s.repo.UpdateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	return submission, nil
}
