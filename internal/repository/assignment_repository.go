package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/campus-api/internal/models"
)

const assignmentColumns = `id, title, description, file_paths, links, due_date, visibility_date, close_date,
late_submissions_allowed, allow_resubmission, notify_students, class_ids, assigned_user_ids,
created_by, created_at, updated_at`

// AssignmentRepository provides persistence for assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListForStudent returns assignments already visible to a student in the
// given classes, or assigned individually.
func (r *AssignmentRepository) ListForStudent(ctx context.Context, studentID string, classIDs []string, now time.Time) ([]models.Assignment, error) {
	where := []string{"visibility_date <= $1"}
	args := []interface{}{now}

	audience := []string{}
	if len(classIDs) > 0 {
		args = append(args, pq.Array(classIDs))
		audience = append(audience, fmt.Sprintf("class_ids && $%d", len(args)))
	}
	args = append(args, studentID)
	audience = append(audience, fmt.Sprintf("$%d = ANY(assigned_user_ids)", len(args)))
	where = append(where, "("+strings.Join(audience, " OR ")+")")

	query := fmt.Sprintf("SELECT %s FROM assignments WHERE %s ORDER BY due_date ASC", assignmentColumns, strings.Join(where, " AND "))
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments for student: %w", err)
	}
	return assignments, nil
}

// ListByCreator returns assignments created by a teacher.
func (r *AssignmentRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE created_by = $1 ORDER BY due_date ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, creatorID); err != nil {
		return nil, fmt.Errorf("list assignments by creator: %w", err)
	}
	return assignments, nil
}

// GetByID returns an assignment by identifier.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE id = $1", assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	query := `INSERT INTO assignments (id, title, description, file_paths, links, due_date, visibility_date, close_date,
late_submissions_allowed, allow_resubmission, notify_students, class_ids, assigned_user_ids, created_by, created_at, updated_at)
VALUES (:id, :title, :description, :file_paths, :links, :due_date, :visibility_date, :close_date,
:late_submissions_allowed, :allow_resubmission, :notify_students, :class_ids, :assigned_user_ids, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const submissionColumns = "id, assignment_id, student_id, file_paths, submitted_at, grade, feedback, status, created_at, updated_at"

// FindSubmission returns a student's submission for an assignment.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns all submissions for an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at ASC", submissionColumns)
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CreateSubmission inserts a new submission.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now
	query := `INSERT INTO submissions (id, assignment_id, student_id, file_paths, submitted_at, grade, feedback, status, created_at, updated_at)
VALUES (:id, :assignment_id, :student_id, :file_paths, :submitted_at, :grade, :feedback, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// UpdateSubmission replaces the files or grading fields of a submission.
func (r *AssignmentRepository) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()
	query := `UPDATE submissions SET file_paths = :file_paths, submitted_at = :submitted_at,
grade = :grade, feedback = :feedback, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
