package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-api/internal/models"
)

const attendanceColumns = "id, class_id, subject_id, student_id, date, status, notes, taken_by, created_at, updated_at"

// AttendanceRepository provides persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records a student's status for a session, replacing an earlier
// mark for the same class/subject/date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, class_id, subject_id, student_id, date, status, notes, taken_by, created_at, updated_at)
VALUES (:id, :class_id, :subject_id, :student_id, :date, :status, :notes, :taken_by, :created_at, :updated_at)
ON CONFLICT (class_id, student_id, date, subject_id)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, taken_by = EXCLUDED.taken_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// ListForClass returns records for a class within a date range.
func (r *AttendanceRepository) ListForClass(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	where := []string{"class_id = $1"}
	args := []interface{}{classID}
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE %s ORDER BY date ASC, student_id ASC", attendanceColumns, strings.Join(where, " AND "))
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance for class: %w", err)
	}
	return records, nil
}

// Register joins class records with student names for exports.
func (r *AttendanceRepository) Register(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRegisterRow, error) {
	where := []string{"a.class_id = $1"}
	args := []interface{}{classID}
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT a.id, a.class_id, a.subject_id, a.student_id, a.date, a.status, a.notes, a.taken_by,
a.created_at, a.updated_at, u.full_name AS student_name, u.email AS student_email
FROM attendance_records a
JOIN users u ON u.id = a.student_id
WHERE %s
ORDER BY a.date ASC, u.full_name ASC`, strings.Join(where, " AND "))
	var rows []models.AttendanceRegisterRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance register: %w", err)
	}
	return rows, nil
}
