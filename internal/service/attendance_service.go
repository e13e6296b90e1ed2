package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
	"github.com/campuskit/campus-api/pkg/export"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListForClass(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error)
	Register(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRegisterRow, error)
}

// AttendanceService records sessions and exports class registers.
type AttendanceService struct {
	repo      attendanceRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepository, csv *export.CSVExporter, pdf *export.PDFExporter, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

// MarkAttendanceRequest records one session's statuses for a class.
type MarkAttendanceRequest struct {
	ClassID   string                `json:"class_id" validate:"required"`
	SubjectID *string               `json:"subject_id"`
	Date      time.Time             `json:"date" validate:"required"`
	Entries   []MarkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// MarkAttendanceEntry is a single student's status.
type MarkAttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required"`
	Notes     *string `json:"notes"`
}

// RegisterRequest bounds a register listing or export.
type RegisterRequest struct {
	ClassID string    `json:"class_id" validate:"required"`
	From    time.Time `json:"from" validate:"required"`
	To      time.Time `json:"to" validate:"required"`
}

// Mark upserts a session's records. Re-marking the same student and date
// overwrites the earlier status.
func (s *AttendanceService) Mark(ctx context.Context, takenBy string, req MarkAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	for _, entry := range req.Entries {
		status := models.AttendanceStatus(entry.Status)
		if !status.Valid() {
			return appErrors.Validation("status", "must be one of PRESENT, ABSENT, LATE")
		}
		record := &models.AttendanceRecord{
			ClassID:   req.ClassID,
			SubjectID: req.SubjectID,
			StudentID: entry.StudentID,
			Date:      req.Date,
			Status:    status,
			Notes:     entry.Notes,
			TakenBy:   takenBy,
		}
		if err := s.repo.Upsert(ctx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
	}
	return nil
}

// ListForClass returns raw records for a class in a date range.
func (s *AttendanceService) ListForClass(ctx context.Context, req RegisterRequest) ([]models.AttendanceRecord, error) {
	if err := s.validateRange(req); err != nil {
		return nil, err
	}
	records, err := s.repo.ListForClass(ctx, req.ClassID, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// ExportCSV renders the class register as CSV bytes.
func (s *AttendanceService) ExportCSV(ctx context.Context, req RegisterRequest) ([]byte, error) {
	dataset, _, err := s.registerDataset(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// ExportPDF renders the class register as a PDF document.
func (s *AttendanceService) ExportPDF(ctx context.Context, req RegisterRequest) ([]byte, error) {
	dataset, title, err := s.registerDataset(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := s.pdf.Render(*dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return out, nil
}

func (s *AttendanceService) registerDataset(ctx context.Context, req RegisterRequest) (*export.Dataset, string, error) {
	if err := s.validateRange(req); err != nil {
		return nil, "", err
	}
	rows, err := s.repo.Register(ctx, req.ClassID, req.From, req.To)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build register")
	}
	dataset := &export.Dataset{
		Headers: []string{"Date", "Student", "Email", "Status", "Notes"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    row.Date.Format("2006-01-02"),
			"Student": row.StudentName,
			"Email":   row.StudentEmail,
			"Status":  string(row.Status),
			"Notes":   notes,
		})
	}
	title := fmt.Sprintf("Attendance register %s to %s", req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
	return dataset, title, nil
}

func (s *AttendanceService) validateRange(req RegisterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register request")
	}
	if req.To.Before(req.From) {
		return appErrors.Validation("to", "must not precede from")
	}
	return nil
}
