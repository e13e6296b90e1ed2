package models

import (
	"time"

	"github.com/lib/pq"
)

// SubmissionStatus tracks the grading state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted     SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded        SubmissionStatus = "GRADED"
	SubmissionStatusNeedsRevision SubmissionStatus = "NEEDS_REVISION"
)

// Valid reports whether the status is a supported value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusSubmitted, SubmissionStatusGraded, SubmissionStatusNeedsRevision:
		return true
	default:
		return false
	}
}

// Assignment represents coursework assigned to classes or individual users.
type Assignment struct {
	ID                    string         `db:"id" json:"id"`
	Title                 string         `db:"title" json:"title"`
	Description           *string        `db:"description" json:"description,omitempty"`
	FilePaths             pq.StringArray `db:"file_paths" json:"file_paths,omitempty"`
	Links                 pq.StringArray `db:"links" json:"links,omitempty"`
	DueDate               time.Time      `db:"due_date" json:"due_date"`
	VisibilityDate        time.Time      `db:"visibility_date" json:"visibility_date"`
	CloseDate             *time.Time     `db:"close_date" json:"close_date,omitempty"`
	LateSubmissionsAllowed bool          `db:"late_submissions_allowed" json:"late_submissions_allowed"`
	AllowResubmission     bool           `db:"allow_resubmission" json:"allow_resubmission"`
	NotifyStudents        bool           `db:"notify_students" json:"notify_students"`
	ClassIDs              pq.StringArray `db:"class_ids" json:"class_ids"`
	AssignedUserIDs       pq.StringArray `db:"assigned_user_ids" json:"assigned_user_ids,omitempty"`
	CreatedBy             string         `db:"created_by" json:"created_by"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Submission represents a student's files handed in for an assignment.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	FilePaths    pq.StringArray   `db:"file_paths" json:"file_paths"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	Grade        *string          `db:"grade" json:"grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}
