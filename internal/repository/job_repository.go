package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-api/internal/models"
)

const jobColumns = "id, title, company, location, url, description, posted_at, created_at"

// JobRepository provides persistence for job listings and bookmarks.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// List returns job listings, newest first.
func (r *JobRepository) List(ctx context.Context, page, pageSize int) ([]models.JobListing, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT %s FROM job_listings ORDER BY posted_at DESC NULLS LAST, created_at DESC LIMIT %d OFFSET %d", jobColumns, pageSize, offset)
	var listings []models.JobListing
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, 0, fmt.Errorf("list job listings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM job_listings"); err != nil {
		return nil, 0, fmt.Errorf("count job listings: %w", err)
	}
	return listings, total, nil
}

// GetByID returns a listing by identifier.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.JobListing, error) {
	query := fmt.Sprintf("SELECT %s FROM job_listings WHERE id = $1", jobColumns)
	var listing models.JobListing
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListBookmarked returns the listings a user has saved.
func (r *JobRepository) ListBookmarked(ctx context.Context, userID string) ([]models.JobListing, error) {
	query := `SELECT j.id, j.title, j.company, j.location, j.url, j.description, j.posted_at, j.created_at
FROM job_listings j
JOIN job_bookmarks b ON b.job_id = j.id
WHERE b.user_id = $1
ORDER BY b.created_at DESC`
	var listings []models.JobListing
	if err := r.db.SelectContext(ctx, &listings, query, userID); err != nil {
		return nil, fmt.Errorf("list bookmarked jobs: %w", err)
	}
	return listings, nil
}

// IsBookmarked reports whether a user saved a listing.
func (r *JobRepository) IsBookmarked(ctx context.Context, userID, jobID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM job_bookmarks WHERE user_id = $1 AND job_id = $2", userID, jobID); err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return count > 0, nil
}

// AddBookmark saves a listing for a user.
func (r *JobRepository) AddBookmark(ctx context.Context, userID, jobID string) error {
	bookmark := models.JobBookmark{ID: uuid.NewString(), UserID: userID, JobID: jobID, CreatedAt: time.Now().UTC()}
	query := `INSERT INTO job_bookmarks (id, user_id, job_id, created_at)
VALUES (:id, :user_id, :job_id, :created_at)
ON CONFLICT (user_id, job_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, bookmark); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark deletes a saved listing for a user.
func (r *JobRepository) RemoveBookmark(ctx context.Context, userID, jobID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM job_bookmarks WHERE user_id = $1 AND job_id = $2", userID, jobID); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}
