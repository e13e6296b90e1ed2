package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/campuskit/campus-api/internal/models"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type jobRepository interface {
	List(ctx context.Context, page, pageSize int) ([]models.JobListing, int, error)
	GetByID(ctx context.Context, id string) (*models.JobListing, error)
	ListBookmarked(ctx context.Context, userID string) ([]models.JobListing, error)
	IsBookmarked(ctx context.Context, userID, jobID string) (bool, error)
	AddBookmark(ctx context.Context, userID, jobID string) error
	RemoveBookmark(ctx context.Context, userID, jobID string) error
}

// JobService serves the job board and per-user bookmarks.
type JobService struct {
	repo   jobRepository
	logger *zap.Logger
}

// NewJobService constructs the service.
func NewJobService(repo jobRepository, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, logger: logger}
}

// List returns job listings with pagination.
func (s *JobService) List(ctx context.Context, page, pageSize int) ([]models.JobListing, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	listings, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return listings, pagination, nil
}

// ListBookmarked returns the user's saved listings.
func (s *JobService) ListBookmarked(ctx context.Context, userID string) ([]models.JobListing, error) {
	listings, err := s.repo.ListBookmarked(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookmarks")
	}
	return listings, nil
}

// ToggleBookmark saves or removes a listing for the user and reports the
// resulting state.
func (s *JobService) ToggleBookmark(ctx context.Context, userID, jobID string) (bool, error) {
	if _, err := s.repo.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "job listing not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job listing")
	}
	bookmarked, err := s.repo.IsBookmarked(ctx, userID, jobID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check bookmark")
	}
	if bookmarked {
		if err := s.repo.RemoveBookmark(ctx, userID, jobID); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove bookmark")
		}
		return false, nil
	}
	if err := s.repo.AddBookmark(ctx, userID, jobID); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add bookmark")
	}
	return true, nil
}
