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
	"github.com/campuskit/campus-api/internal/repository"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

type classMembershipReader interface {
	ClassIDsForStudent(ctx context.Context, userID string) ([]string, error)
	ClassIDsForTeacher(ctx context.Context, userID string) ([]string, error)
}

// EvaluateVisibility computes whether an announcement is visible at the given
// instant. Permanent announcements are always visible. Limited announcements
// are visible until their expiry instant, even before their publish date;
// publish gating happens at read time, not here.
func EvaluateVisibility(expiryType models.ExpiryType, publishDate, expiryDate, now time.Time) bool {
	if expiryType == models.ExpiryTypePermanent {
		return true
	}
	return now.Before(expiryDate)
}

// AnnouncementService handles the announcement lifecycle.
type AnnouncementService struct {
	repo      announcementRepository
	classes   classMembershipReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, classes classMembershipReader, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, classes: classes, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateAnnouncementRequest describes the create payload.
type CreateAnnouncementRequest struct {
	Title              string              `json:"title" validate:"required"`
	Content            string              `json:"content" validate:"required"`
	Type               string              `json:"type" validate:"required"`
	Roles              []string            `json:"roles"`
	ClassIDs           []string            `json:"class_ids"`
	ClassTarget        *string             `json:"class_target"`
	TargetUserIDs      []string            `json:"target_user_ids"`
	PublishDate        time.Time           `json:"publish_date" validate:"required"`
	ExpiryType         string              `json:"expiry_type" validate:"required"`
	ExpiryDate         *time.Time          `json:"expiry_date"`
	AttachmentsEnabled bool                `json:"attachments_enabled"`
	Attachments        []models.Attachment `json:"attachments"`
	CreatedBy          string              `json:"created_by" validate:"required"`
}

// UpdateAnnouncementRequest describes a partial update. Nil fields keep the
// stored value; the merged document is re-validated in full. Version must
// match the stored row or the update is rejected.
type UpdateAnnouncementRequest struct {
	Title              *string              `json:"title"`
	Content            *string              `json:"content"`
	Type               *string              `json:"type"`
	Roles              *[]string            `json:"roles"`
	ClassIDs           *[]string            `json:"class_ids"`
	ClassTarget        *string              `json:"class_target"`
	TargetUserIDs      *[]string            `json:"target_user_ids"`
	PublishDate        *time.Time           `json:"publish_date"`
	ExpiryType         *string              `json:"expiry_type"`
	ExpiryDate         *time.Time           `json:"expiry_date"`
	AttachmentsEnabled *bool                `json:"attachments_enabled"`
	Attachments        *[]models.Attachment `json:"attachments"`
	Version            int                  `json:"version" validate:"required,min=1"`
}

// AnnouncementListRequest describes the viewer context for listings.
type AnnouncementListRequest struct {
	ViewerID   string
	ViewerRole models.UserRole
	Page       int
	PageSize   int
}

// List returns the announcements the viewer may see, with pagination.
func (s *AnnouncementService) List(ctx context.Context, req AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		ViewerID:   req.ViewerID,
		ViewerRole: req.ViewerRole,
		Now:        s.now(),
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if req.ViewerRole != models.RoleAdmin && s.classes != nil {
		classIDs, err := s.viewerClassIDs(ctx, req.ViewerID, req.ViewerRole)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class membership")
		}
		filter.ClassIDs = classIDs
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return ann, nil
}

// Create registers a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	announcement := &models.Announcement{
		Title:              req.Title,
		Content:            req.Content,
		Type:               models.AnnouncementType(req.Type),
		Roles:              pq.StringArray(req.Roles),
		ClassIDs:           pq.StringArray(req.ClassIDs),
		TargetUserIDs:      pq.StringArray(req.TargetUserIDs),
		PublishDate:        req.PublishDate,
		ExpiryType:         models.ExpiryType(req.ExpiryType),
		AttachmentsEnabled: req.AttachmentsEnabled,
		Attachments:        models.AttachmentList(req.Attachments),
		CreatedBy:          req.CreatedBy,
	}
	if req.ClassTarget != nil {
		target := models.ClassTarget(*req.ClassTarget)
		announcement.ClassTarget = &target
	}
	if req.ExpiryDate != nil {
		announcement.ExpiryDate = *req.ExpiryDate
	}
	if err := s.validateDocument(announcement); err != nil {
		return nil, err
	}
	s.prepareForWrite(announcement)
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update merges the patch over the stored announcement, re-validates the
// merged document and persists it under the caller-supplied version. A stale
// version yields CONFLICT so the caller can re-read and retry.
func (s *AnnouncementService) Update(ctx context.Context, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	s.applyPatch(existing, req)
	if err := s.validateDocument(existing); err != nil {
		return nil, err
	}
	s.prepareForWrite(existing)
	existing.Version = req.Version

	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "announcement was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return existing, nil
}

// Delete removes an announcement by id.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) applyPatch(doc *models.Announcement, req UpdateAnnouncementRequest) {
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Content != nil {
		doc.Content = *req.Content
	}
	if req.Type != nil {
		doc.Type = models.AnnouncementType(*req.Type)
	}
	if req.Roles != nil {
		doc.Roles = pq.StringArray(*req.Roles)
	}
	if req.ClassIDs != nil {
		doc.ClassIDs = pq.StringArray(*req.ClassIDs)
	}
	if req.ClassTarget != nil {
		target := models.ClassTarget(*req.ClassTarget)
		doc.ClassTarget = &target
	}
	if req.TargetUserIDs != nil {
		doc.TargetUserIDs = pq.StringArray(*req.TargetUserIDs)
	}
	if req.PublishDate != nil {
		doc.PublishDate = *req.PublishDate
	}
	if req.ExpiryType != nil {
		doc.ExpiryType = models.ExpiryType(*req.ExpiryType)
		if doc.ExpiryType == models.ExpiryTypeLimited && req.ExpiryDate == nil {
			// Switching to LIMITED must carry its own expiry; the stored
			// sentinel does not count as one.
			if doc.ExpiryDate.Equal(models.NeverExpires) {
				doc.ExpiryDate = time.Time{}
			}
		}
	}
	if req.ExpiryDate != nil {
		doc.ExpiryDate = *req.ExpiryDate
	}
	if req.AttachmentsEnabled != nil {
		doc.AttachmentsEnabled = *req.AttachmentsEnabled
	}
	if req.Attachments != nil {
		doc.Attachments = models.AttachmentList(*req.Attachments)
	}
}

// validateDocument checks the full merged document. Validation always runs
// before the visibility snapshot is recomputed.
func (s *AnnouncementService) validateDocument(doc *models.Announcement) error {
	if doc.Title == "" {
		return appErrors.Validation("title", "is required")
	}
	if doc.Content == "" {
		return appErrors.Validation("content", "is required")
	}
	if !doc.Type.Valid() {
		return appErrors.Validation("type", "must be one of GLOBAL, ROLE, CLASS, INDIVIDUAL")
	}
	if !doc.ExpiryType.Valid() {
		return appErrors.Validation("expiry_type", "must be one of PERMANENT, LIMITED")
	}
	if doc.PublishDate.IsZero() {
		return appErrors.Validation("publish_date", "is required")
	}
	switch doc.Type {
	case models.AnnouncementTypeRole:
		if len(doc.Roles) == 0 {
			return appErrors.Validation("roles", "is required for ROLE announcements")
		}
		for _, role := range doc.Roles {
			if !models.UserRole(role).Valid() {
				return appErrors.Validation("roles", "contains an unknown role")
			}
		}
	case models.AnnouncementTypeClass:
		if len(doc.ClassIDs) == 0 {
			return appErrors.Validation("class_ids", "is required for CLASS announcements")
		}
		if doc.ClassTarget != nil && !doc.ClassTarget.Valid() {
			return appErrors.Validation("class_target", "must be one of STUDENTS, TEACHERS, BOTH")
		}
	case models.AnnouncementTypeIndividual:
		if len(doc.TargetUserIDs) == 0 {
			return appErrors.Validation("target_user_ids", "is required for INDIVIDUAL announcements")
		}
	}
	if doc.ExpiryType == models.ExpiryTypeLimited {
		if doc.ExpiryDate.IsZero() || doc.ExpiryDate.Equal(models.NeverExpires) {
			return appErrors.Validation("expiry_date", "is required for LIMITED announcements")
		}
		if !doc.ExpiryDate.After(doc.PublishDate) {
			return appErrors.Validation("expiry_date", "must be after publish_date")
		}
	}
	if doc.AttachmentsEnabled {
		if len(doc.Attachments) == 0 {
			return appErrors.Validation("attachments", "is required when attachments are enabled")
		}
		for _, att := range doc.Attachments {
			if att.FilePath == "" || att.Filename == "" || att.ContentType == "" {
				return appErrors.Validation("attachments", "entries require file_path, filename and content_type")
			}
		}
	}
	return nil
}

// prepareForWrite normalises the scheduling columns and recomputes the
// visibility snapshot. Permanent announcements always store the far-future
// sentinel so the sweeper never matches them.
func (s *AnnouncementService) prepareForWrite(doc *models.Announcement) {
	if doc.ExpiryType == models.ExpiryTypePermanent {
		doc.ExpiryDate = models.NeverExpires
	}
	if doc.Type == models.AnnouncementTypeClass && doc.ClassTarget == nil {
		target := models.ClassTargetBoth
		doc.ClassTarget = &target
	}
	doc.Visible = EvaluateVisibility(doc.ExpiryType, doc.PublishDate, doc.ExpiryDate, s.now())
}

func (s *AnnouncementService) viewerClassIDs(ctx context.Context, userID string, role models.UserRole) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	switch role {
	case models.RoleTeacher:
		return s.classes.ClassIDsForTeacher(ctx, userID)
	case models.RoleStudent:
		return s.classes.ClassIDsForStudent(ctx, userID)
	default:
		return nil, nil
	}
}
