package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/campus-api/internal/models"
)

// ErrVersionConflict is returned when an update carries a stale version.
var ErrVersionConflict = errors.New("announcement version conflict")

const announcementColumns = `id, title, content, type, roles, class_ids, class_target, target_user_ids,
publish_date, expiry_type, expiry_date, attachments_enabled, attachments, visible, version,
created_by, created_at, updated_at`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns the announcements visible to the viewer. Admins see every
// row, hidden ones included; other roles see published, still-visible rows
// targeted at them. Audience filtering happens at read time from the
// scheduling columns, so the visible snapshot never goes stale in listings.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	where := []string{"1=1"}
	args := []interface{}{}

	if filter.ViewerRole != models.RoleAdmin {
		args = append(args, now)
		nowIdx := len(args)
		where = append(where, fmt.Sprintf("publish_date <= $%d", nowIdx))
		where = append(where, "visible = TRUE")

		audience := []string{"type = 'GLOBAL'"}

		args = append(args, string(roleTag(filter.ViewerRole)))
		audience = append(audience, fmt.Sprintf("(type = 'ROLE' AND $%d = ANY(roles))", len(args)))

		if len(filter.ClassIDs) > 0 {
			args = append(args, pq.Array(filter.ClassIDs))
			classIdx := len(args)
			targets := classTargetsFor(filter.ViewerRole)
			args = append(args, pq.Array(targets))
			audience = append(audience, fmt.Sprintf("(type = 'CLASS' AND class_ids && $%d AND class_target = ANY($%d))", classIdx, len(args)))
		}

		if filter.ViewerID != "" {
			args = append(args, filter.ViewerID)
			audience = append(audience, fmt.Sprintf("(type = 'INDIVIDUAL' AND $%d = ANY(target_user_ids))", len(args)))
		}

		where = append(where, "("+strings.Join(audience, " OR ")+")")
	}

	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE %s
ORDER BY publish_date DESC
LIMIT %d OFFSET %d`, announcementColumns, whereClause, size, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE id = $1", announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	if announcement.Version == 0 {
		announcement.Version = 1
	}
	query := `INSERT INTO announcements (id, title, content, type, roles, class_ids, class_target, target_user_ids,
publish_date, expiry_type, expiry_date, attachments_enabled, attachments, visible, version, created_by, created_at, updated_at)
VALUES (:id, :title, :content, :type, :roles, :class_ids, :class_target, :target_user_ids,
:publish_date, :expiry_type, :expiry_date, :attachments_enabled, :attachments, :visible, :version, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement. The write is guarded by the
// version column: a stale version touches zero rows and surfaces as
// ErrVersionConflict. CreatedBy is never part of the SET list.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	query := `UPDATE announcements SET title = :title, content = :content, type = :type, roles = :roles,
class_ids = :class_ids, class_target = :class_target, target_user_ids = :target_user_ids,
publish_date = :publish_date, expiry_type = :expiry_type, expiry_date = :expiry_date,
attachments_enabled = :attachments_enabled, attachments = :attachments, visible = :visible,
version = :version + 1, updated_at = :updated_at
WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, announcement)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	announcement.Version++
	return nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteExpired hard-deletes every announcement whose expiry has elapsed and
// returns the purge count. Permanent announcements carry the far-future
// sentinel and never match.
func (r *AnnouncementRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE expiry_date <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("delete expired announcements: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired announcements: %w", err)
	}
	return affected, nil
}

func roleTag(role models.UserRole) string {
	return strings.ToUpper(string(role))
}

func classTargetsFor(role models.UserRole) []string {
	switch role {
	case models.RoleTeacher:
		return []string{string(models.ClassTargetTeachers), string(models.ClassTargetBoth)}
	default:
		return []string{string(models.ClassTargetStudents), string(models.ClassTargetBoth)}
	}
}
