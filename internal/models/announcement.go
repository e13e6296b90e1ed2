package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// AnnouncementType determines which audience-selector fields are meaningful.
type AnnouncementType string

const (
	AnnouncementTypeGlobal     AnnouncementType = "GLOBAL"
	AnnouncementTypeRole       AnnouncementType = "ROLE"
	AnnouncementTypeClass      AnnouncementType = "CLASS"
	AnnouncementTypeIndividual AnnouncementType = "INDIVIDUAL"
)

// Valid reports whether the type is a supported value.
func (t AnnouncementType) Valid() bool {
	switch t {
	case AnnouncementTypeGlobal, AnnouncementTypeRole, AnnouncementTypeClass, AnnouncementTypeIndividual:
		return true
	default:
		return false
	}
}

// ExpiryType selects between permanent and time-limited announcements.
type ExpiryType string

const (
	ExpiryTypePermanent ExpiryType = "PERMANENT"
	ExpiryTypeLimited   ExpiryType = "LIMITED"
)

// Valid reports whether the expiry type is a supported value.
func (t ExpiryType) Valid() bool {
	return t == ExpiryTypePermanent || t == ExpiryTypeLimited
}

// ClassTarget narrows a class announcement to students, teachers or both.
type ClassTarget string

const (
	ClassTargetStudents ClassTarget = "STUDENTS"
	ClassTargetTeachers ClassTarget = "TEACHERS"
	ClassTargetBoth     ClassTarget = "BOTH"
)

// Valid reports whether the class target is a supported value.
func (t ClassTarget) Valid() bool {
	switch t {
	case ClassTargetStudents, ClassTargetTeachers, ClassTargetBoth:
		return true
	default:
		return false
	}
}

// NeverExpires is the sentinel instant stored for permanent announcements.
// Rows carrying it are never matched by the expiry sweeper.
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Attachment references an uploaded file attached to an announcement.
type Attachment struct {
	FilePath    string `json:"file_path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// AttachmentList stores attachment metadata as a JSONB column.
type AttachmentList []Attachment

// Value implements driver.Valuer.
func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *AttachmentList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attachment scan type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Announcement represents a persisted announcement row. Visible is a derived
// snapshot recomputed on every write; it is never independently settable.
// ExpiryDate always holds a concrete instant after validation: the sentinel
// for permanent announcements, the caller-supplied instant otherwise.
type Announcement struct {
	ID                 string           `db:"id" json:"id"`
	Title              string           `db:"title" json:"title"`
	Content            string           `db:"content" json:"content"`
	Type               AnnouncementType `db:"type" json:"type"`
	Roles              pq.StringArray   `db:"roles" json:"roles,omitempty"`
	ClassIDs           pq.StringArray   `db:"class_ids" json:"class_ids,omitempty"`
	ClassTarget        *ClassTarget     `db:"class_target" json:"class_target,omitempty"`
	TargetUserIDs      pq.StringArray   `db:"target_user_ids" json:"target_user_ids,omitempty"`
	PublishDate        time.Time        `db:"publish_date" json:"publish_date"`
	ExpiryType         ExpiryType       `db:"expiry_type" json:"expiry_type"`
	ExpiryDate         time.Time        `db:"expiry_date" json:"expiry_date"`
	AttachmentsEnabled bool             `db:"attachments_enabled" json:"attachments_enabled"`
	Attachments        AttachmentList   `db:"attachments" json:"attachments"`
	Visible            bool             `db:"visible" json:"visible"`
	Version            int              `db:"version" json:"version"`
	CreatedBy          string           `db:"created_by" json:"created_by"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter selects the audience slice for listings.
type AnnouncementFilter struct {
	ViewerID   string
	ViewerRole UserRole
	ClassIDs   []string
	Now        time.Time
	Page       int
	PageSize   int
}
