package models

import "time"

// JobListing is a stored job-board entry. Listings are seeded by an external
// feed; this API only serves and bookmarks them.
type JobListing struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Company     string     `db:"company" json:"company"`
	Location    *string    `db:"location" json:"location,omitempty"`
	URL         string     `db:"url" json:"url"`
	Description *string    `db:"description" json:"description,omitempty"`
	PostedAt    *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// JobBookmark marks a listing saved by a user.
type JobBookmark struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	JobID     string    `db:"job_id" json:"job_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
