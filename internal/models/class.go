package models

import "time"

// Class represents a cohort identified by its code and commencement year,
// a unique pair.
type Class struct {
	ID               string    `db:"id" json:"id"`
	ClassCode        int       `db:"class_code" json:"class_code"`
	Specialization   string    `db:"specialization" json:"specialization"`
	Course           string    `db:"course" json:"course"`
	CommencementYear int       `db:"commencement_year" json:"commencement_year"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Subject represents a taught subject, optionally bound to a class.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
