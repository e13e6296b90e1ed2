package models

import (
	"time"

	"github.com/lib/pq"
)

// TicketPriority orders support tickets.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is a supported value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	default:
		return false
	}
}

// TicketStatus tracks a ticket through its lifecycle.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether the status is a supported value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusInProgress, TicketStatusClosed:
		return true
	default:
		return false
	}
}

// Ticket represents a support request filed by a student. Code is the short
// public identifier shown to the requester.
type Ticket struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	StudentID   string         `db:"student_id" json:"student_id"`
	Department  string         `db:"department" json:"department"`
	Subject     string         `db:"subject" json:"subject"`
	Description string         `db:"description" json:"description"`
	Priority    TicketPriority `db:"priority" json:"priority"`
	Status      TicketStatus   `db:"status" json:"status"`
	Attachments pq.StringArray `db:"attachments" json:"attachments,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// TicketReply is one message in a ticket's thread.
type TicketReply struct {
	ID             string    `db:"id" json:"id"`
	TicketID       string    `db:"ticket_id" json:"ticket_id"`
	Message        string    `db:"message" json:"message"`
	FromDepartment bool      `db:"from_department" json:"from_department"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
