package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-api/internal/models"
)

const ticketColumns = "id, code, student_id, department, subject, description, priority, status, attachments, created_at, updated_at"

// TicketRepository provides persistence for support tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates the repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// List returns tickets, optionally narrowed to one student.
func (r *TicketRepository) List(ctx context.Context, studentID string) ([]models.Ticket, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if studentID != "" {
		args = append(args, studentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC", ticketColumns, strings.Join(where, " AND "))
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// GetByID returns a ticket by identifier.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE id = $1", ticketColumns)
	var ticket models.Ticket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Create inserts a new ticket. The short public code is the first uuid
// segment, matching what requesters see in their inbox.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Code == "" {
		ticket.Code = strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	query := `INSERT INTO tickets (id, code, student_id, department, subject, description, priority, status, attachments, created_at, updated_at)
VALUES (:id, :code, :student_id, :department, :subject, :description, :priority, :status, :attachments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// UpdateStatus moves a ticket through its lifecycle.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListReplies returns a ticket's thread in order.
func (r *TicketRepository) ListReplies(ctx context.Context, ticketID string) ([]models.TicketReply, error) {
	const query = `SELECT id, ticket_id, message, from_department, created_at FROM ticket_replies
WHERE ticket_id = $1 ORDER BY created_at ASC`
	var replies []models.TicketReply
	if err := r.db.SelectContext(ctx, &replies, query, ticketID); err != nil {
		return nil, fmt.Errorf("list ticket replies: %w", err)
	}
	return replies, nil
}

// CreateReply appends a message to a ticket's thread.
func (r *TicketRepository) CreateReply(ctx context.Context, reply *models.TicketReply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO ticket_replies (id, ticket_id, message, from_department, created_at)
VALUES (:id, :ticket_id, :message, :from_department, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("create ticket reply: %w", err)
	}
	return nil
}
