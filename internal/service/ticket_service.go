package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campuskit/campus-api/internal/models"
	"github.com/campuskit/campus-api/pkg/email"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
	"github.com/campuskit/campus-api/pkg/jobs"
)

type ticketRepository interface {
	List(ctx context.Context, studentID string) ([]models.Ticket, error)
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	Create(ctx context.Context, ticket *models.Ticket) error
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error
	ListReplies(ctx context.Context, ticketID string) ([]models.TicketReply, error)
	CreateReply(ctx context.Context, reply *models.TicketReply) error
}

type notificationEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// TicketNotifyConfig addresses outbound ticket notifications.
type TicketNotifyConfig struct {
	SupportName    string
	SupportAddress string
}

// TicketService manages support tickets. Department notifications go through
// the background queue; a full queue or failed delivery never fails the
// ticket write itself.
type TicketService struct {
	repo      ticketRepository
	queue     notificationEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	notify    TicketNotifyConfig
}

// NewTicketService constructs the service.
func NewTicketService(repo ticketRepository, queue notificationEnqueuer, validate *validator.Validate, logger *zap.Logger, notify TicketNotifyConfig) *TicketService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{repo: repo, queue: queue, validator: validate, logger: logger, notify: notify}
}

// CreateTicketRequest describes the create payload.
type CreateTicketRequest struct {
	Department  string   `json:"department" validate:"required"`
	Subject     string   `json:"subject" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Priority    string   `json:"priority" validate:"required"`
	Attachments []string `json:"attachments"`
}

// ReplyRequest appends a message to a ticket thread.
type ReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// UpdateTicketStatusRequest moves a ticket through its lifecycle.
type UpdateTicketStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// List returns tickets, restricted to the student's own when studentID is set.
func (s *TicketService) List(ctx context.Context, studentID string) ([]models.Ticket, error) {
	tickets, err := s.repo.List(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get ticket")
	}
	return ticket, nil
}

// Create files a new ticket and notifies the department asynchronously.
func (s *TicketService) Create(ctx context.Context, studentID string, req CreateTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket payload")
	}
	priority := models.TicketPriority(req.Priority)
	if !priority.Valid() {
		return nil, appErrors.Validation("priority", "must be one of LOW, MEDIUM, HIGH, URGENT")
	}
	ticket := &models.Ticket{
		StudentID:   studentID,
		Department:  req.Department,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    priority,
		Status:      models.TicketStatusPending,
		Attachments: pq.StringArray(req.Attachments),
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}
	s.enqueueNotification(ticket, fmt.Sprintf("New %s ticket %s: %s", ticket.Priority, ticket.Code, ticket.Subject), ticket.Description)
	return ticket, nil
}

// UpdateStatus moves a ticket to a new lifecycle state.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, req UpdateTicketStatusRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := models.TicketStatus(req.Status)
	if !status.Valid() {
		return appErrors.Validation("status", "must be one of PENDING, IN_PROGRESS, CLOSED")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ticket")
	}
	return nil
}

// ListReplies returns a ticket's thread.
func (s *TicketService) ListReplies(ctx context.Context, ticketID string) ([]models.TicketReply, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	replies, err := s.repo.ListReplies(ctx, ticketID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list replies")
	}
	return replies, nil
}

// Reply appends a message to the thread. Requester replies notify the
// department; department replies reopen a pending state for triage.
func (s *TicketService) Reply(ctx context.Context, ticketID string, fromDepartment bool, req ReplyRequest) (*models.TicketReply, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	reply := &models.TicketReply{TicketID: ticketID, Message: req.Message, FromDepartment: fromDepartment}
	if err := s.repo.CreateReply(ctx, reply); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reply")
	}
	if !fromDepartment {
		s.enqueueNotification(ticket, fmt.Sprintf("Reply on ticket %s: %s", ticket.Code, ticket.Subject), req.Message)
	}
	return reply, nil
}

func (s *TicketService) enqueueNotification(ticket *models.Ticket, subject, body string) {
	if s.queue == nil {
		return
	}
	msg := email.Message{
		ToName:      s.notify.SupportName,
		ToAddress:   s.notify.SupportAddress,
		Subject:     subject,
		TextContent: body,
	}
	if err := s.queue.Enqueue(jobs.Job{Type: "ticket_email", Payload: msg}); err != nil {
		s.logger.Warn("failed to enqueue ticket notification", zap.String("ticket", ticket.ID), zap.Error(err))
	}
}
