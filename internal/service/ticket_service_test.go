package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-api/internal/models"
	"github.com/campuskit/campus-api/pkg/email"
	appErrors "github.com/campuskit/campus-api/pkg/errors"
	"github.com/campuskit/campus-api/pkg/jobs"
)

type mockTicketRepo struct {
	ticket    *models.Ticket
	created   *models.Ticket
	createErr error
	replies   []*models.TicketReply
}

func (m *mockTicketRepo) List(ctx context.Context, studentID string) ([]models.Ticket, error) {
	return nil, nil
}

func (m *mockTicketRepo) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	if m.ticket == nil {
		return nil, sql.ErrNoRows
	}
	return m.ticket, nil
}

func (m *mockTicketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	if m.createErr != nil {
		return m.createErr
	}
	ticket.ID = "tkt-1"
	ticket.Code = "TKT-0001"
	m.created = ticket
	return nil
}

func (m *mockTicketRepo) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error {
	return nil
}

func (m *mockTicketRepo) ListReplies(ctx context.Context, ticketID string) ([]models.TicketReply, error) {
	return nil, nil
}

func (m *mockTicketRepo) CreateReply(ctx context.Context, reply *models.TicketReply) error {
	m.replies = append(m.replies, reply)
	return nil
}

type mockEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func ticketNotifyConfig() TicketNotifyConfig {
	return TicketNotifyConfig{SupportName: "IT Support", SupportAddress: "support@example.com"}
}

func TestTicketCreateQueuesNotification(t *testing.T) {
	repo := &mockTicketRepo{}
	queue := &mockEnqueuer{}
	svc := NewTicketService(repo, queue, nil, nil, ticketNotifyConfig())

	ticket, err := svc.Create(context.Background(), "stu-1", CreateTicketRequest{
		Department:  "IT",
		Subject:     "Wifi down",
		Description: "No signal in dorm B",
		Priority:    "HIGH",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusPending, ticket.Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "ticket_email", queue.jobs[0].Type)
	msg, ok := queue.jobs[0].Payload.(email.Message)
	require.True(t, ok)
	assert.Equal(t, "support@example.com", msg.ToAddress)
	assert.Contains(t, msg.Subject, "TKT-0001")
}

func TestTicketCreateSurvivesFullQueue(t *testing.T) {
	repo := &mockTicketRepo{}
	queue := &mockEnqueuer{err: errors.New("queue full")}
	svc := NewTicketService(repo, queue, nil, nil, ticketNotifyConfig())

	// A notification that cannot be queued must not fail the ticket write.
	_, err := svc.Create(context.Background(), "stu-1", CreateTicketRequest{
		Department:  "IT",
		Subject:     "Wifi down",
		Description: "No signal in dorm B",
		Priority:    "LOW",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
}

func TestTicketCreateRejectsUnknownPriority(t *testing.T) {
	svc := NewTicketService(&mockTicketRepo{}, &mockEnqueuer{}, nil, nil, ticketNotifyConfig())

	_, err := svc.Create(context.Background(), "stu-1", CreateTicketRequest{
		Department:  "IT",
		Subject:     "Wifi down",
		Description: "No signal",
		Priority:    "WHENEVER",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTicketStudentReplyNotifiesDepartment(t *testing.T) {
	repo := &mockTicketRepo{ticket: &models.Ticket{ID: "tkt-1", Code: "TKT-0001", Subject: "Wifi down"}}
	queue := &mockEnqueuer{}
	svc := NewTicketService(repo, queue, nil, nil, ticketNotifyConfig())

	_, err := svc.Reply(context.Background(), "tkt-1", false, ReplyRequest{Message: "Still broken"})
	require.NoError(t, err)
	assert.Len(t, queue.jobs, 1)
}

func TestTicketDepartmentReplyDoesNotNotify(t *testing.T) {
	repo := &mockTicketRepo{ticket: &models.Ticket{ID: "tkt-1", Code: "TKT-0001", Subject: "Wifi down"}}
	queue := &mockEnqueuer{}
	svc := NewTicketService(repo, queue, nil, nil, ticketNotifyConfig())

	_, err := svc.Reply(context.Background(), "tkt-1", true, ReplyRequest{Message: "Looking into it"})
	require.NoError(t, err)
	assert.Empty(t, queue.jobs)
}

func TestTicketReplyMissingTicket(t *testing.T) {
	svc := NewTicketService(&mockTicketRepo{}, &mockEnqueuer{}, nil, nil, ticketNotifyConfig())

	_, err := svc.Reply(context.Background(), "missing", false, ReplyRequest{Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
