package service

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/events"
	"github.com/spec-kit/senseirm/internal/mail"
	"github.com/spec-kit/senseirm/internal/repository"
)

// NotificationService reacts to domain events.
type NotificationService struct {
	transport mail.Transport
	users     repository.UserRepository
	logger    *zap.Logger
}

// NewNotificationService creates the service. transport may be nil, in which case
// assignment emails are skipped.
func NewNotificationService(transport mail.Transport, users repository.UserRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{transport: transport, users: users, logger: logger}
}

// EventTypes lists the events this service handles.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{events.EventCampaignSent, events.EventCampaignCancelled, events.EventTaskAssigned}
}

// Handle routes one event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventCampaignSent:
		n.logger.Info("CampaignSent", zap.String("campaign_id", event.SubjectID), zap.Any("payload", event.Payload))
		return nil
	case events.EventCampaignCancelled:
		n.logger.Info("CampaignCancelled", zap.String("campaign_id", event.SubjectID), zap.Any("payload", event.Payload))
		return nil
	case events.EventTaskAssigned:
		return n.handleTaskAssigned(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleTaskAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("TaskAssigned", zap.String("task_id", event.SubjectID), zap.String("assignee_id", payload.AssigneeID))
	if n.transport == nil {
		return nil
	}

	assignee, err := n.users.GetByID(ctx, payload.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee: %w", err)
	}
	if !assignee.IsActive {
		return nil
	}

	subject, body := taskAssignedEmail(assignee, payload)
	if _, err := n.transport.Send(ctx, assignee.Email, subject, body); err != nil {
		return err
	}
	return nil
}

func taskAssignedEmail(assignee *domain.User, p events.TaskAssignedPayload) (string, string) {
	subject := "New task assigned: " + p.Title
	due := "no due date"
	if p.DueDate != nil {
		due = p.DueDate.Format("2006-01-02")
	}
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>You have been assigned the task <strong>%s</strong>.</p><p>Priority: %s<br>Due: %s</p>",
		html.EscapeString(assignee.Name),
		html.EscapeString(p.Title),
		html.EscapeString(string(p.Priority)),
		due,
	)
	return subject, body
}
