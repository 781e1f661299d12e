package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/senseirm/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCampaignSent      EventType = "campaign_sent"
	EventCampaignCancelled EventType = "campaign_cancelled"
	EventTaskAssigned      EventType = "task_assigned"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subjectID, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CampaignSentPayload summarizes a finished send batch.
type CampaignSentPayload struct {
	Name         string `json:"name"`
	Recipients   int    `json:"recipients"`
	SuccessCount int    `json:"success_count"`
	FailCount    int    `json:"fail_count"`
	Scheduled    bool   `json:"scheduled"`
}

// CampaignCancelledPayload payload.
type CampaignCancelledPayload struct {
	Name           string                `json:"name"`
	PreviousStatus domain.CampaignStatus `json:"previous_status"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	Title      string              `json:"title"`
	AssigneeID string              `json:"assignee_id"`
	Priority   domain.TaskPriority `json:"priority"`
	DueDate    *time.Time          `json:"due_date,omitempty"`
}
