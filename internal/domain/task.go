package domain

import "time"

// TaskPriority enumerates urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// TaskStatus enumerates lifecycle states for tasks.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is a unit of follow-up work assigned to a user.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    TaskPriority
	Status      TaskStatus
	Progress    int
	DueDate     *time.Time
	AssignedTo  string
	CreatedBy   string
	IsShared    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VisibleTo reports whether the identity may read the task.
func (t *Task) VisibleTo(identity *RequestIdentity) bool {
	if identity.IsAdmin() {
		return true
	}
	return t.IsShared || t.AssignedTo == identity.ID || t.CreatedBy == identity.ID
}

// MutableBy reports whether the identity may change or delete the task.
func (t *Task) MutableBy(identity *RequestIdentity) bool {
	if identity.IsAdmin() {
		return true
	}
	return t.AssignedTo == identity.ID || t.CreatedBy == identity.ID
}
