package dto

import (
	"time"

	"github.com/spec-kit/senseirm/internal/domain"
)

// TaskRequest is used for both create and update. Title is required on create.
type TaskRequest struct {
	Title        *string              `json:"title" validate:"omitempty,max=255"`
	Description  *string              `json:"description"`
	Priority     *domain.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status       *domain.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Progress     *int                 `json:"progress" validate:"omitempty,min=0,max=100"`
	DueDate      *time.Time           `json:"dueDate"`
	ClearDueDate bool                 `json:"clearDueDate"`
	AssignedTo   *string              `json:"assignedTo" validate:"omitempty,uuid"`
	IsShared     *bool                `json:"isShared"`
}

// TaskProgressRequest payload for PATCH /api/tasks/:id/progress.
type TaskProgressRequest struct {
	Progress *int               `json:"progress" validate:"required,min=0,max=100"`
	Status   *domain.TaskStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
}

// TaskResponse is the API view of a task.
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    domain.TaskPriority `json:"priority"`
	Status      domain.TaskStatus   `json:"status"`
	Progress    int                 `json:"progress"`
	DueDate     *time.Time          `json:"dueDate"`
	AssignedTo  string              `json:"assignedTo"`
	CreatedBy   string              `json:"createdBy"`
	IsShared    bool                `json:"isShared"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Tasks       []TaskResponse `json:"tasks"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	TotalTasks  int64          `json:"totalTasks"`
}

// NewTaskResponse maps a domain task.
func NewTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Progress:    t.Progress,
		DueDate:     t.DueDate,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		IsShared:    t.IsShared,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTaskResponses maps a slice of tasks.
func NewTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskResponse(&tasks[i]))
	}
	return out
}
