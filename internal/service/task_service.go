package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/events"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// TaskService coordinates task workflows.
type TaskService struct {
	tasks  repository.TaskRepository
	users  repository.UserRepository
	events events.Dispatcher
	logger *zap.Logger
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	TaskRepo repository.TaskRepository
	UserRepo repository.UserRepository
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewTaskService builds the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{tasks: deps.TaskRepo, users: deps.UserRepo, events: deps.Events, logger: logger}
}

// TaskListInput filters the task list.
type TaskListInput struct {
	ListInput
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
	AssignedTo *string
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Tasks      []domain.Task
	Total      int64
	Page       int
	TotalPages int
}

// TaskInput carries create and update fields; nil leaves a field unchanged.
type TaskInput struct {
	Title        *string
	Description  *string
	Priority     *domain.TaskPriority
	Status       *domain.TaskStatus
	Progress     *int
	DueDate      *time.Time
	ClearDueDate bool
	AssignedTo   *string
	IsShared     *bool
}

// List returns the tasks visible to the actor.
func (s *TaskService) List(ctx context.Context, actor *domain.RequestIdentity, in TaskListInput) (*TaskPage, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *in.Priority})
	}
	filter := repository.TaskFilter{
		Status:     in.Status,
		Priority:   in.Priority,
		AssignedTo: in.AssignedTo,
		Page:       in.repoPage(),
	}
	if !actor.IsAdmin() {
		id := actorID(actor)
		filter.VisibleTo = &id
	}
	page, limit := in.normalize()
	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return &TaskPage{Tasks: tasks, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Get returns a task the actor may see. Tasks outside the actor's view are
// reported as missing.
func (s *TaskService) Get(ctx context.Context, actor *domain.RequestIdentity, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !task.VisibleTo(actor)) {
		return nil, apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return task, err
}

// Create adds a task. The assignee defaults to the actor.
func (s *TaskService) Create(ctx context.Context, actor *domain.RequestIdentity, in TaskInput) (*domain.Task, error) {
	task := &domain.Task{
		Priority:   domain.TaskPriorityMedium,
		Status:     domain.TaskStatusPending,
		AssignedTo: actorID(actor),
		CreatedBy:  actorID(actor),
	}
	if err := applyTaskInput(task, in); err != nil {
		return nil, err
	}
	if task.Title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if err := s.checkAssignee(ctx, task.AssignedTo); err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.notifyAssignment(ctx, actor, task)
	return task, nil
}

// Update edits a task the actor may change.
func (s *TaskService) Update(ctx context.Context, actor *domain.RequestIdentity, id string, in TaskInput) (*domain.Task, error) {
	task, err := s.mutable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	previousAssignee := task.AssignedTo
	if err := applyTaskInput(task, in); err != nil {
		return nil, err
	}
	if task.Title == "" {
		return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
	}
	if task.AssignedTo != previousAssignee {
		if err := s.checkAssignee(ctx, task.AssignedTo); err != nil {
			return nil, err
		}
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	if task.AssignedTo != previousAssignee {
		s.notifyAssignment(ctx, actor, task)
	}
	return task, nil
}

// UpdateProgress sets progress and derives status when none is given: 100 means
// completed and any progress on a pending task means in progress.
func (s *TaskService) UpdateProgress(ctx context.Context, actor *domain.RequestIdentity, id string, progress int, status *domain.TaskStatus) (*domain.Task, error) {
	if progress < 0 || progress > 100 {
		return nil, apperrors.NewValidationError("progress must be between 0 and 100", map[string]any{"progress": progress})
	}
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *status})
	}
	task, err := s.mutable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	task.Progress = progress
	switch {
	case status != nil:
		task.Status = *status
	case progress == 100:
		task.Status = domain.TaskStatusCompleted
	case progress > 0 && task.Status == domain.TaskStatusPending:
		task.Status = domain.TaskStatusInProgress
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task the actor may change.
func (s *TaskService) Delete(ctx context.Context, actor *domain.RequestIdentity, id string) error {
	if _, err := s.mutable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("task", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

func (s *TaskService) mutable(ctx context.Context, actor *domain.RequestIdentity, id string) (*domain.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !task.MutableBy(actor) {
		return nil, apperrors.NewForbidden("only the creator, the assignee or an administrator can change this task")
	}
	return task, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !user.IsActive) {
		return apperrors.NewValidationError("assignee not found or inactive", map[string]any{"assignedTo": userID})
	}
	return err
}

func (s *TaskService) notifyAssignment(ctx context.Context, actor *domain.RequestIdentity, task *domain.Task) {
	if s.events == nil || task.AssignedTo == actorID(actor) {
		return
	}
	event := events.New(events.EventTaskAssigned, task.ID, actorID(actor), events.TaskAssignedPayload{
		Title:      task.Title,
		AssigneeID: task.AssignedTo,
		Priority:   task.Priority,
		DueDate:    task.DueDate,
	})
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func applyTaskInput(task *domain.Task, in TaskInput) error {
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return apperrors.NewValidationError("invalid priority", map[string]any{"priority": *in.Priority})
		}
		task.Priority = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
		}
		task.Status = *in.Status
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return apperrors.NewValidationError("progress must be between 0 and 100", map[string]any{"progress": *in.Progress})
		}
		task.Progress = *in.Progress
	}
	switch {
	case in.DueDate != nil:
		due := in.DueDate.UTC()
		task.DueDate = &due
	case in.ClearDueDate:
		task.DueDate = nil
	}
	if in.AssignedTo != nil && *in.AssignedTo != "" {
		task.AssignedTo = *in.AssignedTo
	}
	if in.IsShared != nil {
		task.IsShared = *in.IsShared
	}
	return nil
}
