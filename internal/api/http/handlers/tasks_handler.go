package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/senseirm/internal/api/dto"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/service"
)

// TasksHandler exposes task endpoints. Visibility rules live in the service.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(tasks *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// List handles GET /api/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	page, limit := queryPage(c)
	in := service.TaskListInput{
		ListInput: service.ListInput{Page: page, Limit: limit, Search: c.Query("search")},
		Status:    queryEnum[domain.TaskStatus](c, "status"),
		Priority:  queryEnum[domain.TaskPriority](c, "priority"),
	}
	if assignee := strings.TrimSpace(c.Query("assignedTo")); assignee != "" {
		in.AssignedTo = &assignee
	}
	result, err := h.tasks.List(c.UserContext(), identity, in)
	if err != nil {
		return err
	}
	return c.JSON(dto.TaskListResponse{
		Tasks:       dto.NewTaskResponses(result.Tasks),
		TotalPages:  result.TotalPages,
		CurrentPage: result.Page,
		TotalTasks:  result.Total,
	})
}

// Get handles GET /api/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "task")
	if err != nil {
		return err
	}
	task, err := h.tasks.Get(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTaskResponse(task))
}

// Create handles POST /api/tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.TaskRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	task, err := h.tasks.Create(c.UserContext(), identity, taskInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTaskResponse(task))
}

// Update handles PUT /api/tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "task")
	if err != nil {
		return err
	}
	var req dto.TaskRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	task, err := h.tasks.Update(c.UserContext(), identity, id, taskInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTaskResponse(task))
}

// UpdateProgress handles PATCH /api/tasks/:id/progress.
func (h *TasksHandler) UpdateProgress(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "task")
	if err != nil {
		return err
	}
	var req dto.TaskProgressRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	task, err := h.tasks.UpdateProgress(c.UserContext(), identity, id, *req.Progress, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTaskResponse(task))
}

// Delete handles DELETE /api/tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "task")
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.UserContext(), identity, id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "task deleted"})
}

func taskInput(req dto.TaskRequest) service.TaskInput {
	return service.TaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		Progress:     req.Progress,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		AssignedTo:   req.AssignedTo,
		IsShared:     req.IsShared,
	}
}
