package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/senseirm/internal/api/dto"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/service"
)

// ClientsHandler exposes client endpoints.
type ClientsHandler struct {
	clients *service.ClientService
}

// NewClientsHandler constructs handler.
func NewClientsHandler(clients *service.ClientService) *ClientsHandler {
	return &ClientsHandler{clients: clients}
}

// List handles GET /api/clients.
func (h *ClientsHandler) List(c *fiber.Ctx) error {
	page, limit := queryPage(c)
	result, err := h.clients.List(c.UserContext(), service.ClientListInput{
		ListInput: service.ListInput{Page: page, Limit: limit, Search: c.Query("search")},
		Status:    queryEnum[domain.ClientStatus](c, "status"),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.ClientListResponse{
		Clients:      dto.NewClientResponses(result.Clients),
		TotalPages:   result.TotalPages,
		CurrentPage:  result.Page,
		TotalClients: result.Total,
	})
}

// Stats handles GET /api/clients/stats.
func (h *ClientsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.clients.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// Get handles GET /api/clients/:id.
func (h *ClientsHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "client")
	if err != nil {
		return err
	}
	client, err := h.clients.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewClientResponse(client))
}

// Create handles POST /api/clients.
func (h *ClientsHandler) Create(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ClientRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	client, err := h.clients.Create(c.UserContext(), identity, clientInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewClientResponse(client))
}

// Update handles PUT /api/clients/:id.
func (h *ClientsHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "client")
	if err != nil {
		return err
	}
	var req dto.ClientRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	client, err := h.clients.Update(c.UserContext(), id, clientInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewClientResponse(client))
}

// Delete handles DELETE /api/clients/:id.
func (h *ClientsHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "client")
	if err != nil {
		return err
	}
	if err := h.clients.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "client deleted"})
}

func clientInput(req dto.ClientRequest) service.ClientInput {
	return service.ClientInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Status:  req.Status,
		Notes:   req.Notes,
	}
}
