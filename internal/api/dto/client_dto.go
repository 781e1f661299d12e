package dto

import (
	"time"

	"github.com/spec-kit/senseirm/internal/domain"
)

// ClientRequest is used for both create and update. Name is required on create.
type ClientRequest struct {
	Name    *string              `json:"name" validate:"omitempty,max=255"`
	Email   *string              `json:"email" validate:"omitempty,email"`
	Phone   *string              `json:"phone" validate:"omitempty,max=50"`
	Company *string              `json:"company" validate:"omitempty,max=255"`
	Status  *domain.ClientStatus `json:"status" validate:"omitempty,oneof=active inactive prospect"`
	Notes   *string              `json:"notes"`
}

// ClientResponse is the API view of a client.
type ClientResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	Phone     string              `json:"phone"`
	Company   string              `json:"company"`
	Status    domain.ClientStatus `json:"status"`
	Notes     string              `json:"notes"`
	CreatedBy string              `json:"createdBy"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// ClientListResponse is one page of clients.
type ClientListResponse struct {
	Clients      []ClientResponse `json:"clients"`
	TotalPages   int              `json:"totalPages"`
	CurrentPage  int              `json:"currentPage"`
	TotalClients int64            `json:"totalClients"`
}

// NewClientResponse maps a domain client.
func NewClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Company:   c.Company,
		Status:    c.Status,
		Notes:     c.Notes,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewClientResponses maps a slice of clients.
func NewClientResponses(clients []domain.Client) []ClientResponse {
	out := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		out = append(out, NewClientResponse(&clients[i]))
	}
	return out
}
