package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// ClientService manages client records.
type ClientService struct {
	clients repository.ClientRepository
	logger  *zap.Logger
}

// NewClientService builds the service.
func NewClientService(clients repository.ClientRepository, logger *zap.Logger) *ClientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{clients: clients, logger: logger}
}

// ClientListInput filters the client list.
type ClientListInput struct {
	ListInput
	Status *domain.ClientStatus
}

// ClientPage is one page of clients.
type ClientPage struct {
	Clients    []domain.Client
	Total      int64
	Page       int
	TotalPages int
}

// ClientInput carries create and update fields. Nil pointers leave values unchanged
// on update.
type ClientInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Status  *domain.ClientStatus
	Notes   *string
}

// List returns a page of clients.
func (s *ClientService) List(ctx context.Context, in ClientListInput) (*ClientPage, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
	}
	page, limit := in.normalize()
	clients, total, err := s.clients.List(ctx, repository.ClientFilter{
		Search: in.Search,
		Status: in.Status,
		Page:   in.repoPage(),
	})
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return &ClientPage{Clients: clients, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Get returns one client.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("client", map[string]any{"id": id})
	}
	return client, err
}

// Create adds a client owned by the actor.
func (s *ClientService) Create(ctx context.Context, actor *domain.RequestIdentity, in ClientInput) (*domain.Client, error) {
	client := &domain.Client{Status: domain.ClientStatusActive, CreatedBy: actorID(actor)}
	if err := applyClientInput(client, in); err != nil {
		return nil, err
	}
	if client.Name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, mapWriteErr(err, "client already exists")
	}
	s.logger.Info("client created", zap.String("actor_id", client.CreatedBy), zap.String("client_id", client.ID))
	return client, nil
}

// Update edits a client.
func (s *ClientService) Update(ctx context.Context, id string, in ClientInput) (*domain.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyClientInput(client, in); err != nil {
		return nil, err
	}
	if client.Name == "" {
		return nil, apperrors.NewValidationError("name cannot be empty", map[string]any{"field": "name"})
	}
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, mapWriteErr(err, "client already exists")
	}
	return client, nil
}

// Delete removes a client.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if err := s.clients.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("client", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

// Stats returns counts per status.
func (s *ClientService) Stats(ctx context.Context) (domain.ClientStats, error) {
	return s.clients.Stats(ctx)
}

func applyClientInput(client *domain.Client, in ClientInput) error {
	if in.Name != nil {
		client.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		client.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		client.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Company != nil {
		client.Company = strings.TrimSpace(*in.Company)
	}
	if in.Notes != nil {
		client.Notes = *in.Notes
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
		}
		client.Status = *in.Status
	}
	return nil
}
