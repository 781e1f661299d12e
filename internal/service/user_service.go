package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/config"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

const emailInUse = "email already in use"

// UserService implements user administration and profile edits.
type UserService struct {
	users             repository.UserRepository
	bcryptCost        int
	minPasswordLength int
	logger            *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, users repository.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, bcryptCost: cfg.BcryptCost, minPasswordLength: cfg.MinPasswordLength, logger: logger}
}

// ListInput carries pagination shared by list endpoints. Page is 1-based.
type ListInput struct {
	Page   int
	Limit  int
	Search string
}

func (in ListInput) normalize() (page, limit int) {
	page, limit = in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func (in ListInput) repoPage() repository.Page {
	page, limit := in.normalize()
	return repository.Page{Limit: limit, Offset: (page - 1) * limit}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// UserPage is one page of users.
type UserPage struct {
	Users      []domain.RequestIdentity
	Total      int64
	Page       int
	TotalPages int
}

// UserCreateInput describes an admin-created account.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserUpdateInput holds optional admin edits.
type UserUpdateInput struct {
	Name     *string
	Email    *string
	Role     *domain.Role
	IsActive *bool
}

// ProfileUpdateInput holds optional self-service edits.
type ProfileUpdateInput struct {
	Name  *string
	Email *string
}

// List returns a page of users ordered by creation time, newest first.
func (s *UserService) List(ctx context.Context, in ListInput) (*UserPage, error) {
	page, limit := in.normalize()
	users, total, err := s.users.List(ctx, repository.UserFilter{Search: in.Search, Page: in.repoPage()})
	if err != nil {
		return nil, err
	}
	safe := make([]domain.RequestIdentity, 0, len(users))
	for i := range users {
		safe = append(safe, users[i].Safe())
	}
	return &UserPage{Users: safe, Total: total, Page: page, TotalPages: totalPages(total, limit)}, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return user, err
}

// Create adds a user. Role defaults to user.
func (s *UserService) Create(ctx context.Context, actor *domain.RequestIdentity, in UserCreateInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if strings.TrimSpace(in.Name) == "" || email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if err := passwordPolicyErr(auth.ValidatePassword(in.Password, s.minPasswordLength), s.minPasswordLength); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapWriteErr(err, emailInUse)
	}
	s.logger.Info("user created", zap.String("actor_id", actorID(actor)), zap.String("user_id", user.ID))
	return user, nil
}

// Update applies admin edits to a user.
func (s *UserService) Update(ctx context.Context, actor *domain.RequestIdentity, id string, in UserUpdateInput) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(ctx, user, in.Name, in.Email); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *in.Role})
		}
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapWriteErr(err, emailInUse)
	}
	s.logger.Info("user updated", zap.String("actor_id", actorID(actor)), zap.String("user_id", user.ID))
	return user, nil
}

// UpdateProfile lets a user edit their own name and email.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdateInput) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(ctx, user, in.Name, in.Email); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapWriteErr(err, emailInUse)
	}
	return user, nil
}

// Delete removes a user. Administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *domain.RequestIdentity, id string) error {
	if actor != nil && actor.ID == id {
		return apperrors.NewValidationError("cannot delete your own account", nil)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return err
	}
	s.logger.Info("user deleted", zap.String("actor_id", actorID(actor)), zap.String("user_id", id))
	return nil
}

func (s *UserService) applyProfile(ctx context.Context, user *domain.User, name, email *string) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return apperrors.NewValidationError("name cannot be empty", nil)
		}
		user.Name = trimmed
	}
	if email != nil {
		normalized := normalizeEmail(*email)
		if normalized == "" {
			return apperrors.NewValidationError("email cannot be empty", nil)
		}
		if normalized != normalizeEmail(user.Email) {
			if err := s.ensureEmailFree(ctx, normalized, user.ID); err != nil {
				return err
			}
		}
		user.Email = normalized
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return err
	case existing.ID != exceptID:
		return apperrors.NewConflict(emailInUse, map[string]any{"email": email})
	}
	return nil
}

func actorID(actor *domain.RequestIdentity) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
