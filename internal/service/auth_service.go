package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/config"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/observability"
	"github.com/spec-kit/senseirm/internal/repository"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// AuthService coordinates login and credential changes.
type AuthService struct {
	users             repository.UserRepository
	tokens            *auth.TokenManager
	expiresIn         string
	bcryptCost        int
	minPasswordLength int
	logger            *zap.Logger
	metrics           *observability.Metrics
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User      domain.RequestIdentity
	Token     string
	ExpiresIn string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:             deps.UserRepo,
		tokens:            deps.Tokens,
		expiresIn:         cfg.TokenExpiresIn,
		bcryptCost:        cfg.BcryptCost,
		minPasswordLength: cfg.MinPasswordLength,
		logger:            logger,
		metrics:           deps.Metrics,
	}
}

// Login authenticates by email and password. Unknown, inactive and wrong
// password cases are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordLogin(false)
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, err
	}
	if !user.IsActive || auth.ComparePassword(user.PasswordHash, password) != nil {
		s.metrics.RecordLogin(false)
		s.logger.Info("login rejected", zap.String("user_id", user.ID))
		return nil, apperrors.NewInvalidCredentials()
	}

	token, meta, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("issue token: %w", err))
	}

	if auth.NeedsRehash(user.PasswordHash, s.bcryptCost) {
		s.rehash(ctx, user, password)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("unable to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		now := meta.IssuedAt
		user.LastLogin = &now
	}

	s.metrics.RecordLogin(true)
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	expiresIn := s.expiresIn
	if expiresIn == "" {
		expiresIn = s.tokens.TTL().String()
	}
	return &LoginResult{
		User:      user.Safe(),
		Token:     token,
		ExpiresIn: expiresIn,
		ExpiresAt: meta.ExpiresAt,
	}, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return apperrors.NewValidationError("current and new password are required", nil)
	}
	if err := s.checkPasswordLength(next); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return apperrors.NewDomainError(apperrors.CodeInvalidCredentials, "current password is incorrect", http.StatusUnauthorized, nil)
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// rehash upgrades a stored hash after the configured cost changed. Failures keep
// the old hash.
func (s *AuthService) rehash(ctx context.Context, user *domain.User, password string) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("password rehash not saved", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Logout is a no-op for stateless tokens; it only records the event.
func (s *AuthService) Logout(_ context.Context, identity *domain.RequestIdentity) {
	if identity == nil {
		return
	}
	s.logger.Info("user logged out", zap.String("user_id", identity.ID))
}

// EnsureAdmin creates the first administrator when none exists. It reports
// whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}
	if err := s.checkPasswordLength(password); err != nil {
		return false, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	admin := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: domain.RoleAdmin, IsActive: true}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, mapWriteErr(err, "email already in use")
	}
	s.logger.Info("seeded administrator", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
	return true, nil
}

func (s *AuthService) checkPasswordLength(password string) error {
	return passwordPolicyErr(auth.ValidatePassword(password, s.minPasswordLength), s.minPasswordLength)
}

func passwordPolicyErr(err error, minLength int) error {
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort):
		return apperrors.NewValidationError(
			fmt.Sprintf("password must be at least %d characters", minLength),
			map[string]any{"field": "password"},
		)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apperrors.NewValidationError("password must be at most 72 bytes", map[string]any{"field": "password"})
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapWriteErr(err error, conflictMessage string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(conflictMessage, nil)
	}
	return err
}
