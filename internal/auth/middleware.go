package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/domain"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

const identityKey = "auth_identity"

// IdentityLookup resolves stored identities by id.
type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads the caller identity.
//
// The identity is fetched from the store on every request and never cached, so a
// role change or deactivation applies to the next request even while previously
// issued tokens are still valid.
type AuthMiddleware struct {
	tokens *TokenManager
	users  IdentityLookup
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users IdentityLookup, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

// Optional attaches the identity when the request carries a usable token and
// otherwise continues anonymously. It never rejects.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	identity, err := m.resolve(c)
	if err != nil {
		// TODO: separate store outages from bad tokens here; both currently degrade to anonymous.
		if !apperrors.IsCode(err, apperrors.CodeMissingCredential) {
			m.logger.Debug("optional auth fell back to anonymous", zap.Error(err))
		}
		return c.Next()
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) (*domain.RequestIdentity, error) {
	tokenStr, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return nil, apperrors.NewMissingCredential()
	}

	claims, err := m.tokens.Verify(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, ErrSigningSecretUnset):
			return nil, apperrors.NewInternalError(err)
		case errors.Is(err, ErrTokenExpired):
			m.logger.Debug("rejected expired token", zap.String("path", utils.CopyString(c.Path())))
			return nil, apperrors.NewInvalidToken("token expired", err)
		default:
			m.logger.Debug("rejected invalid token", zap.String("path", utils.CopyString(c.Path())), zap.Error(err))
			return nil, apperrors.NewInvalidToken("invalid token", err)
		}
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not authorized or inactive")
		}
		return nil, apperrors.MapError(err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.NewUnauthorized("user not authorized or inactive")
	}

	identity := user.Safe()
	return &identity, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (*domain.RequestIdentity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.RequestIdentity)
	return identity, ok && identity != nil
}
