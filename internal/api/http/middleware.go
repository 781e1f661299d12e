package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/observability"
	"github.com/spec-kit/senseirm/internal/ratelimit"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// MiddlewareConfig configures the global middleware chain.
type MiddlewareConfig struct {
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Limiter     *ratelimit.Limiter
	FrontendURL string
	Timeout     time.Duration
	Development bool
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
// The request logger is outermost so it observes the rendered status.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app.Use(observability.RequestLogger(logger, cfg.Metrics, requestUserID))
	app.Use(errorHandlingMiddleware(logger, cfg.Metrics, cfg.Development))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowCredentials: cfg.FrontendURL != "" && cfg.FrontendURL != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(ratelimit.Middleware(cfg.Limiter, logger))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

// ErrorHandler renders errors that escape the middleware chain, for fiber.Config.
func ErrorHandler(logger *zap.Logger, development bool) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, logger, nil, development, err)
	}
}

func requestUserID(c *fiber.Ctx) string {
	if identity, ok := auth.IdentityFromContext(c); ok {
		return identity.ID
	}
	return ""
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, development bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = writeError(c, logger, metrics, development, err)
			}
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, development bool, err error) error {
	domainErr := fromFiberError(err)
	route, method := observability.RouteLabel(c)
	if isRouteNotFound(err) {
		route = observability.UnmatchedRoute
	}
	metrics.RecordError(route, method, domainErr.Code)

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	details := map[string]any{}
	for k, v := range domainErr.Details {
		details[k] = v
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", utils.CopyString(c.Path())), zap.Error(domainErr))
		if development && domainErr.Err != nil {
			details["cause"] = domainErr.Err.Error()
		}
	}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

func isRouteNotFound(err error) bool {
	var fe *fiber.Error
	return errors.As(err, &fe) && fe.Code == fiber.StatusNotFound
}

// fromFiberError maps framework errors (unknown route, oversized body) onto the
// envelope codes.
func fromFiberError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return apperrors.ToDomainError(err)
	}
	switch {
	case fe.Code == fiber.StatusNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, "route not found", fe.Code, nil)
	case fe.Code == fiber.StatusTooManyRequests:
		return apperrors.NewDomainError(apperrors.CodeRateLimited, fe.Message, fe.Code, nil)
	case fe.Code >= fiber.StatusInternalServerError:
		return apperrors.NewDomainError(apperrors.CodeInternal, "internal server error", fe.Code, nil)
	default:
		return apperrors.NewDomainError(apperrors.CodeValidation, fe.Message, fe.Code, nil)
	}
}
