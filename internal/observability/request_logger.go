package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// UnmatchedRoute labels requests that reached no registered handler.
const UnmatchedRoute = "unmatched"

// RouteLabel returns the registered route pattern serving c. Request paths and
// methods point into fasthttp's reused buffers, so label values are always copies.
func RouteLabel(c *fiber.Ctx) (route, method string) {
	method = utils.CopyString(c.Method())
	r := c.Route()
	if r == nil || len(r.Handlers) == 0 || r.Path == "" || r.Path == "/" {
		return UnmatchedRoute, method
	}
	return utils.CopyString(r.Path), method
}

// RequestLogger logs one line per request and feeds request metrics. userID, when
// set, resolves the authenticated caller after the handler chain ran.
func RequestLogger(logger *zap.Logger, metrics *Metrics, userID func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route, method := RouteLabel(c)
		metrics.RecordRequest(route, method, status, latency)

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		}
		if userID != nil {
			if id := userID(c); id != "" {
				fields = append(fields, zap.String("user_id", id))
			}
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return err
	}
}
