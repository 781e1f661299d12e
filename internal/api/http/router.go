package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/senseirm/internal/api/http/handlers"
	"github.com/spec-kit/senseirm/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Clients        *handlers.ClientsHandler
	Campaigns      *handlers.CampaignsHandler
	Tasks          *handlers.TasksHandler
	System         *handlers.SystemHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer, when set, is exposed on /metrics.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Health)

	authn := cfg.AuthMiddleware.Handle
	admin := auth.RequireAdmin()

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/verify", authn, cfg.Auth.Verify)
	authGroup.Post("/change-password", authn, cfg.Auth.ChangePassword)
	authGroup.Post("/logout", authn, cfg.Auth.Logout)

	users := api.Group("/users", authn)
	users.Get("/profile", cfg.Users.Profile)
	users.Put("/profile", cfg.Users.UpdateProfile)
	users.Get("/", admin, cfg.Users.List)
	users.Post("/", admin, cfg.Users.Create)
	users.Get("/:id", admin, cfg.Users.Get)
	users.Put("/:id", admin, cfg.Users.Update)
	users.Delete("/:id", admin, cfg.Users.Delete)

	clients := api.Group("/clients", authn)
	clients.Get("/stats", cfg.Clients.Stats)
	clients.Get("/", cfg.Clients.List)
	clients.Post("/", cfg.Clients.Create)
	clients.Get("/:id", cfg.Clients.Get)
	clients.Put("/:id", cfg.Clients.Update)
	clients.Delete("/:id", admin, cfg.Clients.Delete)

	campaigns := api.Group("/campaigns", authn)
	campaigns.Get("/", cfg.Campaigns.List)
	campaigns.Post("/", cfg.Campaigns.Create)
	campaigns.Get("/:id", cfg.Campaigns.Get)
	campaigns.Put("/:id", cfg.Campaigns.Update)
	campaigns.Delete("/:id", admin, cfg.Campaigns.Delete)
	campaigns.Post("/:id/duplicate", cfg.Campaigns.Duplicate)
	campaigns.Post("/:id/cancel", cfg.Campaigns.Cancel)
	campaigns.Post("/:id/send", cfg.Campaigns.Send)

	tasks := api.Group("/tasks", authn)
	tasks.Get("/", cfg.Tasks.List)
	tasks.Post("/", cfg.Tasks.Create)
	tasks.Get("/:id", cfg.Tasks.Get)
	tasks.Put("/:id", cfg.Tasks.Update)
	tasks.Patch("/:id/progress", cfg.Tasks.UpdateProgress)
	tasks.Delete("/:id", cfg.Tasks.Delete)

	system := api.Group("/system")
	system.Get("/settings", cfg.AuthMiddleware.Optional, cfg.System.Settings)
	system.Put("/settings", authn, admin, cfg.System.UpdateSettings)
	system.Post("/upload-logo", authn, admin, cfg.System.UploadLogo)
	system.Get("/stats", authn, cfg.System.Stats)
}
