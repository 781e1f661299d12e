package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/senseirm/internal/api/http/handlers"
	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/config"
	"github.com/spec-kit/senseirm/internal/domain"
	"github.com/spec-kit/senseirm/internal/observability"
	"github.com/spec-kit/senseirm/internal/repository"
	"github.com/spec-kit/senseirm/internal/service"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

const testPassword = "secret123"

type userStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (s *userStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.NewString()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *userStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *userStore) List(_ context.Context, _ repository.UserFilter) ([]domain.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *userStore) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *userStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *userStore) TouchLastLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.users[id].LastLogin = &now
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	admin  *domain.User
	user   *domain.User
}

func newTestServer(t *testing.T, development bool) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &domain.User{ID: uuid.NewString(), Name: "Admin", Email: "admin@senseirm.com", PasswordHash: string(hash), Role: domain.RoleAdmin, IsActive: true}
	user := &domain.User{ID: uuid.NewString(), Name: "Ana", Email: "ana@senseirm.com", PasswordHash: string(hash), Role: domain.RoleUser, IsActive: true}
	store := &userStore{users: map[string]*domain.User{admin.ID: admin, user.ID: user}}

	authCfg := config.AuthConfig{TokenExpiresIn: "24h", BcryptCost: bcrypt.MinCost, MinPasswordLength: 6}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil, development)})
	RegisterMiddlewares(app, MiddlewareConfig{Metrics: metrics, Development: development, Timeout: time.Second})
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("database exploded") })
	app.Get("/panic", func(*fiber.Ctx) error { panic("unexpected") })

	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("senseirm", "test", "test", map[string]handlers.Pinger{"postgres": failingPinger{}}),
		Auth: handlers.NewAuthHandler(service.NewAuthService(authCfg, service.AuthDependencies{
			UserRepo: store,
			Tokens:   tokens,
			Metrics:  metrics,
		})),
		Users:          handlers.NewUsersHandler(service.NewUserService(authCfg, store, nil)),
		Clients:        handlers.NewClientsHandler(nil),
		Campaigns:      handlers.NewCampaignsHandler(nil),
		Tasks:          handlers.NewTasksHandler(nil),
		System:         handlers.NewSystemHandler(nil),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store, nil),
		Gatherer:       registry,
	})
	return &testServer{app: app, tokens: tokens, admin: admin, user: user}
}

func (s *testServer) bearer(t *testing.T, u *domain.User) string {
	t.Helper()
	token, _, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path, authorization, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	out["_raw"] = string(raw)
	return resp, out
}

func errorField(body map[string]any, key string) any {
	envelope, _ := body["error"].(map[string]any)
	return envelope[key]
}

func TestLoginThenVerify(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ANA@senseirm.com","password":"`+testPassword+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, body["_raw"])
	}
	token, _ := body["token"].(string)
	if token == "" || body["expiresIn"] != "24h" {
		t.Fatalf("unexpected login body %v", body)
	}
	if strings.Contains(body["_raw"].(string), "PasswordHash") {
		t.Fatalf("login leaked password hash")
	}

	resp, body = srv.do(t, http.MethodGet, "/api/auth/verify", "Bearer "+token, "")
	if resp.StatusCode != http.StatusOK || body["valid"] != true {
		t.Fatalf("verify: %d %v", resp.StatusCode, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["id"] != srv.user.ID {
		t.Fatalf("verify returned %v", user)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ana@senseirm.com","password":"nope"}`)
	if resp.StatusCode != http.StatusUnauthorized || errorField(body, "code") != apperrors.CodeInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %d %v", resp.StatusCode, body)
	}
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ana@senseirm.com","password":"x","role":"admin"}`)
	if resp.StatusCode != http.StatusBadRequest || errorField(body, "code") != apperrors.CodeValidation {
		t.Fatalf("expected validation failure, got %d %v", resp.StatusCode, body)
	}
}

func TestLoginValidatesEmail(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"not-an-email","password":"x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if msg, _ := errorField(body, "message").(string); msg != "email must be a valid email" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodGet, "/api/users/profile", "", "")
	if resp.StatusCode != http.StatusUnauthorized || errorField(body, "code") != apperrors.CodeMissingCredential {
		t.Fatalf("expected missing credential, got %d %v", resp.StatusCode, body)
	}
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := srv.do(t, http.MethodGet, "/api/users", srv.bearer(t, srv.user), "")
	if resp.StatusCode != http.StatusForbidden || errorField(body, "code") != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden for user role, got %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/users?page=1&limit=10", srv.bearer(t, srv.admin), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: %d %v", resp.StatusCode, body["_raw"])
	}
	if body["totalUsers"] != float64(2) || body["currentPage"] != float64(1) || body["totalPages"] != float64(1) {
		t.Fatalf("unexpected page %v", body)
	}
}

func TestProfileIsNotShadowedByIDRoute(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodGet, "/api/users/profile", srv.bearer(t, srv.user), "")
	if resp.StatusCode != http.StatusOK || body["id"] != srv.user.ID {
		t.Fatalf("profile: %d %v", resp.StatusCode, body)
	}
}

func TestMalformedIDIsNotFound(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodGet, "/api/users/not-a-uuid", srv.bearer(t, srv.admin), "")
	if resp.StatusCode != http.StatusNotFound || errorField(body, "code") != apperrors.CodeNotFound {
		t.Fatalf("expected 404, got %d %v", resp.StatusCode, body)
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	srv := newTestServer(t, false)
	resp, _ := srv.do(t, http.MethodDelete, "/api/users/"+srv.admin.ID, srv.bearer(t, srv.admin), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodGet, "/api/nope", "", "")
	if resp.StatusCode != http.StatusNotFound || errorField(body, "message") != "route not found" {
		t.Fatalf("expected route not found, got %d %v", resp.StatusCode, body)
	}
}

func TestInternalErrorCauseOnlyInDevelopment(t *testing.T) {
	prod := newTestServer(t, false)
	resp, body := prod.do(t, http.MethodGet, "/boom", "", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if errorField(body, "details") != nil {
		t.Fatalf("production leaked details: %v", body)
	}

	dev := newTestServer(t, true)
	_, body = dev.do(t, http.MethodGet, "/boom", "", "")
	details, _ := errorField(body, "details").(map[string]any)
	if details["cause"] != "database exploded" {
		t.Fatalf("expected cause in development, got %v", body)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t, false)
	resp, body := srv.do(t, http.MethodGet, "/panic", "", "")
	if resp.StatusCode != http.StatusInternalServerError || errorField(body, "code") != apperrors.CodeInternal {
		t.Fatalf("expected internal error, got %d %v", resp.StatusCode, body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, false)

	resp, body := srv.do(t, http.MethodGet, "/api/health", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "OK" || body["environment"] != "test" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodGet, "/health/ready", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	details, _ := errorField(body, "details").(map[string]any)
	if details["postgres"] != "connection refused" {
		t.Fatalf("unexpected readiness details %v", body)
	}
}

func TestMetricsExposeRequests(t *testing.T) {
	srv := newTestServer(t, false)
	srv.do(t, http.MethodGet, "/api/health", "", "")

	_, body := srv.do(t, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(body["_raw"].(string), "crm_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestMetricsSurviveErrorsOnDistinctPaths(t *testing.T) {
	srv := newTestServer(t, false)
	admin := srv.bearer(t, srv.admin)
	for _, path := range []string{
		"/api/users/11111111-1111-1111-1111-111111111111",
		"/api/users/22222222-2222-2222-2222-222222222222",
		"/nope/first",
		"/nope/second",
	} {
		resp, _ := srv.do(t, http.MethodGet, path, admin, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	resp, body := srv.do(t, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d %v", resp.StatusCode, body["_raw"])
	}
	raw := body["_raw"].(string)
	if !strings.Contains(raw, `route="/api/users/:id"`) || !strings.Contains(raw, `route="unmatched"`) {
		t.Fatalf("expected pattern and unmatched route labels:\n%s", raw)
	}
	if strings.Contains(raw, "/nope/") || strings.Contains(raw, "11111111-") {
		t.Fatalf("raw request paths leaked into labels:\n%s", raw)
	}
}
