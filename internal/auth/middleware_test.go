package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/senseirm/internal/domain"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

type stubIdentityStore struct {
	users map[string]*domain.User
	calls int
}

func (s *stubIdentityStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.calls++
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(mw ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code, "message": de.Message}})
		},
	})
	handlers := append([]fiber.Handler{}, mw...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return c.JSON(fiber.Map{"anonymous": true})
		}
		return c.JSON(fiber.Map{"anonymous": false, "id": identity.ID, "role": identity.Role})
	})
	app.Get("/", handlers...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, header string) (*http.Response, map[string]any, errorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var raw map[string]any
	var eb errorBody
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	buf, _ := json.Marshal(raw)
	_ = json.Unmarshal(buf, &eb)
	return resp, raw, eb
}

func fixture() (*TokenManager, *stubIdentityStore) {
	tm := NewTokenManager("secret", time.Hour)
	store := &stubIdentityStore{users: map[string]*domain.User{
		"admin-1": {ID: "admin-1", Email: "admin@senseirm.com", PasswordHash: "hash", Role: domain.RoleAdmin, IsActive: true},
		"user-1":  {ID: "user-1", Email: "user@senseirm.com", PasswordHash: "hash", Role: domain.RoleUser, IsActive: true},
	}}
	return tm, store
}

func bearer(t *testing.T, tm *TokenManager, u *domain.User) string {
	t.Helper()
	token, _, err := tm.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return "Bearer " + token
}

func TestHandle_MissingHeader(t *testing.T) {
	tm, store := fixture()
	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)

	resp, _, body := doRequest(t, app, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body.Error.Code != apperrors.CodeMissingCredential {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestHandle_NonBearerScheme(t *testing.T) {
	tm, store := fixture()
	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)

	resp, _, _ := doRequest(t, app, "Basic abc")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandle_InvalidToken(t *testing.T) {
	tm, store := fixture()
	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)

	resp, _, body := doRequest(t, app, "Bearer not-a-token")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if body.Error.Message != "invalid token" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be consulted for invalid tokens")
	}
}

func TestHandle_ExpiredToken(t *testing.T) {
	_, store := fixture()
	clock := &fakeClock{t: issuedAt}
	tm := NewTokenManager("secret", time.Minute).WithClock(clock.now)
	header := bearer(t, tm, store.users["user-1"])
	clock.t = issuedAt.Add(2 * time.Minute)

	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)
	resp, _, body := doRequest(t, app, header)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if body.Error.Message != "token expired" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Code != apperrors.CodeInvalidToken {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestHandle_ValidTokenAttachesIdentity(t *testing.T) {
	tm, store := fixture()
	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)

	resp, raw, _ := doRequest(t, app, bearer(t, tm, store.users["admin-1"]))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if raw["id"] != "admin-1" || raw["role"] != "admin" {
		t.Fatalf("unexpected identity: %+v", raw)
	}
}

func TestHandle_InactiveUserRejectedDespiteValidToken(t *testing.T) {
	tm, store := fixture()
	header := bearer(t, tm, store.users["user-1"])
	store.users["user-1"].IsActive = false

	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)
	resp, _, body := doRequest(t, app, header)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if body.Error.Code != apperrors.CodeUnauthorized {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestHandle_DeletedUserRejected(t *testing.T) {
	tm, store := fixture()
	header := bearer(t, tm, store.users["user-1"])
	delete(store.users, "user-1")

	app := newTestApp(NewAuthMiddleware(tm, store, nil).Handle)
	resp, _, _ := doRequest(t, app, header)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestHandle_RoleChangeAppliesOnNextRequest(t *testing.T) {
	tm, store := fixture()
	header := bearer(t, tm, store.users["admin-1"])
	mw := NewAuthMiddleware(tm, store, nil)
	app := newTestApp(mw.Handle, RequireAdmin())

	resp, _, _ := doRequest(t, app, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected admin to pass, got %d", resp.StatusCode)
	}

	store.users["admin-1"].Role = domain.RoleUser

	resp, _, body := doRequest(t, app, header)
	if resp.StatusCode != http.StatusForbidden || body.Error.Code != apperrors.CodeForbidden {
		t.Fatalf("expected demoted user to be forbidden, got %d %q", resp.StatusCode, body.Error.Code)
	}
	if store.calls != 2 {
		t.Fatalf("identity must be fetched on each request, got %d lookups", store.calls)
	}
}

func TestOptional_NeverRejects(t *testing.T) {
	tm, store := fixture()
	expiredClock := &fakeClock{t: issuedAt}
	expiredTM := NewTokenManager("secret", time.Minute).WithClock(expiredClock.now)
	expiredHeader := bearer(t, expiredTM, store.users["user-1"])

	inactive := &domain.User{ID: "ghost", Email: "g@x", Role: domain.RoleUser, IsActive: false}
	store.users["ghost"] = inactive
	inactiveHeader := bearer(t, tm, inactive)

	mw := NewAuthMiddleware(tm, store, nil)
	optionalApp := newTestApp(mw.Optional)
	strictApp := newTestApp(mw.Handle)

	for _, header := range []string{"", "Bearer garbage", "Token x", expiredHeader, inactiveHeader} {
		resp, raw, _ := doRequest(t, optionalApp, header)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("optional auth rejected %q with %d", header, resp.StatusCode)
		}
		if raw["anonymous"] != true {
			t.Fatalf("expected anonymous for %q, got %+v", header, raw)
		}

		strictResp, _, _ := doRequest(t, strictApp, header)
		if strictResp.StatusCode < 400 {
			t.Fatalf("strict auth accepted %q", header)
		}
	}
}

func TestOptional_AttachesIdentityWhenValid(t *testing.T) {
	tm, store := fixture()
	app := newTestApp(NewAuthMiddleware(tm, store, nil).Optional)

	resp, raw, _ := doRequest(t, app, bearer(t, tm, store.users["user-1"]))
	if resp.StatusCode != http.StatusOK || raw["anonymous"] != false || raw["id"] != "user-1" {
		t.Fatalf("unexpected result %d %+v", resp.StatusCode, raw)
	}
}

func TestRequireAdmin(t *testing.T) {
	tm, store := fixture()
	mw := NewAuthMiddleware(tm, store, nil)
	app := newTestApp(mw.Handle, RequireAdmin())

	resp, _, _ := doRequest(t, app, bearer(t, tm, store.users["admin-1"]))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin should pass, got %d", resp.StatusCode)
	}

	resp, _, body := doRequest(t, app, bearer(t, tm, store.users["user-1"]))
	if resp.StatusCode != http.StatusForbidden || body.Error.Code != apperrors.CodeForbidden {
		t.Fatalf("user should be forbidden, got %d %q", resp.StatusCode, body.Error.Code)
	}
}

func TestRequireAdmin_WithoutIdentity(t *testing.T) {
	app := newTestApp(RequireAdmin())
	resp, _, _ := doRequest(t, app, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
