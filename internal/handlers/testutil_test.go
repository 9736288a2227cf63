package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/services"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/tokens"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	store  *stubObjectStore
	gen    *stubCodeGenerator
	issuer *tokens.Issuer
}

var testSetupOnce sync.Once

func testJWTConfig() config.JWTConfig {
	cfg := config.Load().JWT
	cfg.AccessSecret = "test-access-secret"
	cfg.RefreshSecret = "test-refresh-secret"
	return cfg
}

// stubObjectStore records uploads and serves public URLs without a
// running MinIO.
type stubObjectStore struct {
	mu      sync.Mutex
	fail    bool
	uploads []string
}

func (s *stubObjectStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("stub upload failure")
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, objectName)
	return "http://blobs.local/sketchcode/" + objectName, nil
}

func (s *stubObjectStore) Delete(ctx context.Context, objectName string) error { return nil }

func (s *stubObjectStore) EnsureBucket(ctx context.Context) error { return nil }

type stubCodeGenerator struct {
	fail   bool
	output string
}

func (g *stubCodeGenerator) GenerateCode(ctx context.Context, imageURL, codeType string) (string, error) {
	if g.fail {
		return "", errors.New("stub generation failure")
	}
	if g.output != "" {
		return g.output, nil
	}
	return fmt.Sprintf("<!-- %s for %s -->", codeType, imageURL), nil
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Design{},
		&models.Code{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	jwtCfg := testJWTConfig()
	issuer := tokens.NewIssuer(jwtCfg)
	store := &stubObjectStore{}
	gen := &stubCodeGenerator{}

	authService := services.NewAuthService(db, issuer, store, config.UploadConfig{})

	authHandler := NewAuthHandler(db, authService, jwtCfg)
	usersHandler := NewUsersHandler(db, store)
	designsHandler := NewDesignsHandler(db, store)
	codesHandler := NewCodesHandler(db, store, gen)
	dashboardHandler := NewDashboardHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db, issuer)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	userRoutes := api.Group("/users")
	userRoutes.Post("/register", authHandler.Register)
	userRoutes.Post("/login", authHandler.Login)
	userRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	userRoutes.Post("/refresh-token", authHandler.Refresh)
	userRoutes.Patch("/change-password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	userRoutes.Get("/me", authMiddleware.RequireAuth, usersHandler.Me)
	userRoutes.Patch("/update", authMiddleware.RequireAuth, usersHandler.Update)
	userRoutes.Delete("/delete", authMiddleware.RequireAuth, usersHandler.Delete)
	userRoutes.Patch("/avatar", authMiddleware.RequireAuth, usersHandler.UpdateAvatar)
	userRoutes.Patch("/cover-image", authMiddleware.RequireAuth, usersHandler.UpdateCoverImage)
	userRoutes.Get("/image-history", authMiddleware.RequireAuth, usersHandler.ImageHistory)

	designRoutes := api.Group("/designs", authMiddleware.RequireAuth)
	designRoutes.Post("/", designsHandler.Create)
	designRoutes.Get("/", designsHandler.List)
	designRoutes.Get("/:id", designsHandler.Get)
	designRoutes.Patch("/:id", designsHandler.Update)
	designRoutes.Delete("/:id", designsHandler.Delete)

	codeRoutes := api.Group("/codes", authMiddleware.RequireAuth)
	codeRoutes.Post("/", codesHandler.Create)
	codeRoutes.Get("/", codesHandler.List)
	codeRoutes.Get("/:id", codesHandler.Get)
	codeRoutes.Patch("/:id", codesHandler.Update)
	codeRoutes.Delete("/:id", codesHandler.Delete)

	api.Get("/dashboard/:id", authMiddleware.RequireAuth, dashboardHandler.Get)

	return &testEnv{app: app, db: db, store: store, gen: gen, issuer: issuer}
}

func createTestUser(t *testing.T, env *testEnv, username, email, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Test User",
		PasswordHash: hash,
		AvatarURL:    "http://blobs.local/sketchcode/seed/avatar.png",
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := env.issuer.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed generating access token: %v", err)
	}

	return user, token
}

func mustParseUUID(t *testing.T, value string) uuid.UUID {
	t.Helper()

	id, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("failed parsing uuid %q: %v", value, err)
	}
	return id
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return body
}

func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed marshaling request body: %v", err)
	}
	return bytes.NewReader(data)
}

type formFile struct {
	field    string
	filename string
	content  string
}

// multipartBody builds a multipart form with text fields and files,
// returning the body and the Content-Type header to send with it.
func multipartBody(t *testing.T, fields map[string]string, files []formFile) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field %q: %v", key, err)
		}
	}

	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			t.Fatalf("failed creating form file %q: %v", file.field, err)
		}
		if _, err := part.Write([]byte(file.content)); err != nil {
			t.Fatalf("failed writing form file %q: %v", file.field, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func assertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int) map[string]any {
	t.Helper()

	body := decodeJSONMap(t, resp)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected status code %d, got %d (body: %v)", expectedStatus, resp.StatusCode, body)
	}

	success, ok := body["success"].(bool)
	if !ok || success {
		t.Fatalf("expected success=false, got %v", body["success"])
	}

	statusCode, ok := body["statusCode"].(float64)
	if !ok || int(statusCode) != expectedStatus {
		t.Fatalf("expected statusCode field %d, got %v", expectedStatus, body["statusCode"])
	}

	if _, ok := body["message"].(string); !ok {
		t.Fatalf("expected message field to be string, got %T", body["message"])
	}

	return body
}

func successData(t *testing.T, resp *http.Response, expectedStatus int) map[string]any {
	t.Helper()

	body := decodeJSONMap(t, resp)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected status code %d, got %d (body: %v)", expectedStatus, resp.StatusCode, body)
	}

	success, ok := body["success"].(bool)
	if !ok || !success {
		t.Fatalf("expected success=true, got %v", body["success"])
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", body["data"])
	}
	return data
}
