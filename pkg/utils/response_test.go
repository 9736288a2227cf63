package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func performJSON(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed decoding response %q: %v", raw, err)
	}
	return resp.StatusCode, body
}

func TestSuccessEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", func(c *fiber.Ctx) error {
		return Success(c, fiber.StatusCreated, fiber.Map{"name": "alice"})
	})

	status, body := performJSON(t, app, "/ok")
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["name"] != "alice" {
		t.Errorf("expected payload under data, got %v", body["data"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusConflict, "username already taken")
	})

	status, body := performJSON(t, app, "/boom")
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
	if body["statusCode"] != float64(http.StatusConflict) {
		t.Errorf("expected statusCode mirrored in the body, got %v", body["statusCode"])
	}
	if body["message"] != "username already taken" {
		t.Errorf("expected message in the body, got %v", body["message"])
	}
}

func TestPaginatedEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/list", func(c *fiber.Ctx) error {
		return Paginated(c, []string{"a", "b", "c"}, 2, 3, 7)
	})

	status, body := performJSON(t, app, "/list")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	entries, ok := body["data"].([]any)
	if !ok || len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %v", body["data"])
	}

	pagination, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("expected pagination object, got %T", body["pagination"])
	}
	if pagination["page"] != float64(2) || pagination["limit"] != float64(3) {
		t.Errorf("unexpected page/limit: %v", pagination)
	}
	if pagination["total"] != float64(7) {
		t.Errorf("expected total 7, got %v", pagination["total"])
	}
	if pagination["totalPages"] != float64(3) {
		t.Errorf("expected totalPages 3 for 7 items of 3, got %v", pagination["totalPages"])
	}
}
