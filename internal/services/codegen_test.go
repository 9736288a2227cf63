package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sketchcode/backend/internal/config"
)

func openAIConfigFor(serverURL string) config.OpenAIConfig {
	return config.OpenAIConfig{
		BaseURL:   serverURL,
		APIKey:    "test-api-key",
		Model:     "gpt-3.5-turbo",
		MaxTokens: 256,
		Timeout:   5 * time.Second,
	}
}

func completionResponse(content string) string {
	raw, _ := json.Marshal(content)
	return `{"choices":[{"message":{"role":"assistant","content":` + string(raw) + `}}]}`
}

func TestGenerateCode(t *testing.T) {
	var captured struct {
		path    string
		auth    string
		payload map[string]any
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.payload)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("  <html>generated</html>  ")))
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(openAIConfigFor(server.URL))

	code, err := gen.GenerateCode(context.Background(), "http://blobs.local/x/design.png", "html")
	if err != nil {
		t.Fatalf("failed generating code: %v", err)
	}
	if code != "<html>generated</html>" {
		t.Errorf("expected trimmed completion content, got %q", code)
	}

	if captured.path != "/chat/completions" {
		t.Errorf("expected /chat/completions, got %q", captured.path)
	}
	if captured.auth != "Bearer test-api-key" {
		t.Errorf("expected bearer auth header, got %q", captured.auth)
	}
	if captured.payload["model"] != "gpt-3.5-turbo" {
		t.Errorf("expected configured model, got %v", captured.payload["model"])
	}
	if captured.payload["max_tokens"] != float64(256) {
		t.Errorf("expected configured max_tokens, got %v", captured.payload["max_tokens"])
	}

	messages, _ := captured.payload["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected a single prompt message, got %v", captured.payload["messages"])
	}
	message, _ := messages[0].(map[string]any)
	content, _ := message["content"].(string)
	if !strings.Contains(content, "http://blobs.local/x/design.png") || !strings.Contains(content, "html") {
		t.Errorf("prompt should mention the design URL and code type, got %q", content)
	}
}

func TestGenerateCodeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(openAIConfigFor(server.URL))

	_, err := gen.GenerateCode(context.Background(), "http://blobs.local/x/design.png", "html")
	if err == nil {
		t.Fatal("expected an error for a non-2xx upstream response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected the upstream status in the error, got %v", err)
	}
}

func TestGenerateCodeEmptyChoices(t *testing.T) {
	responses := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`,
	}

	for _, body := range responses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))

		gen := NewOpenAIGenerator(openAIConfigFor(server.URL))
		if _, err := gen.GenerateCode(context.Background(), "http://blobs.local/x/design.png", "html"); err == nil {
			t.Errorf("expected an error for response %s", body)
		}
		server.Close()
	}
}

func TestGenerateCodeHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(openAIConfigFor(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := gen.GenerateCode(ctx, "http://blobs.local/x/design.png", "html"); err == nil {
		t.Fatal("expected an error when the context deadline passes")
	}
}
