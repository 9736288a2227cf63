package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/pkg/logger"
)

// CodeGenerator converts an uploaded design image (by public URL) and a
// desired output language into generated source text.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, imageURL, codeType string) (string, error)
}

// OpenAIGenerator calls an OpenAI-compatible chat-completions endpoint.
// The HTTP client timeout bounds the call; a hung upstream fails the
// request instead of hanging it.
type OpenAIGenerator struct {
	cfg        config.OpenAIConfig
	HTTPClient *http.Client
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) *OpenAIGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIGenerator{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) GenerateCode(ctx context.Context, imageURL, codeType string) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze this design: %s and generate %s code for a responsive web page. Make sure to use best practices for modern web development.",
		imageURL, codeType,
	)

	payload, err := json.Marshal(chatCompletionRequest{
		Model:     g.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		logger.Error("codegen_request_failed", err, map[string]interface{}{
			"code_type": codeType,
		})
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("codegen_bad_status", nil, map[string]interface{}{
			"status_code": resp.StatusCode,
			"body":        string(body),
		})
		return "", fmt.Errorf("code generation failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("code generation returned no choices")
	}

	generated := strings.TrimSpace(completion.Choices[0].Message.Content)
	if generated == "" {
		return "", fmt.Errorf("code generation returned empty content")
	}

	logger.Info("codegen_success", map[string]interface{}{
		"code_type": codeType,
		"length":    len(generated),
	})

	return generated, nil
}
