// Package ai contains a minimal client for the Gemini generateContent API
// plus helpers for the structured (JSON) answers some prompts request.
// Callers treat empty or malformed output as a recoverable failure: the
// fixed Fallback string is the bot's reply of last resort, never an error
// surfaced to chat.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/backend/telemetry"
)

// Fallback is the friendly reply used whenever the AI path fails.
const Fallback = "Hmm… I couldn't come up with a response!"

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
const defaultModel = "gemini-2.0-flash"

// Completer is the narrow interface the rest of the bot consumes; tests
// substitute a canned implementation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiClient calls the generateContent endpoint with an API key.
type GeminiClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiClient builds a client with the fixed 10s request timeout.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		APIKey:     apiKey,
		Model:      defaultModel,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *GeminiClient) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends one prompt and returns the concatenated candidate text.
// An empty candidate set is an error; the caller decides whether to fall
// back or drop the side task.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("ai api key not configured")
	}
	var reqBody generateRequest
	reqBody.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	telemetry.AICalls.Inc()
	start := time.Now()
	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.AIFailures.Inc()
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if telemetry.AIDuration != nil {
		telemetry.AIDuration.Observe(time.Since(start).Seconds())
	}
	if resp.StatusCode != http.StatusOK {
		telemetry.AIFailures.Inc()
		return "", fmt.Errorf("ai request: status %d", resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		telemetry.AIFailures.Inc()
		return "", fmt.Errorf("ai decode: %w", err)
	}
	var parts []string
	if len(body.Candidates) > 0 {
		for _, p := range body.Candidates[0].Content.Parts {
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		telemetry.AIFailures.Inc()
		return "", fmt.Errorf("ai response empty")
	}
	return text, nil
}

// CompleteOrFallback returns Fallback instead of an error, for paths where
// the user is waiting on a chat reply.
func CompleteOrFallback(ctx context.Context, c Completer, prompt string) string {
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("ai completion failed", slog.Any("err", err))
		return Fallback
	}
	return text
}
