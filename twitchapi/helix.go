package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// HelixClient provides the Helix reads chat commands rely on.
type HelixClient struct {
	TokenSource oauth2.TokenSource
	ClientID    string
	BaseURL     string
	HTTPClient  *http.Client
}

// StreamInfo describes a live stream, nil when the channel is offline.
type StreamInfo struct {
	UserLogin string
	Title     string
	GameName  string
	StartedAt time.Time
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultHelixURL
}

func (hc *HelixClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	tok, err := hc.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("app token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helix %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/users", map[string]string{"login": login}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// GetStream returns the live stream for a login, or nil when offline.
func (hc *HelixClient) GetStream(ctx context.Context, login string) (*StreamInfo, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			UserLogin string `json:"user_login"`
			Title     string `json:"title"`
			GameName  string `json:"game_name"`
			StartedAt string `json:"started_at"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/streams", map[string]string{"user_login": login}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	d := body.Data[0]
	started, err := time.Parse(time.RFC3339, d.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", d.StartedAt, err)
	}
	return &StreamInfo{UserLogin: d.UserLogin, Title: d.Title, GameName: d.GameName, StartedAt: started}, nil
}

// FormatUptime renders the elapsed time since start as "3h 12m" (or "42m"
// inside the first hour).
func FormatUptime(started time.Time, now time.Time) string {
	d := now.Sub(started)
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
