// Package oauth keeps the bot's persisted Twitch tokens fresh. A background
// refresher wakes on a jittered interval, checks the oauth_tokens row for a
// provider, and refreshes when remaining lifetime falls inside the window.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/backend/db"
)

// RefreshFunc performs a provider-specific refresh and returns
// (access, refresh, expiry, scope).
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// Refresher periodically renews one provider's token row.
type Refresher struct {
	DB       *sql.DB
	Provider string
	Interval time.Duration
	Window   time.Duration
	Refresh  RefreshFunc

	// OnRotate is called after a successful refresh with the new access
	// token, so live consumers (the IRC connection) can adopt it on the
	// next reconnect. Optional.
	OnRotate func(access string)
}

// Start launches the refresh loop in a goroutine. It returns immediately;
// the loop exits when ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = 5 * time.Minute
	}
	if r.Window <= 0 {
		r.Window = 15 * time.Minute
	}
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	// Randomized initial delay spreads load when several instances start
	// together.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initial := time.Duration(rand.Int63n(int64(r.Interval / 2)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(initial):
	}
	for {
		jitterRange := int64(r.Interval / 5)
		//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
		jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
		sleep := r.Interval + jitter
		if sleep < r.Interval/2 {
			sleep = r.Interval / 2
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		r.tick(ctx)
	}
}

func (r *Refresher) tick(ctx context.Context) {
	_, refresh, expiry, scope, err := db.GetOAuthToken(ctx, r.DB, r.Provider)
	if err != nil {
		slog.Warn("token row read failed", slog.String("provider", r.Provider), slog.Any("err", err))
		return
	}
	if refresh == "" {
		return
	}
	if time.Until(expiry) > r.Window {
		return
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAT, newRT, newExp, newScope, err := r.Refresh(ctx2, refresh)
	cancel()
	if err != nil {
		slog.Warn("token refresh failed", slog.String("provider", r.Provider), slog.Any("err", err))
		return
	}
	if newRT == "" {
		newRT = refresh
	}
	if newScope == "" {
		newScope = scope
	}
	if err := db.UpsertOAuthToken(ctx, r.DB, r.Provider, newAT, newRT, newExp, strings.TrimSpace(newScope)); err != nil {
		slog.Warn("token persist failed", slog.String("provider", r.Provider), slog.Any("err", err))
		return
	}
	slog.Info("token refreshed", slog.String("provider", r.Provider))
	if r.OnRotate != nil {
		r.OnRotate(newAT)
	}
}
