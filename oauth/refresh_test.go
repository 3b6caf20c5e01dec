package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/testutil"
)

func TestTickRefreshesExpiringToken(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertOAuthToken(ctx, database, "twitch", "old-access", "old-refresh",
		time.Now().Add(5*time.Minute), "chat:read"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	var rotated string
	r := &Refresher{
		DB:       database,
		Provider: "twitch",
		Interval: time.Minute,
		Window:   15 * time.Minute,
		Refresh: func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			if refreshToken != "old-refresh" {
				t.Errorf("refresh token = %q", refreshToken)
			}
			return "new-access", "new-refresh", time.Now().Add(4 * time.Hour), "chat:read chat:edit", nil
		},
		OnRotate: func(access string) { rotated = access },
	}
	r.tick(ctx)

	access, refresh, expiry, scope, err := db.GetOAuthToken(ctx, database, "twitch")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if access != "new-access" || refresh != "new-refresh" {
		t.Errorf("tokens = %q/%q", access, refresh)
	}
	if scope != "chat:read chat:edit" {
		t.Errorf("scope = %q", scope)
	}
	if time.Until(expiry) < 3*time.Hour {
		t.Errorf("expiry not advanced: %v", expiry)
	}
	if rotated != "new-access" {
		t.Errorf("OnRotate got %q", rotated)
	}
}

func TestTickSkipsFreshToken(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertOAuthToken(ctx, database, "twitch", "access", "refresh",
		time.Now().Add(4*time.Hour), ""); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	r := &Refresher{
		DB:       database,
		Provider: "twitch",
		Window:   15 * time.Minute,
		Refresh: func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			t.Error("refresh called for a token well inside its lifetime")
			return "", "", time.Time{}, "", nil
		},
	}
	r.tick(ctx)
}

func TestTickPreservesRefreshAndScopeWhenOmitted(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertOAuthToken(ctx, database, "twitch", "old-access", "keep-refresh",
		time.Now().Add(time.Minute), "chat:read"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	r := &Refresher{
		DB:       database,
		Provider: "twitch",
		Window:   15 * time.Minute,
		// Some providers omit the rotated refresh token and scope.
		Refresh: func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			return "new-access", "", time.Now().Add(time.Hour), "", nil
		},
	}
	r.tick(ctx)

	access, refresh, _, scope, err := db.GetOAuthToken(ctx, database, "twitch")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if access != "new-access" {
		t.Errorf("access = %q", access)
	}
	if refresh != "keep-refresh" {
		t.Errorf("refresh = %q, want preserved", refresh)
	}
	if scope != "chat:read" {
		t.Errorf("scope = %q, want preserved", scope)
	}
}

func TestTickNoRowIsNoOp(t *testing.T) {
	database := testutil.SetupTestDB(t)
	r := &Refresher{
		DB:       database,
		Provider: "missing-provider",
		Window:   15 * time.Minute,
		Refresh: func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			t.Error("refresh called without a stored token")
			return "", "", time.Time{}, "", nil
		},
	}
	r.tick(context.Background())
}
