package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/backend/crypto"
)

var (
	encryptorOnce sync.Once
	encryptor     crypto.Encryptor
	encryptorErr  error
)

// getEncryptor returns the process-wide token encryptor, or nil when
// ENCRYPTION_KEY is unset (tokens stored in plaintext).
func getEncryptor() (crypto.Encryptor, error) {
	encryptorOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, oauth tokens stored in plaintext")
			return
		}
		enc, err := crypto.NewAESEncryptor(key)
		if err != nil {
			encryptorErr = fmt.Errorf("initialize encryptor: %w", err)
			return
		}
		encryptor = enc
		slog.Info("oauth token encryption enabled (AES-256-GCM)")
	})
	return encryptor, encryptorErr
}

// UpsertOAuthToken stores or updates the token row for a provider
// (e.g. twitch-chat, twitch-app). When ENCRYPTION_KEY is set the token
// values are encrypted at rest; encryption_version records which.
func UpsertOAuthToken(ctx context.Context, dbx *sql.DB, provider, access, refresh string, expiry time.Time, scope string) error {
	enc, err := getEncryptor()
	if err != nil {
		return err
	}
	encVersion := 0
	encKeyID := ""
	if enc != nil {
		encVersion = 1
		encKeyID = "default"
		if access, err = crypto.EncryptString(enc, access); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refresh, err = crypto.EncryptString(enc, refresh); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	_, err = dbx.ExecContext(ctx,
		`INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		 ON CONFLICT(provider) DO UPDATE SET
		   access_token=EXCLUDED.access_token,
		   refresh_token=EXCLUDED.refresh_token,
		   expires_at=EXCLUDED.expires_at,
		   scope=EXCLUDED.scope,
		   encryption_version=EXCLUDED.encryption_version,
		   encryption_key_id=EXCLUDED.encryption_key_id,
		   updated_at=NOW()`,
		provider, access, refresh, expiry, scope, encVersion, encKeyID)
	return err
}

// GetOAuthToken retrieves a stored token row, decrypting when the row was
// written with encryption enabled. Returns zero values when not found.
func GetOAuthToken(ctx context.Context, dbx *sql.DB, provider string) (access, refresh string, expiry time.Time, scope string, err error) {
	var encVersion int
	var encKeyID sql.NullString
	row := dbx.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, scope, COALESCE(encryption_version, 0), encryption_key_id
		 FROM oauth_tokens WHERE provider = $1`, provider)
	err = row.Scan(&access, &refresh, &expiry, &scope, &encVersion, &encKeyID)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, "", nil
	}
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	if encVersion == 1 {
		enc, encErr := getEncryptor()
		if encErr != nil {
			return "", "", time.Time{}, "", encErr
		}
		if enc == nil {
			return "", "", time.Time{}, "", fmt.Errorf("token is encrypted but ENCRYPTION_KEY not configured")
		}
		if access, encErr = crypto.DecryptString(enc, access); encErr != nil {
			return "", "", time.Time{}, "", fmt.Errorf("decrypt access token: %w", encErr)
		}
		if refresh, encErr = crypto.DecryptString(enc, refresh); encErr != nil {
			return "", "", time.Time{}, "", fmt.Errorf("decrypt refresh token: %w", encErr)
		}
	}
	return access, refresh, expiry, scope, nil
}
