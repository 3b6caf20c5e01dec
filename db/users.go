package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UserRecord is one row of the users table. The record is mutated through
// increment operations only; the dashboard is the only writer allowed to
// overwrite fields wholesale.
type UserRecord struct {
	Username         string    `json:"username"`
	MessageCount     int       `json:"message_count"`
	IsSubscriber     bool      `json:"is_subscriber"`
	FavouritismScore int       `json:"favouritism_score"`
	Facts            []string  `json:"facts"`
	LastSeen         time.Time `json:"last_seen"`
}

// UserDelta describes one atomic adjustment to a user record. Zero-value
// fields are no-ops; SetSubscriber only writes when Valid.
type UserDelta struct {
	MessageCount  int
	Favouritism   int
	SetSubscriber sql.NullBool
}

// GetUser returns the record for username, or nil when unknown.
func GetUser(ctx context.Context, db *sql.DB, username string) (*UserRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT username, message_count, is_subscriber, favouritism_score, facts, COALESCE(last_seen, NOW())
		 FROM users WHERE username=$1`, username)
	var rec UserRecord
	var facts string
	if err := row.Scan(&rec.Username, &rec.MessageCount, &rec.IsSubscriber, &rec.FavouritismScore, &facts, &rec.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(facts), &rec.Facts); err != nil {
		rec.Facts = nil
	}
	return &rec, nil
}

// IncrementUser applies a delta in one statement, so concurrent increments
// for the same username never lose updates.
func IncrementUser(ctx context.Context, db *sql.DB, username string, d UserDelta) error {
	sub := false
	if d.SetSubscriber.Valid {
		sub = d.SetSubscriber.Bool
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (username, message_count, is_subscriber, favouritism_score, last_seen)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (username) DO UPDATE SET
		   message_count = users.message_count + EXCLUDED.message_count,
		   favouritism_score = users.favouritism_score + EXCLUDED.favouritism_score,
		   is_subscriber = CASE WHEN $5 THEN EXCLUDED.is_subscriber ELSE users.is_subscriber END,
		   last_seen = NOW()`,
		username, d.MessageCount, sub, d.Favouritism, d.SetSubscriber.Valid)
	if err != nil {
		return fmt.Errorf("increment user %s: %w", username, err)
	}
	return nil
}

// SetFacts replaces the user's free-text fact list.
func SetFacts(ctx context.Context, db *sql.DB, username string, facts []string) error {
	payload, err := json.Marshal(facts)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (username, facts) VALUES ($1, $2)
		 ON CONFLICT (username) DO UPDATE SET facts=EXCLUDED.facts`,
		username, string(payload))
	return err
}

// SetFavouritism overwrites the favouritism score (explicit dashboard edit).
func SetFavouritism(ctx context.Context, db *sql.DB, username string, score int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (username, favouritism_score) VALUES ($1, $2)
		 ON CONFLICT (username) DO UPDATE SET favouritism_score=EXCLUDED.favouritism_score`,
		username, score)
	return err
}

// RandomActiveUser picks one user seen since the cutoff with more than
// minMessages messages, or nil when none qualify.
func RandomActiveUser(ctx context.Context, db *sql.DB, since time.Time, minMessages int) (*UserRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT username, message_count, is_subscriber, favouritism_score, facts, COALESCE(last_seen, NOW())
		 FROM users WHERE last_seen >= $1 AND message_count > $2
		 ORDER BY random() LIMIT 1`, since, minMessages)
	var rec UserRecord
	var facts string
	if err := row.Scan(&rec.Username, &rec.MessageCount, &rec.IsSubscriber, &rec.FavouritismScore, &facts, &rec.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(facts), &rec.Facts); err != nil {
		rec.Facts = nil
	}
	return &rec, nil
}

// ListUsers returns up to limit records ordered by recency, for the
// dashboard user browser.
func ListUsers(ctx context.Context, db *sql.DB, limit int) ([]UserRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT username, message_count, is_subscriber, favouritism_score, facts, COALESCE(last_seen, NOW())
		 FROM users ORDER BY last_seen DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserRecord
	for rows.Next() {
		var rec UserRecord
		var facts string
		if err := rows.Scan(&rec.Username, &rec.MessageCount, &rec.IsSubscriber, &rec.FavouritismScore, &facts, &rec.LastSeen); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(facts), &rec.Facts); err != nil {
			rec.Facts = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
