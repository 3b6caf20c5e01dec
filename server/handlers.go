// Package server exposes the dashboard HTTP API: health, status, metrics,
// hot-config editing, user favouritism management, and manual bot controls
// (say, BRB, ad break). It includes permissive CORS for development and
// injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// maxOAuthStates bounds the in-memory OAuth state store.
const maxOAuthStates = 10000

// BotControl is the subset of bot behavior the dashboard drives.
type BotControl interface {
	Say(channel, text string)
	EnterBRB(channel string)
	ExitBRB(channel string)
	StartAdBreak(channel string, d time.Duration)
	EndAdBreak(channel string)
	InBRB() bool
	InAdBreak() bool
	MemoryDepth() int
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db         *sql.DB
	ctx        context.Context
	bot        BotControl
	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a Handlers instance. bot may be nil when the chat side
// is not running (config-only deployments); the mode and say endpoints then
// report 503.
func NewHandlers(ctx context.Context, db *sql.DB, bot BotControl) *Handlers {
	return &Handlers{
		db:         db,
		ctx:        ctx,
		bot:        bot,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states. Caller holds stateMu.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState records a pending OAuth state, refusing new entries once the
// store is full so a flood of /auth/start requests cannot exhaust memory.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}
	if len(h.stateStore) >= maxOAuthStates {
		return
	}
	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state in one step.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}
