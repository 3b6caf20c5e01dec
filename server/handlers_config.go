package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/db"
)

// HandleConfig handles GET and PUT for the hot-config kv keys. Only the
// whitelisted keys are exposed; secrets never travel through this endpoint.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		out := map[string]string{}
		for _, k := range config.SafeKeys {
			v, err := db.GetKV(r.Context(), h.db, k)
			if err != nil {
				slog.Warn("config read failed", slog.String("key", k), slog.Any("err", err))
				continue
			}
			if v != "" {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		for k, v := range body {
			if !config.IsSafeKey(k) {
				http.Error(w, "unknown config key: "+k, http.StatusBadRequest)
				return
			}
			if err := db.SetKV(r.Context(), h.db, k, strings.TrimSpace(v)); err != nil {
				slog.Error("failed to update config", slog.String("key", k), slog.Any("err", err))
				http.Error(w, "failed to update config", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns a lightweight status summary: bot modes, conversation
// memory depth, chat population, and scheduler heartbeats.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}

	if h.bot != nil {
		resp["brb"] = h.bot.InBRB()
		resp["ad_break"] = h.bot.InAdBreak()
		resp["memory_depth"] = h.bot.MemoryDepth()
	}

	var userCount, subCount int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&userCount)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_subscriber`).Scan(&subCount)
	resp["known_users"] = userCount
	resp["subscribers"] = subCount

	// Scheduler heartbeats written by the background loops.
	heartbeats := map[string]string{}
	for _, job := range []string{"autochat", "starter"} {
		if v, err := db.GetKV(ctx, h.db, "job_"+job+"_last"); err == nil && v != "" {
			heartbeats[job] = v
		}
	}
	if len(heartbeats) > 0 {
		resp["heartbeats"] = heartbeats
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
