package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/chat-tender/backend/db"
)

// HandleUsersList returns known chatters ordered by recency.
func (h *Handlers) HandleUsersList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	users, err := db.ListUsers(r.Context(), h.db, limit)
	if err != nil {
		slog.Error("user list failed", slog.Any("err", err))
		http.Error(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"users": users})
}

// HandleUsersDispatcher routes /users/{name} requests.
func (h *Handlers) HandleUsersDispatcher(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/"))
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getUser(w, r, name)
	case http.MethodPatch:
		h.patchUser(w, r, name)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request, name string) {
	rec, err := db.GetUser(r.Context(), h.db, name)
	if err != nil {
		slog.Error("user read failed", slog.String("user", name), slog.Any("err", err))
		http.Error(w, "failed to read user", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// patchUser overwrites favouritism and/or facts. Fields absent from the body
// stay untouched.
func (h *Handlers) patchUser(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		Favouritism *int      `json:"favouritism_score"`
		Facts       *[]string `json:"facts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.Favouritism == nil && body.Facts == nil {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if body.Favouritism != nil {
		if err := db.SetFavouritism(ctx, h.db, name, *body.Favouritism); err != nil {
			slog.Error("favouritism update failed", slog.String("user", name), slog.Any("err", err))
			http.Error(w, "failed to update user", http.StatusInternalServerError)
			return
		}
	}
	if body.Facts != nil {
		if err := db.SetFacts(ctx, h.db, name, *body.Facts); err != nil {
			slog.Error("facts update failed", slog.String("user", name), slog.Any("err", err))
			http.Error(w, "failed to update user", http.StatusInternalServerError)
			return
		}
	}
	rec, err := db.GetUser(ctx, h.db, name)
	if err != nil || rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}
