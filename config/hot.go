package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/onnwee/chat-tender/backend/db"
)

// Snapshot is the dashboard-editable configuration, loaded fresh from the kv
// table so edits take effect between events without a restart.
type Snapshot struct {
	Personality    string
	AutoChatFreq   float64
	Socials        map[string]string
	BannedWords    []string
	LinkFiltering  bool
	CapsFiltering  bool
	TimeoutSeconds int
	Likes          []string
	Dislikes       []string
}

// Hot reads Snapshot values from kv, falling back to the static Config and
// built-in defaults for absent keys.
type Hot struct {
	DB   *sql.DB
	Base *Config
}

// kv keys read by Snapshot and written by the dashboard /config endpoint.
const (
	KeyPersonality    = "personality"
	KeyAutoChatFreq   = "auto_chat_freq"
	KeySocials        = "socials"
	KeyBannedWords    = "banned_words"
	KeyLinkFiltering  = "link_filtering"
	KeyCapsFiltering  = "caps_filtering"
	KeyTimeoutSeconds = "timeout_seconds"
	KeyLikes          = "likes"
	KeyDislikes       = "dislikes"
)

// SafeKeys lists the kv keys the dashboard may read and write.
var SafeKeys = []string{
	KeyPersonality, KeyAutoChatFreq, KeySocials, KeyBannedWords,
	KeyLinkFiltering, KeyCapsFiltering, KeyTimeoutSeconds,
	KeyLikes, KeyDislikes,
}

// IsSafeKey reports whether the dashboard may touch the given kv key.
func IsSafeKey(key string) bool {
	for _, k := range SafeKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Snapshot loads the current hot configuration. kv read errors degrade to
// defaults rather than failing the event being handled.
func (h *Hot) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Personality:    "You are a friendly, playful Twitch chat bot.",
		AutoChatFreq:   0.2,
		LinkFiltering:  true,
		CapsFiltering:  true,
		TimeoutSeconds: 60,
	}
	if h.Base != nil && h.Base.AutoChatFreq > 0 {
		s.AutoChatFreq = h.Base.AutoChatFreq
	}
	if h.DB == nil {
		return s
	}
	if v := h.get(ctx, KeyPersonality); v != "" {
		s.Personality = v
	}
	if v := h.get(ctx, KeyAutoChatFreq); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			s.AutoChatFreq = f
		}
	}
	if v := h.get(ctx, KeySocials); v != "" {
		var m map[string]string
		if json.Unmarshal([]byte(v), &m) == nil {
			s.Socials = m
		}
	}
	s.BannedWords = h.getList(ctx, KeyBannedWords)
	if v := h.get(ctx, KeyLinkFiltering); v != "" {
		s.LinkFiltering = parseBool(v, s.LinkFiltering)
	}
	if v := h.get(ctx, KeyCapsFiltering); v != "" {
		s.CapsFiltering = parseBool(v, s.CapsFiltering)
	}
	if v := h.get(ctx, KeyTimeoutSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.TimeoutSeconds = n
		}
	}
	s.Likes = h.getList(ctx, KeyLikes)
	s.Dislikes = h.getList(ctx, KeyDislikes)
	return s
}

func (h *Hot) get(ctx context.Context, key string) string {
	v, err := db.GetKV(ctx, h.DB, key)
	if err != nil {
		return ""
	}
	return v
}

func (h *Hot) getList(ctx context.Context, key string) []string {
	v := h.get(ctx, key)
	if v == "" {
		return nil
	}
	var out []string
	if json.Unmarshal([]byte(v), &out) == nil {
		return out
	}
	// Tolerate a plain comma-separated value from manual edits.
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
