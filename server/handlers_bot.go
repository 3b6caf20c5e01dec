package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// defaultAdBreakSeconds matches a standard Twitch ad block.
const defaultAdBreakSeconds = 60

// requireBot gates the control endpoints when no chat side is wired up.
func (h *Handlers) requireBot(w http.ResponseWriter) bool {
	if h.bot == nil {
		http.Error(w, "chat bot not running", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// HandleSay posts a message to chat. Empty channel broadcasts to all joined
// channels.
func (h *Handlers) HandleSay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireBot(w) {
		return
	}
	var body struct {
		Channel string `json:"channel"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	h.bot.Say(body.Channel, body.Message)
	w.WriteHeader(http.StatusAccepted)
}

// HandleModeBRB puts the bot into BRB mode for the given channel.
func (h *Handlers) HandleModeBRB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireBot(w) {
		return
	}
	h.bot.EnterBRB(r.URL.Query().Get("channel"))
	writeModeState(w, h.bot)
}

// HandleModeBack ends BRB mode.
func (h *Handlers) HandleModeBack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireBot(w) {
		return
	}
	h.bot.ExitBRB(r.URL.Query().Get("channel"))
	writeModeState(w, h.bot)
}

// HandleModeAdBreak starts or ends ad-break mode. POST with ?end=1 closes the
// break early; otherwise duration_seconds picks the break length.
func (h *Handlers) HandleModeAdBreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireBot(w) {
		return
	}
	channel := r.URL.Query().Get("channel")
	if r.URL.Query().Get("end") == "1" {
		h.bot.EndAdBreak(channel)
		writeModeState(w, h.bot)
		return
	}
	secs := parseIntQuery(r, "duration_seconds", defaultAdBreakSeconds)
	if secs < 1 || secs > 600 {
		http.Error(w, "duration_seconds out of range", http.StatusBadRequest)
		return
	}
	h.bot.StartAdBreak(channel, time.Duration(secs)*time.Second)
	writeModeState(w, h.bot)
}

func writeModeState(w http.ResponseWriter, bot BotControl) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{
		"brb":      bot.InBRB(),
		"ad_break": bot.InAdBreak(),
	})
}
