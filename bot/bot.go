// Package bot is the dispatch core: it routes parsed chat events through
// moderation, the command table, mini-game answers and mention replies, and
// runs the timed engagement tasks (auto-chat, conversation starters, BRB and
// ad-break game loops).
package bot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/games"
	"github.com/onnwee/chat-tender/backend/irc"
	"github.com/onnwee/chat-tender/backend/moderation"
	"github.com/onnwee/chat-tender/backend/search"
	"github.com/onnwee/chat-tender/backend/telemetry"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

const aiTimeout = 10 * time.Second

// Outbound is the chat write surface the bot needs; satisfied by *irc.Conn.
type Outbound interface {
	Send(channel, text string)
	SendRaw(line string) error
}

// Bot wires the dispatch core to its collaborators. Every dependency is
// explicit; handlers and timers receive state through the receiver, never
// through globals.
type Bot struct {
	Cfg    *config.Config
	Out    Outbound
	AI     ai.Completer
	DB     *sql.DB
	Hot    *config.Hot
	Games  *games.Manager
	Helix  *twitchapi.HelixClient
	Search *search.Client
	Memory *MemoryRing

	// Rand and Sleep are injectable for deterministic tests.
	Rand  func() float64
	Sleep func(d time.Duration)

	modes modeState

	wg sync.WaitGroup
}

// New builds a Bot with default randomness and sleep. Optional collaborators
// (DB, Games, Helix, Search) are assigned by the caller afterwards.
func New(cfg *config.Config, out Outbound, completer ai.Completer) *Bot {
	return &Bot{
		Cfg:    cfg,
		Out:    out,
		AI:     completer,
		Memory: NewMemoryRing(),
		Rand:   rand.Float64,
		Sleep:  time.Sleep,
	}
}

// spawn runs f on its own goroutine, tracked so tests can Flush.
func (b *Bot) spawn(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

// Flush waits for all in-flight asynchronous side tasks. Test helper; the
// live bot never blocks on it.
func (b *Bot) Flush() {
	b.wg.Wait()
}

// Say posts a message to a channel (empty channel broadcasts). Used by the
// dashboard's /say endpoint.
func (b *Bot) Say(channel, text string) {
	b.Out.Send(channel, text)
}

// MemoryDepth reports how many exchanges the conversation memory holds.
func (b *Bot) MemoryDepth() int {
	return b.Memory.Len()
}

// snapshot loads the hot config, tolerating an unwired Hot in tests.
func (b *Bot) snapshot(ctx context.Context) config.Snapshot {
	if b.Hot == nil {
		return (&config.Hot{Base: b.Cfg}).Snapshot(ctx)
	}
	return b.Hot.Snapshot(ctx)
}

// HandleEvent is the single entry point for parsed inbound events. It runs
// on the connection read loop, so every slow path is handed off via spawn.
func (b *Bot) HandleEvent(ev irc.Event) {
	switch ev.Kind {
	case irc.EventChatMessage:
		b.handleChat(ev)
	case irc.EventUserNotice:
		b.handleUserNotice(ev)
	}
}

func (b *Bot) handleChat(ev irc.Event) {
	ctx := context.Background()
	snap := b.snapshot(ctx)

	b.spawn(func() { b.bumpUser(ev.User, db.UserDelta{MessageCount: 1}) })

	if b.Rand() < b.Cfg.SentimentProbability {
		text, user := ev.Text, ev.User
		b.spawn(func() { b.analyzeSentiment(user, text, snap) })
	}

	policy := moderation.Policy{
		BannedWords:     snap.BannedWords,
		LinkFiltering:   snap.LinkFiltering,
		CapsFiltering:   snap.CapsFiltering,
		TimeoutDuration: snap.TimeoutSeconds,
	}
	if moderation.Evaluate(ev.Text, policy) == moderation.DeleteAndTimeout {
		b.punish(ev.Channel, ev.User, policy.TimeoutDuration)
		return
	}

	if strings.HasPrefix(ev.Text, "!") {
		name, args := splitCommand(ev.Text)
		if handler, ok := commandTable[name]; ok {
			telemetry.CommandsHandled.Inc()
			handler(b, ev, args, snap)
		}
		return
	}

	if b.Games != nil {
		reply, points := b.Games.HandleMessage(ev.Channel, ev.User, ev.Text)
		if points > 0 {
			user := ev.User
			b.spawn(func() { b.bumpUser(user, db.UserDelta{Favouritism: points}) })
		}
		if reply != "" {
			b.Out.Send(ev.Channel, reply)
			return
		}
	}

	if strings.Contains(strings.ToLower(ev.Text), strings.ToLower(b.Cfg.TwitchBotUsername)) {
		b.spawn(func() { b.extractFacts(ev.User, ev.Text) })
		b.spawn(func() { b.mentionReply(ev, snap) })
	}
}

func (b *Bot) handleUserNotice(ev irc.Event) {
	switch ev.Tags["msg-id"] {
	case "sub", "resub":
		user := ev.Tags["display-name"]
		if user == "" {
			return
		}
		channel := ev.Channel
		b.spawn(func() {
			b.bumpUser(user, db.UserDelta{Favouritism: 10, SetSubscriber: sql.NullBool{Bool: true, Valid: true}})
			snap := b.snapshot(context.Background())
			prompt := fmt.Sprintf("Thank %s warmly for subscribing to the channel. One or two sentences.", user)
			b.sendAI(channel, user, prompt, snap)
		})
	case "raid":
		raider := ev.Tags["display-name"]
		viewers := ev.Tags["msg-param-viewerCount"]
		if raider == "" || viewers == "" {
			return
		}
		channel := ev.Channel
		b.spawn(func() {
			snap := b.snapshot(context.Background())
			prompt := fmt.Sprintf("Welcome %s and their %s raiders to the channel with an excited greeting.", raider, viewers)
			b.sendAI(channel, raider, prompt, snap)
		})
	}
}

// punish issues the moderation delete+timeout pair and docks favouritism.
func (b *Bot) punish(channel, user string, timeoutSecs int) {
	telemetry.ModerationActions.Inc()
	if err := b.Out.SendRaw(irc.DeleteMessage(channel, user)); err != nil {
		slog.Warn("moderation delete failed", slog.String("user", user), slog.Any("err", err))
	}
	if err := b.Out.SendRaw(irc.TimeoutUser(channel, user, timeoutSecs)); err != nil {
		slog.Warn("moderation timeout failed", slog.String("user", user), slog.Any("err", err))
	}
	b.spawn(func() { b.bumpUser(user, db.UserDelta{Favouritism: -5}) })
}

// bumpUser applies a user-record delta, fire-and-forget.
func (b *Bot) bumpUser(user string, d db.UserDelta) {
	if b.DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.IncrementUser(ctx, b.DB, strings.ToLower(user), d); err != nil {
		slog.Warn("user update failed", slog.String("user", user), slog.Any("err", err))
	}
}

// persona builds the standing prompt prefix: personality, likes/dislikes and
// the speaking user's favouritism score.
func (b *Bot) persona(ctx context.Context, snap config.Snapshot, user string) string {
	var sb strings.Builder
	sb.WriteString("Respond in personality: " + snap.Personality)
	if len(snap.Likes) > 0 {
		sb.WriteString("\nLikes: " + strings.Join(snap.Likes, ", "))
	}
	if len(snap.Dislikes) > 0 {
		sb.WriteString("\nDislikes: " + strings.Join(snap.Dislikes, ", "))
	}
	score := 0
	if b.DB != nil {
		if rec, err := db.GetUser(ctx, b.DB, strings.ToLower(user)); err == nil && rec != nil {
			score = rec.FavouritismScore
		}
	}
	fmt.Fprintf(&sb, "\nUser '%s' has a favouritism score of %d.", user, score)
	return sb.String()
}

// sendAI completes the prompt under the persona and sends the result.
func (b *Bot) sendAI(channel, user, prompt string, snap config.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	full := b.persona(ctx, snap, user) + "\n" + prompt
	b.Out.Send(channel, ai.CompleteOrFallback(ctx, b.AI, full))
}

// memoryContext renders the last n exchanges as prompt context lines.
func (b *Bot) memoryContext(n int) string {
	var lines []string
	for _, m := range b.Memory.Recent(n) {
		lines = append(lines, fmt.Sprintf("%s: %s\nBot: %s", m.User, m.Message, m.Response))
	}
	return strings.Join(lines, "\n")
}

// aiExchange answers a prompt with recent-memory context, records the
// exchange and sends the reply to the channel.
func (b *Bot) aiExchange(channel, user, message string, snap config.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	prompt := b.persona(ctx, snap, user) + "\n" +
		b.memoryContext(5) + "\n" +
		fmt.Sprintf("%s says: %s", user, message)
	resp := ai.CompleteOrFallback(ctx, b.AI, prompt)
	b.Memory.Append(user, message, resp)
	telemetry.MemoryDepthGauge.Set(float64(b.Memory.Len()))
	b.Out.Send(channel, resp)
}

func (b *Bot) mentionReply(ev irc.Event, snap config.Snapshot) {
	b.aiExchange(ev.Channel, ev.User, ev.Text, snap)
}

// analyzeSentiment runs the sentiment/topic side channel. Malformed AI
// output is logged and swallowed; it never reaches the user.
func (b *Bot) analyzeSentiment(user, message string, snap config.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	prompt := "Analyze the sentiment of the following message and identify the main topics. " +
		"Respond with a JSON object with two keys: 'sentiment' (either 'positive', 'negative', or 'neutral') " +
		"and 'topics' (a list of strings). Message: " + message
	raw, err := b.AI.Complete(ctx, prompt)
	if err != nil {
		slog.Debug("sentiment call failed", slog.Any("err", err))
		return
	}
	res, err := ai.ParseSentiment(raw)
	if err != nil {
		slog.Debug("sentiment output unparseable", slog.Any("err", err))
		return
	}
	switch res.Sentiment {
	case "positive":
		b.mergePreferences(ctx, config.KeyLikes, res.Topics)
		b.bumpUser(user, db.UserDelta{Favouritism: 1})
	case "negative":
		b.mergePreferences(ctx, config.KeyDislikes, res.Topics)
		b.bumpUser(user, db.UserDelta{Favouritism: -1})
	}
}

// mergePreferences unions topics into the kv-backed likes/dislikes list.
func (b *Bot) mergePreferences(ctx context.Context, key string, topics []string) {
	if b.DB == nil || len(topics) == 0 {
		return
	}
	existing, err := db.GetKV(ctx, b.DB, key)
	if err != nil {
		slog.Warn("preference read failed", slog.String("key", key), slog.Any("err", err))
		return
	}
	seen := map[string]bool{}
	var merged []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			return
		}
		seen[strings.ToLower(t)] = true
		merged = append(merged, t)
	}
	var current []string
	_ = ai.DecodeLooseJSON(existing, &current)
	for _, t := range current {
		add(t)
	}
	for _, t := range topics {
		add(t)
	}
	payload, err := json.Marshal(merged)
	if err != nil {
		return
	}
	if err := db.SetKV(ctx, b.DB, key, string(payload)); err != nil {
		slog.Warn("preference write failed", slog.String("key", key), slog.Any("err", err))
	}
}

// extractFacts asks the AI for memorable facts in the message and merges
// them into the user's record.
func (b *Bot) extractFacts(user, message string) {
	if b.DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	prompt := "Extract any lasting personal facts about the speaker from this message. " +
		"Respond with a JSON object with one key 'facts' (a list of short strings, possibly empty). Message: " + message
	raw, err := b.AI.Complete(ctx, prompt)
	if err != nil {
		slog.Debug("fact extraction call failed", slog.Any("err", err))
		return
	}
	res, err := ai.ParseFacts(raw)
	if err != nil || len(res.Facts) == 0 {
		return
	}
	username := strings.ToLower(user)
	rec, err := db.GetUser(ctx, b.DB, username)
	if err != nil {
		slog.Warn("fact merge read failed", slog.Any("err", err))
		return
	}
	seen := map[string]bool{}
	var merged []string
	if rec != nil {
		for _, f := range rec.Facts {
			if !seen[f] {
				seen[f] = true
				merged = append(merged, f)
			}
		}
	}
	for _, f := range res.Facts {
		if f = strings.TrimSpace(f); f != "" && !seen[f] {
			seen[f] = true
			merged = append(merged, f)
		}
	}
	if err := db.SetFacts(ctx, b.DB, username, merged); err != nil {
		slog.Warn("fact merge write failed", slog.Any("err", err))
	}
}

// splitCommand separates "!name args" into a lowercased name and the raw
// argument remainder.
func splitCommand(text string) (name, args string) {
	parts := strings.SplitN(strings.TrimPrefix(text, "!"), " ", 2)
	name = strings.ToLower(parts[0])
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return name, args
}

// CommandNames lists the commands for the !commands reply, sorted.
func CommandNames() []string {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
