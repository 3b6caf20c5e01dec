// Package games implements the per-channel mini-game sessions (trivia,
// number guessing, word scramble). A channel has at most one active
// session; a start request while one is running is rejected, not queued.
package games

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/telemetry"
)

// WinPoints is the favouritism bonus awarded to a game winner.
const WinPoints = 5

// Session is the narrow interface the dispatcher consults per message.
type Session interface {
	// CheckAnswer returns whether the message won the game and an optional
	// reply (hints count as replies without winning).
	CheckAnswer(user, message string) (correct bool, reply string)
	// StartMessage is the announcement sent when the session begins.
	StartMessage() string
	Active() bool
	End()
}

// Manager owns the active session per channel.
type Manager struct {
	completer ai.Completer
	announce  func(channel, text string) // used by trivia's async question fetch

	mu     sync.Mutex
	active map[string]Session
}

// NewManager builds a manager. announce delivers late announcements (the
// trivia question arrives after the start message) and may be nil in tests.
func NewManager(completer ai.Completer, announce func(channel, text string)) *Manager {
	if announce == nil {
		announce = func(string, string) {}
	}
	return &Manager{completer: completer, announce: announce, active: make(map[string]Session)}
}

// Start begins a game of the given type in channel. The returned string is
// sent to chat whether the start succeeded or was rejected.
func (m *Manager) Start(ctx context.Context, gameType, channel string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.active[channel]; ok && g.Active() {
		return "A game is already active in this channel!"
	}

	var g Session
	switch gameType {
	case "trivia":
		g = newTrivia(ctx, m.completer, channel, m.announce)
	case "guess":
		g = newGuessNumber()
	case "scramble":
		g = newScramble()
	default:
		return "Unknown game type."
	}
	m.active[channel] = g
	telemetry.GamesStarted.Inc()
	slog.Info("game started", slog.String("type", gameType), slog.String("channel", channel))
	return g.StartMessage()
}

// StartRandom begins a randomly chosen game; used by the ad and BRB loops.
func (m *Manager) StartRandom(ctx context.Context, channel string) string {
	types := []string{"trivia", "guess", "scramble"}
	return m.Start(ctx, types[rand.Intn(len(types))], channel)
}

// HandleMessage consults the channel's active session, if any. It returns
// the reply to send (empty for none) and the points earned by the sender.
func (m *Manager) HandleMessage(channel, user, message string) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.active[channel]
	if !ok {
		return "", 0
	}
	if !g.Active() {
		delete(m.active, channel)
		return "", 0
	}
	correct, reply := g.CheckAnswer(user, message)
	if correct {
		delete(m.active, channel)
		telemetry.GamesWon.Inc()
		slog.Info("game won", slog.String("channel", channel), slog.String("user", user))
		return reply, WinPoints
	}
	return reply, 0
}

// ActiveIn reports whether a session is running in channel.
func (m *Manager) ActiveIn(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.active[channel]
	return ok && g.Active()
}

// EndIn force-ends any session in channel (dashboard control).
func (m *Manager) EndIn(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.active[channel]; ok {
		g.End()
		delete(m.active, channel)
	}
}

// ---------------------------------------------------------------- trivia

type trivia struct {
	mu       sync.Mutex
	question string
	answer   string
	loading  bool
	active   bool
	winner   string
}

func newTrivia(ctx context.Context, completer ai.Completer, channel string, announce func(string, string)) *trivia {
	g := &trivia{loading: true, active: true}
	go func() {
		prompt := "Generate a single random trivia question and its answer. " +
			"Return a JSON object with keys 'question' and 'answer'. " +
			"The answer should be short (1-3 words). Only return the JSON."
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		raw, err := completer.Complete(fetchCtx, prompt)
		q := ai.TriviaQuestion{}
		if err == nil {
			q, err = ai.ParseTrivia(raw)
		}
		g.mu.Lock()
		if err != nil || q.Question == "" || q.Answer == "" {
			slog.Warn("trivia question fetch failed", slog.Any("err", err))
			g.question = "Error fetching question. Type 'error' to end."
			g.answer = "error"
		} else {
			g.question = q.Question
			g.answer = strings.ToLower(strings.TrimSpace(q.Answer))
		}
		g.loading = false
		stillActive := g.active
		question := g.question
		g.mu.Unlock()
		if stillActive {
			announce(channel, "🎉 TRIVIA TIME! 🎉\nQuestion: "+question)
		}
	}()
	return g
}

func (g *trivia) StartMessage() string {
	return "⏳ Fetching a trivia question from the AI... Get ready!"
}

func (g *trivia) CheckAnswer(user, message string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || !g.active {
		return false, ""
	}
	if strings.Contains(strings.ToLower(strings.TrimSpace(message)), g.answer) {
		g.winner = user
		g.active = false
		return true, fmt.Sprintf("✅ Correct! @%s got it right! The answer was: %s", user, g.answer)
	}
	return false, ""
}

func (g *trivia) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *trivia) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

// ------------------------------------------------------------ guess number

type guessNumber struct {
	mu     sync.Mutex
	target int
	active bool
	winner string
}

func newGuessNumber() *guessNumber {
	return &guessNumber{target: rand.Intn(100) + 1, active: true}
}

func (g *guessNumber) StartMessage() string {
	return "🔢 GUESS THE NUMBER! 🔢\nI'm thinking of a number between 1 and 100. Type your guess!"
}

func (g *guessNumber) CheckAnswer(user, message string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return false, ""
	}
	guess, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil {
		return false, ""
	}
	switch {
	case guess == g.target:
		g.winner = user
		g.active = false
		return true, fmt.Sprintf("✅ Ding Ding! @%s guessed the number %d correctly!", user, g.target)
	case guess < g.target:
		return false, "Higher! ⬆️"
	default:
		return false, "Lower! ⬇️"
	}
}

func (g *guessNumber) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *guessNumber) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

// ------------------------------------------------------------- scramble

var scrambleWords = []string{
	"twitch", "streamer", "chat", "moderator", "subscribe", "donate",
	"keyboard", "gaming", "golang", "developer", "funny", "lorem", "ipsum",
	"controller", "screen", "camera", "lighting", "microphone", "headphones",
	"emote",
}

type scramble struct {
	mu        sync.Mutex
	word      string
	scrambled string
	active    bool
	winner    string
}

func newScramble() *scramble {
	word := scrambleWords[rand.Intn(len(scrambleWords))]
	letters := []rune(word)
	rand.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
	return &scramble{word: word, scrambled: string(letters), active: true}
}

func (g *scramble) StartMessage() string {
	return "🔤 WORD SCRAMBLE! 🔤\nUnscramble this word: " + g.scrambled
}

func (g *scramble) CheckAnswer(user, message string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return false, ""
	}
	if strings.ToLower(strings.TrimSpace(message)) == g.word {
		g.winner = user
		g.active = false
		return true, fmt.Sprintf("✅ Nice! @%s unscrambled the word: %s", user, g.word)
	}
	return false, ""
}

func (g *scramble) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *scramble) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}
