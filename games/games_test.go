package games

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/backend/telemetry"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// waitLoaded blocks until the trivia background fetch finishes.
func waitLoaded(t *testing.T, g *trivia) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		g.mu.Lock()
		loading := g.loading
		g.mu.Unlock()
		if !loading {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("trivia question never loaded")
}

type cannedCompleter struct {
	reply string
	err   error
}

func (c cannedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.reply, c.err
}

func newTestManager() *Manager {
	telemetry.Init()
	return NewManager(cannedCompleter{reply: `{"question":"Capital of France?","answer":"Paris"}`}, nil)
}

func TestOneGamePerChannel(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	first := m.Start(ctx, "guess", "chan")
	if !strings.Contains(first, "GUESS THE NUMBER") {
		t.Fatalf("unexpected start message: %q", first)
	}
	second := m.Start(ctx, "scramble", "chan")
	if second != "A game is already active in this channel!" {
		t.Errorf("second start = %q, want rejection", second)
	}
	// The original session is untouched: a scramble answer does nothing,
	// a number still plays.
	if reply, _ := m.HandleMessage("chan", "u", "twitch"); reply != "" {
		t.Errorf("scramble answer replied %q against guess game", reply)
	}
	if reply, _ := m.HandleMessage("chan", "u", "50"); reply == "" {
		t.Error("guess game gave no hint for a numeric guess")
	}
}

func TestIndependentChannels(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.Start(ctx, "guess", "a")
	got := m.Start(ctx, "guess", "b")
	if strings.Contains(got, "already active") {
		t.Error("second channel was rejected")
	}
	if !m.ActiveIn("a") || !m.ActiveIn("b") {
		t.Error("both channels should have active games")
	}
}

func TestUnknownGameType(t *testing.T) {
	m := newTestManager()
	if got := m.Start(context.Background(), "chess", "chan"); got != "Unknown game type." {
		t.Errorf("got %q", got)
	}
	if m.ActiveIn("chan") {
		t.Error("unknown type should not create a session")
	}
}

func TestStartCountsAcceptedStartsOnce(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	before := promtest.ToFloat64(telemetry.GamesStarted)
	m.Start(ctx, "guess", "chan")
	if got := promtest.ToFloat64(telemetry.GamesStarted) - before; got != 1 {
		t.Errorf("accepted start incremented counter by %v, want 1", got)
	}

	before = promtest.ToFloat64(telemetry.GamesStarted)
	m.Start(ctx, "scramble", "chan") // rejected: one already active
	m.Start(ctx, "chess", "other")   // rejected: unknown type
	if got := promtest.ToFloat64(telemetry.GamesStarted) - before; got != 0 {
		t.Errorf("rejected starts incremented counter by %v, want 0", got)
	}
}

func TestGuessNumberBisection(t *testing.T) {
	m := newTestManager()
	m.Start(context.Background(), "guess", "chan")

	// Binary-search the target using the hints; must terminate within 100
	// numeric guesses.
	lo, hi := 1, 100
	for i := 0; i < 100; i++ {
		guess := (lo + hi) / 2
		reply, points := m.HandleMessage("chan", "alice", strconv.Itoa(guess))
		switch {
		case points == WinPoints:
			if !strings.Contains(reply, "@alice") {
				t.Errorf("win reply %q should credit the winner", reply)
			}
			if m.ActiveIn("chan") {
				t.Error("session should end on a correct answer")
			}
			return
		case reply == "Higher! ⬆️":
			lo = guess + 1
		case reply == "Lower! ⬇️":
			hi = guess - 1
		default:
			t.Fatalf("unexpected reply %q", reply)
		}
	}
	t.Fatal("never guessed the number")
}

func TestGuessIgnoresNonNumeric(t *testing.T) {
	m := newTestManager()
	m.Start(context.Background(), "guess", "chan")
	if reply, points := m.HandleMessage("chan", "u", "not a number"); reply != "" || points != 0 {
		t.Errorf("non-numeric message got reply %q points %d", reply, points)
	}
}

func TestScrambleRoundTrip(t *testing.T) {
	m := newTestManager()
	m.Start(context.Background(), "scramble", "chan")
	g := m.active["chan"].(*scramble)

	if len(g.scrambled) != len(g.word) {
		t.Fatalf("scrambled %q is not a permutation of %q", g.scrambled, g.word)
	}
	if reply, _ := m.HandleMessage("chan", "u", "definitelywrong"); reply != "" {
		t.Errorf("wrong answer replied %q", reply)
	}
	reply, points := m.HandleMessage("chan", "bob", " "+strings.ToUpper(g.word)+" ")
	if points != WinPoints {
		t.Fatalf("correct answer earned %d points, want %d", points, WinPoints)
	}
	if !strings.Contains(reply, g.word) {
		t.Errorf("win reply %q should reveal the word", reply)
	}
}

func TestTriviaAnswerAfterLoad(t *testing.T) {
	m := newTestManager()
	start := m.Start(context.Background(), "trivia", "chan")
	if !strings.Contains(start, "Fetching") {
		t.Errorf("unexpected trivia start message %q", start)
	}
	g := m.active["chan"].(*trivia)
	waitLoaded(t, g)

	if reply, _ := m.HandleMessage("chan", "u", "London"); reply != "" {
		t.Errorf("wrong answer replied %q", reply)
	}
	reply, points := m.HandleMessage("chan", "alice", "I think it's paris!")
	if points != WinPoints {
		t.Fatalf("containment match should win, got points=%d reply=%q", points, reply)
	}
}

func TestTriviaFetchFailureFallsBack(t *testing.T) {
	telemetry.Init()
	m := NewManager(cannedCompleter{reply: "not json at all"}, nil)
	m.Start(context.Background(), "trivia", "chan")
	g := m.active["chan"].(*trivia)
	waitLoaded(t, g)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.answer != "error" {
		t.Errorf("fallback answer = %q, want error", g.answer)
	}
}

func TestEndIn(t *testing.T) {
	m := newTestManager()
	m.Start(context.Background(), "guess", "chan")
	m.EndIn("chan")
	if m.ActiveIn("chan") {
		t.Error("EndIn left session active")
	}
	if got := m.Start(context.Background(), "guess", "chan"); strings.Contains(got, "already active") {
		t.Error("channel should be free after EndIn")
	}
}
