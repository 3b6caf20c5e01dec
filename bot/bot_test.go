package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/games"
	"github.com/onnwee/chat-tender/backend/irc"
	"github.com/onnwee/chat-tender/backend/telemetry"
	"github.com/onnwee/chat-tender/backend/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

type cannedCompleter struct {
	reply string
	err   error
}

func (c cannedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.reply, c.err
}

func newTestBot(t *testing.T, reply string) (*Bot, *testutil.Sink) {
	t.Helper()
	telemetry.Init()
	cfg := &config.Config{
		TwitchBotUsername:    "bot",
		TwitchChannels:       []string{"chan"},
		Broadcaster:          "streamer",
		SentimentProbability: 0.1,
		AutoChatFreq:         0.2,
	}
	sink := &testutil.Sink{}
	completer := cannedCompleter{reply: reply}
	b := New(cfg, sink, completer)
	b.Games = games.NewManager(completer, nil)
	b.Rand = func() float64 { return 0.99 } // sentiment never fires
	b.Sleep = func(time.Duration) {}
	return b, sink
}

func chatEvent(t *testing.T, line string) irc.Event {
	t.Helper()
	ev, ok := irc.Parse(line)
	if !ok {
		t.Fatalf("line did not parse: %q", line)
	}
	return ev
}

func TestMentionTriggersAIReply(t *testing.T) {
	b, sink := newTestBot(t, "Hello alice!")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :hey bot how are you"))
	b.Flush()

	last := sink.Last()
	if last.Channel != "chan" || last.Text != "Hello alice!" {
		t.Errorf("last send = %+v", last)
	}
	if b.Memory.Len() != 1 {
		t.Errorf("memory len = %d, want 1", b.Memory.Len())
	}
	ex := b.Memory.Recent(1)[0]
	if ex.User != "alice" || ex.Response != "Hello alice!" {
		t.Errorf("exchange = %+v", ex)
	}
}

func TestNonMentionIgnored(t *testing.T) {
	b, sink := newTestBot(t, "should not appear")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :just chatting"))
	b.Flush()
	if got := sink.Sends(); len(got) != 0 {
		t.Errorf("unexpected sends: %v", got)
	}
}

func TestModerationDeletesAndTimesOut(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	// Contains the bot name too: moderation must stop dispatch before the
	// mention path runs.
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :hey bot check www.spam.example"))
	b.Flush()

	sends := sink.Sends()
	if len(sends) != 2 {
		t.Fatalf("sends = %v, want delete+timeout only", sends)
	}
	if sends[0].Text != irc.DeleteMessage("chan", "alice") {
		t.Errorf("first raw = %q", sends[0].Text)
	}
	if sends[1].Text != irc.TimeoutUser("chan", "alice", 60) {
		t.Errorf("second raw = %q", sends[1].Text)
	}
}

func TestUnknownCommandSilentlyIgnored(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!definitelynotacommand"))
	b.Flush()
	if got := sink.Sends(); len(got) != 0 {
		t.Errorf("unexpected sends: %v", got)
	}
}

func TestCommandNameCaseInsensitive(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!SAY hello there"))
	b.Flush()
	if last := sink.Last(); last.Text != "hello there" {
		t.Errorf("say reply = %q", last.Text)
	}
}

func TestGameAnswerFlow(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!guess"))
	b.Flush()
	if !strings.Contains(sink.Last().Text, "GUESS THE NUMBER") {
		t.Fatalf("start message = %q", sink.Last().Text)
	}
	b.HandleEvent(chatEvent(t, ":bob!bob@bob.tmi.twitch.tv PRIVMSG #chan :50"))
	b.Flush()
	reply := sink.Last().Text
	if reply != "Higher! ⬆️" && reply != "Lower! ⬇️" && !strings.Contains(reply, "Ding Ding") {
		t.Errorf("game reply = %q", reply)
	}
}

func TestGameCommandCountsStartOnce(t *testing.T) {
	b, _ := newTestBot(t, "unused")
	before := promtest.ToFloat64(telemetry.GamesStarted)
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!guess"))
	b.Flush()
	if got := promtest.ToFloat64(telemetry.GamesStarted) - before; got != 1 {
		t.Errorf("!guess incremented starts counter by %v, want 1", got)
	}
}

func TestSubUserNoticeThanks(t *testing.T) {
	b, sink := newTestBot(t, "Thanks for the sub, NewSub!")
	ev := chatEvent(t, "@msg-id=sub;display-name=NewSub :tmi.twitch.tv USERNOTICE #chan :Great stream!")
	b.HandleEvent(ev)
	b.Flush()
	if last := sink.Last(); last.Text != "Thanks for the sub, NewSub!" || last.Channel != "chan" {
		t.Errorf("last = %+v", last)
	}
}

func TestRaidUserNoticeWelcome(t *testing.T) {
	b, sink := newTestBot(t, "Welcome raiders!")
	ev := chatEvent(t, "@msg-id=raid;display-name=Raider;msg-param-viewerCount=50 :tmi.twitch.tv USERNOTICE #chan")
	b.HandleEvent(ev)
	b.Flush()
	if last := sink.Last(); last.Text != "Welcome raiders!" {
		t.Errorf("last = %+v", last)
	}
}

func TestRaidoutInvasionSequence(t *testing.T) {
	b, sink := newTestBot(t, "Hype Message!")
	b.HandleEvent(chatEvent(t, ":streamer!streamer@streamer.tmi.twitch.tv PRIVMSG #chan :!raidout target_streamer"))
	b.Flush()

	var texts []string
	for _, s := range sink.Sends() {
		texts = append(texts, s.Text)
	}
	joined := strings.Join(texts, "|")
	for i, want := range []string{
		"🚨 RAID INCOMING! Copy this: Hype Message!",
		irc.Raid("chan", "target_streamer"),
		"JOIN #target_streamer\r\n",
		"PRIVMSG #target_streamer :Hype Message!\r\n",
		"PART #target_streamer\r\n",
	} {
		if i >= len(texts) || texts[i] != want {
			t.Fatalf("step %d: got %q, want %q (all: %s)", i, textAt(texts, i), want, joined)
		}
	}
}

func textAt(texts []string, i int) string {
	if i < len(texts) {
		return texts[i]
	}
	return "<missing>"
}

func TestRaidoutRequiresBroadcaster(t *testing.T) {
	b, sink := newTestBot(t, "Hype Message!")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!raidout target"))
	b.Flush()
	if got := sink.Sends(); len(got) != 0 {
		t.Errorf("non-broadcaster raidout produced sends: %v", got)
	}
}

func TestAutoChatOnce(t *testing.T) {
	b, sink := newTestBot(t, strings.Repeat("a very long spontaneous comment ", 20))
	b.Rand = func() float64 { return 0 } // always fire
	for i := 0; i < 6; i++ {
		b.Memory.Append("u", "m", "r")
	}
	b.autoChatOnce(context.Background())
	last := sink.Last()
	if last.Channel != "" {
		t.Errorf("auto chat should broadcast, got channel %q", last.Channel)
	}
	if n := len([]rune(last.Text)); n > 200 {
		t.Errorf("auto chat comment is %d runes, want <= 200", n)
	}
	if !strings.HasSuffix(last.Text, "…") {
		t.Errorf("truncated comment should end with ellipsis: %q", last.Text)
	}
}

func TestAutoChatNeedsHistory(t *testing.T) {
	b, sink := newTestBot(t, "comment")
	b.Rand = func() float64 { return 0 }
	for i := 0; i < 5; i++ { // exactly 5: not enough
		b.Memory.Append("u", "m", "r")
	}
	b.autoChatOnce(context.Background())
	if got := sink.Sends(); len(got) != 0 {
		t.Errorf("auto chat fired with insufficient history: %v", got)
	}
}

func TestAutoChatRespectsFrequency(t *testing.T) {
	b, sink := newTestBot(t, "comment")
	b.Rand = func() float64 { return 0.99 } // above any sane frequency
	for i := 0; i < 10; i++ {
		b.Memory.Append("u", "m", "r")
	}
	b.autoChatOnce(context.Background())
	if got := sink.Sends(); len(got) != 0 {
		t.Errorf("auto chat fired despite losing the dice roll: %v", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	if got := truncateWithEllipsis("short", 200); got != "short" {
		t.Errorf("short text changed: %q", got)
	}
	long := strings.Repeat("x", 300)
	got := truncateWithEllipsis(long, 200)
	if len([]rune(got)) != 200 {
		t.Errorf("len = %d, want 200", len([]rune(got)))
	}
}
