package bot

import (
	"strings"
	"testing"
	"time"
)

func TestBRBRoundTrip(t *testing.T) {
	b, sink := newTestBot(t, "Summary of chat")
	for i := 0; i < 6; i++ {
		b.Memory.Append("u", "m", "r")
	}

	b.EnterBRB("chan")
	b.Flush()
	if !b.InBRB() {
		t.Fatal("BRB flag not set")
	}
	if got := b.autoChatFreq(0.2); got != brbRaisedFreq {
		t.Errorf("auto chat freq = %v, want %v while BRB", got, brbRaisedFreq)
	}
	var sawSummary bool
	for _, s := range sink.Sends() {
		if s.Text == "Summary of chat" {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Errorf("BRB entry did not post a summary: %v", sink.Sends())
	}

	b.ExitBRB("chan")
	if b.InBRB() {
		t.Fatal("BRB flag still set after exit")
	}
	if got := b.autoChatFreq(0.2); got != 0.2 {
		t.Errorf("auto chat freq = %v, want restored 0.2", got)
	}
}

func TestBRBEntryIdempotent(t *testing.T) {
	b, sink := newTestBot(t, "Summary of chat")
	b.EnterBRB("chan")
	b.Flush()
	sink.Reset()

	b.EnterBRB("chan")
	b.Flush()
	sends := sink.Sends()
	if len(sends) != 1 || !strings.Contains(sends[0].Text, "already") {
		t.Errorf("re-entry should only report, got %v", sends)
	}
	if !b.InBRB() {
		t.Error("BRB flag lost on re-entry")
	}
}

func TestBackWithoutBRB(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	b.ExitBRB("chan")
	if got := sink.Last().Text; got != "I wasn't in BRB mode, but okay!" {
		t.Errorf("reply = %q", got)
	}
	if b.InBRB() {
		t.Error("exit of inactive mode changed state")
	}
}

func TestBRBViaCommandsRequiresBroadcaster(t *testing.T) {
	b, sink := newTestBot(t, "unused")
	b.HandleEvent(chatEvent(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!brb"))
	b.Flush()
	if len(sink.Sends()) != 0 || b.InBRB() {
		t.Error("non-broadcaster toggled BRB")
	}

	b.HandleEvent(chatEvent(t, ":streamer!streamer@streamer.tmi.twitch.tv PRIVMSG #chan :!brb"))
	b.Flush()
	if !b.InBRB() {
		t.Error("broadcaster could not enter BRB")
	}
}

func TestAdBreakAnnouncementAndEnd(t *testing.T) {
	b, sink := newTestBot(t, "Ad Summary")
	for i := 0; i < 6; i++ {
		b.Memory.Append("u", "m", "r")
	}
	b.StartAdBreak("chan", time.Hour)
	b.Flush()
	if !b.InAdBreak() {
		t.Fatal("ad flag not set")
	}
	first := sink.Sends()[0]
	if first.Text != "📺 Ad break started! For those stuck in ads, here's a quick summary of what's happening and a game! (Sub to skip ads!)" {
		t.Errorf("announcement = %q", first.Text)
	}

	sink.Reset()
	b.EndAdBreak("chan")
	if b.InAdBreak() {
		t.Fatal("ad flag still set")
	}
	if len(sink.Sends()) == 0 {
		t.Error("ad end should be announced")
	}

	// Ending again is a no-op.
	sink.Reset()
	b.EndAdBreak("chan")
	if len(sink.Sends()) != 0 {
		t.Errorf("double end produced sends: %v", sink.Sends())
	}
}

func TestAdBreakEntryIdempotent(t *testing.T) {
	b, sink := newTestBot(t, "Ad Summary")
	b.StartAdBreak("chan", time.Hour)
	b.Flush()
	n := len(sink.Sends())
	b.StartAdBreak("chan", time.Hour)
	b.Flush()
	if len(sink.Sends()) != n {
		t.Error("re-entry announced again")
	}
}
