package irc

import (
	"reflect"
	"testing"
)

func TestParsePing(t *testing.T) {
	ev, ok := Parse("PING :tmi.twitch.tv")
	if !ok {
		t.Fatal("ping not recognized")
	}
	if ev.Kind != EventPing || ev.Token != ":tmi.twitch.tv" {
		t.Errorf("ev = %+v", ev)
	}
}

func TestParsePrivmsg(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		user    string
		channel string
		text    string
	}{
		{
			name: "plain message",
			line: ":alice!alice@alice.tmi.twitch.tv PRIVMSG #somechan :hello world",
			ok:   true, user: "alice", channel: "somechan", text: "hello world",
		},
		{
			name: "colons in payload survive",
			line: ":bob!bob@bob.tmi.twitch.tv PRIVMSG #chan :note: see http://x",
			ok:   true, user: "bob", channel: "chan", text: "note: see http://x",
		},
		{
			name: "command message",
			line: ":alice!alice@alice.tmi.twitch.tv PRIVMSG #chan :!8ball will it rain",
			ok:   true, user: "alice", channel: "chan", text: "!8ball will it rain",
		},
		{name: "missing payload", line: ":alice!alice@host PRIVMSG #chan", ok: false},
		{name: "no bang in prefix", line: ":tmi.twitch.tv PRIVMSG #chan :hi", ok: false},
		{name: "empty", line: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Parse(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Kind != EventChatMessage {
				t.Errorf("kind = %v", ev.Kind)
			}
			if ev.User != tt.user || ev.Channel != tt.channel || ev.Text != tt.text {
				t.Errorf("got (%q,%q,%q), want (%q,%q,%q)", ev.User, ev.Channel, ev.Text, tt.user, tt.channel, tt.text)
			}
		})
	}
}

func TestParseUserNotice(t *testing.T) {
	line := "@badge-info=;msg-id=resub;login=carol;msg-param-cumulative-months=7 :tmi.twitch.tv USERNOTICE #chan :7 months!"
	ev, ok := Parse(line)
	if !ok {
		t.Fatal("usernotice not recognized")
	}
	if ev.Kind != EventUserNotice {
		t.Fatalf("kind = %v", ev.Kind)
	}
	if ev.Tags["msg-id"] != "resub" || ev.Tags["login"] != "carol" {
		t.Errorf("tags = %v", ev.Tags)
	}
	if ev.Channel != "chan" {
		t.Errorf("channel = %q", ev.Channel)
	}
	if ev.Text != "7 months!" {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestParseUserNoticeTagWithoutEquals(t *testing.T) {
	ev, ok := Parse("@msg-id=sub;garbage :tmi.twitch.tv USERNOTICE #chan")
	if !ok {
		t.Fatal("not recognized")
	}
	if _, present := ev.Tags["garbage"]; present {
		t.Error("tag without '=' should be ignored")
	}
	if ev.Tags["msg-id"] != "sub" {
		t.Errorf("tags = %v", ev.Tags)
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, line := range []string{
		":tmi.twitch.tv 001 bot :Welcome, GLHF!",
		"JOIN #chan",
		"random garbage",
	} {
		if _, ok := Parse(line); ok {
			t.Errorf("line %q should be unrecognized", line)
		}
	}
}

func TestSerializers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Pass("oauth:tok"), "PASS oauth:tok\r\n"},
		{Nick("bot"), "NICK bot\r\n"},
		{Join("chan"), "JOIN #chan\r\n"},
		{Part("chan"), "PART #chan\r\n"},
		{Pong(":tmi.twitch.tv"), "PONG :tmi.twitch.tv\r\n"},
		{Privmsg("chan", "hi there"), "PRIVMSG #chan :hi there\r\n"},
		{DeleteMessage("chan", "alice"), "PRIVMSG #chan :/delete alice\r\n"},
		{TimeoutUser("chan", "alice", 60), "PRIVMSG #chan :/timeout alice 60\r\n"},
		{Raid("chan", "friend"), "PRIVMSG #chan :/raid friend\r\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseRoundTripEvent(t *testing.T) {
	// A serialized privmsg parses back to the same user-visible message.
	line := Privmsg("chan", "echo test")
	ev, ok := Parse(":bot!bot@bot.tmi.twitch.tv " + line[:len(line)-2])
	if !ok {
		t.Fatal("not recognized")
	}
	want := Event{Kind: EventChatMessage, User: "bot", Channel: "chan", Text: "echo test"}
	if !reflect.DeepEqual(ev, want) {
		t.Errorf("ev = %+v, want %+v", ev, want)
	}
}
