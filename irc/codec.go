// Package irc implements the bot's Twitch IRC wire layer: a line codec,
// a reconnecting connection manager, and an outbound pacer. It speaks just
// enough of the protocol for a chat bot (PASS/NICK/JOIN/PART/PRIVMSG/PONG
// plus USERNOTICE tag parsing); it is not a general IRC library.
package irc

import (
	"fmt"
	"strings"
)

// EventKind discriminates parsed inbound lines.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventPing
	EventChatMessage
	EventUserNotice
)

// Event is a parsed inbound protocol line. Fields are populated per kind:
// Ping uses Token; ChatMessage uses User/Channel/Text; UserNotice uses
// Tags (semicolon key=value map), Channel and Text (optional payload).
type Event struct {
	Kind    EventKind
	Token   string
	User    string
	Channel string
	Text    string
	Tags    map[string]string
}

// Parse turns a raw line (without trailing CRLF) into an Event.
// Unrecognized or malformed lines return ok=false and are dropped by the
// caller without error.
func Parse(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "PING"):
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return Event{}, false
		}
		return Event{Kind: EventPing, Token: fields[1]}, true
	case strings.Contains(line, "PRIVMSG"):
		return parsePrivmsg(line)
	case strings.Contains(line, "USERNOTICE"):
		return parseUserNotice(line)
	}
	return Event{}, false
}

// parsePrivmsg splits on the first two colons only; everything after the
// second colon is payload verbatim, so messages containing ':' survive.
func parsePrivmsg(line string) (Event, bool) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 3 {
		return Event{}, false
	}
	user, channel, ok := splitPrefix(parts[1])
	if !ok {
		return Event{}, false
	}
	return Event{Kind: EventChatMessage, User: user, Channel: channel, Text: parts[2]}, true
}

// splitPrefix extracts the sender (text before the first '!') and the
// channel (token after the second space, leading '#' stripped) from the
// "nick!nick@host PRIVMSG #channel " segment.
func splitPrefix(meta string) (user, channel string, ok bool) {
	bang := strings.Index(meta, "!")
	if bang < 0 {
		return "", "", false
	}
	user = meta[:bang]
	fields := strings.Split(meta, " ")
	if len(fields) < 3 {
		return "", "", false
	}
	channel = strings.TrimPrefix(fields[2], "#")
	if user == "" || channel == "" {
		return "", "", false
	}
	return user, channel, true
}

func parseUserNotice(line string) (Event, bool) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 2 {
		return Event{}, false
	}
	tags := map[string]string{}
	for _, t := range strings.Split(strings.TrimPrefix(parts[0], "@"), ";") {
		kv := strings.SplitN(t, "=", 2)
		if len(kv) != 2 {
			continue // tags lacking '=' are ignored
		}
		tags[kv[0]] = strings.TrimSpace(kv[1])
	}
	ev := Event{Kind: EventUserNotice, Tags: tags}
	if len(parts) == 3 {
		ev.Text = parts[2]
	}
	if fields := strings.Fields(parts[1]); len(fields) >= 3 {
		ev.Channel = strings.TrimPrefix(fields[2], "#")
	}
	return ev, true
}

// Outbound serializers. Every wire line ends in CRLF.

func Pass(token string) string  { return "PASS " + token + "\r\n" }
func Nick(nick string) string   { return "NICK " + nick + "\r\n" }
func Join(channel string) string { return "JOIN #" + channel + "\r\n" }
func Part(channel string) string { return "PART #" + channel + "\r\n" }
func Pong(token string) string  { return "PONG " + token + "\r\n" }

func Privmsg(channel, text string) string {
	return "PRIVMSG #" + channel + " :" + text + "\r\n"
}

// DeleteMessage renders the chat-level delete directive for a user's last
// message. Twitch accepts these moderation actions as ordinary chat text.
func DeleteMessage(channel, user string) string {
	return Privmsg(channel, "/delete "+user)
}

// TimeoutUser renders the chat-level timeout directive.
func TimeoutUser(channel, user string, seconds int) string {
	return Privmsg(channel, fmt.Sprintf("/timeout %s %d", user, seconds))
}

// Raid renders the chat-level raid directive used by the raid-out command.
func Raid(channel, target string) string {
	return Privmsg(channel, "/raid "+target)
}
