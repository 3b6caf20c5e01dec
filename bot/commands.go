package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/irc"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

// commandHandler runs a chat command. Handlers execute on the read loop, so
// anything slow (AI, HTTP, DB) must go through b.spawn.
type commandHandler func(b *Bot, ev irc.Event, args string, snap config.Snapshot)

// commandTable is the fixed, case-insensitive command surface. Unknown
// commands are ignored silently. Populated in init so cmdCommands can list
// the table without a package initialization cycle.
var commandTable map[string]commandHandler

func init() {
	commandTable = map[string]commandHandler{
		"ai":       cmdAI,
		"say":      cmdSay,
		"search":   cmdSearch,
		"uptime":   cmdUptime,
		"socials":  cmdSocials,
		"commands": cmdCommands,
		"trivia":   startGame("trivia"),
		"guess":    startGame("guess"),
		"scramble": startGame("scramble"),
		"game":     cmdRandomGame,
		"rps":      cmdRPS,
		"roast":    cmdRoast,
		"8ball":    cmd8Ball,
		"love":     cmdLove,
		"lurk":     cmdLurk,
		"raidmsg":  cmdRaidMsg,
		"raidout":  cmdRaidOut,
		"brb":      cmdBRB,
		"back":     cmdBack,
	}
}

func cmdAI(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	user, channel := ev.User, ev.Channel
	b.spawn(func() { b.aiExchange(channel, user, args, snap) })
}

func cmdSay(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	b.Out.Send(ev.Channel, args)
}

func cmdSearch(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if b.Search == nil {
		b.Out.Send(ev.Channel, "Search is not configured.")
		return
	}
	user, channel := ev.User, ev.Channel
	b.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()
		results, err := b.Search.Search(ctx, args)
		if err != nil {
			b.Out.Send(channel, ai.Fallback)
			return
		}
		if !strings.Contains(results, "http") {
			// Status message (not configured, no results), pass through.
			b.Out.Send(channel, results)
			return
		}
		prompt := fmt.Sprintf("Answer the question %q for %s using these search results, in a sentence or two:\n%s", args, user, results)
		b.sendAI(channel, user, prompt, snap)
	})
}

func cmdUptime(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if b.Helix == nil {
		b.Out.Send(ev.Channel, "Could not retrieve uptime.")
		return
	}
	channel := ev.Channel
	b.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()
		info, err := b.Helix.GetStream(ctx, b.Cfg.Broadcaster)
		if err != nil {
			b.Out.Send(channel, "Could not retrieve uptime.")
			return
		}
		if info == nil {
			b.Out.Send(channel, "Stream is offline.")
			return
		}
		b.Out.Send(channel, "Stream has been live for: "+twitchapi.FormatUptime(info.StartedAt, time.Now()))
	})
}

func cmdSocials(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if len(snap.Socials) == 0 {
		b.Out.Send(ev.Channel, "No social media links configured.")
		return
	}
	platforms := make([]string, 0, len(snap.Socials))
	for p := range snap.Socials {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	pairs := make([]string, 0, len(platforms))
	for _, p := range platforms {
		pairs = append(pairs, p+": "+snap.Socials[p])
	}
	b.Out.Send(ev.Channel, "Follow us on social media: "+strings.Join(pairs, ", "))
}

func cmdCommands(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	names := CommandNames()
	for i, n := range names {
		names[i] = "!" + n
	}
	b.Out.Send(ev.Channel, "Available commands: "+strings.Join(names, " "))
}

func startGame(kind string) commandHandler {
	return func(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
		if b.Games == nil {
			return
		}
		b.Out.Send(ev.Channel, b.Games.Start(context.Background(), kind, ev.Channel))
	}
}

func cmdRandomGame(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if b.Games == nil {
		return
	}
	b.Out.Send(ev.Channel, b.Games.StartRandom(context.Background(), ev.Channel))
}

var rpsBeats = map[string]string{"rock": "scissors", "paper": "rock", "scissors": "paper"}

func cmdRPS(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	player := strings.ToLower(strings.TrimSpace(args))
	if _, ok := rpsBeats[player]; !ok {
		b.Out.Send(ev.Channel, "Play with !rps rock, paper or scissors!")
		return
	}
	picks := []string{"rock", "paper", "scissors"}
	mine := picks[int(b.Rand()*3)%3]
	var outcome string
	switch {
	case mine == player:
		outcome = "It's a draw!"
	case rpsBeats[player] == mine:
		outcome = "You win! 🎉"
	default:
		outcome = "I win! 😎"
	}
	b.Out.Send(ev.Channel, fmt.Sprintf("You chose %s, I chose %s. %s", player, mine, outcome))
}

func cmdRoast(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	target := strings.TrimPrefix(strings.TrimSpace(args), "@")
	if target == "" {
		target = ev.User
	}
	user, channel := ev.User, ev.Channel
	b.spawn(func() {
		prompt := fmt.Sprintf("Write a short, playful roast of %s. Keep it friendly and never cruel.", target)
		b.sendAI(channel, user, prompt, snap)
	})
}

// eightBallResponses is the classic fixed set of twenty answers.
var eightBallResponses = [20]string{
	"It is certain.",
	"It is decidedly so.",
	"Without a doubt.",
	"Yes definitely.",
	"You may rely on it.",
	"As I see it, yes.",
	"Most likely.",
	"Outlook good.",
	"Yes.",
	"Signs point to yes.",
	"Reply hazy, try again.",
	"Ask again later.",
	"Better not tell you now.",
	"Cannot predict now.",
	"Concentrate and ask again.",
	"Don't count on it.",
	"My reply is no.",
	"My sources say no.",
	"Outlook not so good.",
	"Very doubtful.",
}

func cmd8Ball(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	pick := int(b.Rand() * float64(len(eightBallResponses)))
	if pick >= len(eightBallResponses) {
		pick = len(eightBallResponses) - 1
	}
	b.Out.Send(ev.Channel, "🎱 "+eightBallResponses[pick])
}

// loveScore hashes the sorted, lowercased pair to a deterministic 0-100
// score, so love(a,b) == love(b,a) forever.
func loveScore(a, c string) int {
	a, c = strings.ToLower(a), strings.ToLower(c)
	if a > c {
		a, c = c, a
	}
	h := fnv.New32a()
	h.Write([]byte(a + "+" + c))
	return int(h.Sum32() % 101)
}

func cmdLove(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	target := strings.TrimPrefix(strings.TrimSpace(args), "@")
	if target == "" {
		b.Out.Send(ev.Channel, "Who are we matching? Try !love <username>")
		return
	}
	score := loveScore(ev.User, target)
	var verdict string
	switch {
	case score >= 75:
		verdict = "A match made in heaven! 💘"
	case score >= 50:
		verdict = "There's definitely a spark! 💕"
	case score >= 25:
		verdict = "Could work with some effort. 🤔"
	default:
		verdict = "Maybe better as friends... 💔"
	}
	b.Out.Send(ev.Channel, fmt.Sprintf("💖 %s + %s = %d%% compatible. %s", ev.User, target, score, verdict))
}

func cmdLurk(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	user, channel := ev.User, ev.Channel
	b.spawn(func() {
		prompt := fmt.Sprintf("%s is entering lurk mode. Send them off with a short, cozy acknowledgement.", user)
		b.sendAI(channel, user, prompt, snap)
	})
}

func cmdRaidMsg(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	user, channel := ev.User, ev.Channel
	b.spawn(func() {
		prompt := "Write a short hype raid message the chat can copy and paste when we raid another channel. Include an emote or two."
		b.sendAI(channel, user, prompt, snap)
	})
}

// cmdRaidOut runs the raid-out sequence: hype message, /raid directive, then
// a temporary join of the target channel to deliver the hype in person.
func cmdRaidOut(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if !b.isBroadcaster(ev.User) {
		return
	}
	target := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(args), "@"))
	if target == "" {
		b.Out.Send(ev.Channel, "Raid who? Try !raidout <channel>")
		return
	}
	user, channel := ev.User, ev.Channel
	b.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()
		prompt := b.persona(ctx, snap, user) + "\n" +
			fmt.Sprintf("We are raiding %s! Write one short hype message for everyone to spam in their chat.", target)
		msg := ai.CompleteOrFallback(ctx, b.AI, prompt)

		b.Out.Send(channel, "🚨 RAID INCOMING! Copy this: "+msg)
		_ = b.Out.SendRaw(irc.Raid(channel, target))

		// Invasion: join the target, drop the hype, leave quietly.
		if err := b.Out.SendRaw(irc.Join(target)); err != nil {
			return
		}
		b.Sleep(2 * time.Second)
		_ = b.Out.SendRaw(irc.Privmsg(target, msg))
		b.Sleep(2 * time.Second)
		_ = b.Out.SendRaw(irc.Part(target))
	})
}

func cmdBRB(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if !b.isBroadcaster(ev.User) {
		return
	}
	b.EnterBRB(ev.Channel)
}

func cmdBack(b *Bot, ev irc.Event, args string, snap config.Snapshot) {
	if !b.isBroadcaster(ev.User) {
		return
	}
	b.ExitBRB(ev.Channel)
}

func (b *Bot) isBroadcaster(user string) bool {
	return strings.EqualFold(user, b.Cfg.Broadcaster)
}
