package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/telemetry"
)

// modeState holds the BRB and ad-break flags plus everything needed to
// unwind them: the frequency override and the cancel handles for the mode
// game loops and the ad end timer.
type modeState struct {
	mu sync.Mutex

	brb          bool
	freqOverride float64
	brbCancel    context.CancelFunc

	adBreak    bool
	adCancel   context.CancelFunc
	adEndTimer *time.Timer
}

// brbRaisedFreq is the elevated auto-chat frequency while the broadcaster
// is away.
const brbRaisedFreq = 0.8

// InBRB reports whether BRB mode is active.
func (b *Bot) InBRB() bool {
	b.modes.mu.Lock()
	defer b.modes.mu.Unlock()
	return b.modes.brb
}

// InAdBreak reports whether ad-break mode is active.
func (b *Bot) InAdBreak() bool {
	b.modes.mu.Lock()
	defer b.modes.mu.Unlock()
	return b.modes.adBreak
}

// autoChatFreq returns the effective auto-chat frequency: the BRB override
// when set, the hot snapshot value otherwise.
func (b *Bot) autoChatFreq(snapFreq float64) float64 {
	b.modes.mu.Lock()
	defer b.modes.mu.Unlock()
	if b.modes.brb {
		return b.modes.freqOverride
	}
	return snapFreq
}

// EnterBRB flips the bot into away mode: raised auto-chat frequency, a chat
// summary, and a recurring mini-game loop. Re-entering while active is a
// guarded no-op.
func (b *Bot) EnterBRB(channel string) {
	b.modes.mu.Lock()
	if b.modes.brb {
		b.modes.mu.Unlock()
		b.Out.Send(channel, "I'm already holding down the fort!")
		return
	}
	b.modes.brb = true
	b.modes.freqOverride = brbRaisedFreq
	ctx, cancel := context.WithCancel(context.Background())
	b.modes.brbCancel = cancel
	b.modes.mu.Unlock()

	telemetry.SetModeGauges(true, b.InAdBreak())
	b.Out.Send(channel, "The streamer is stepping away for a bit. I'll keep you entertained! 🎮")
	b.spawn(func() { b.sendChatSummary(channel) })
	go b.brbGameLoop(ctx, channel)
}

// ExitBRB clears the frequency override and cancels the pending game timer.
// Exiting while not in BRB reports back without touching state.
func (b *Bot) ExitBRB(channel string) {
	b.modes.mu.Lock()
	if !b.modes.brb {
		b.modes.mu.Unlock()
		b.Out.Send(channel, "I wasn't in BRB mode, but okay!")
		return
	}
	b.modes.brb = false
	b.modes.freqOverride = 0
	cancel := b.modes.brbCancel
	b.modes.brbCancel = nil
	b.modes.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	telemetry.SetModeGauges(false, b.InAdBreak())
	b.Out.Send(channel, "Welcome back! 🎉")
}

// StartAdBreak announces the break, posts a summary, runs the ad game loop
// and arms a one-shot timer that ends the mode after the announced duration.
func (b *Bot) StartAdBreak(channel string, duration time.Duration) {
	b.modes.mu.Lock()
	if b.modes.adBreak {
		b.modes.mu.Unlock()
		return
	}
	b.modes.adBreak = true
	ctx, cancel := context.WithCancel(context.Background())
	b.modes.adCancel = cancel
	b.modes.adEndTimer = time.AfterFunc(duration, func() { b.EndAdBreak(channel) })
	b.modes.mu.Unlock()

	telemetry.SetModeGauges(b.InBRB(), true)
	b.Out.Send(channel, "📺 Ad break started! For those stuck in ads, here's a quick summary of what's happening and a game! (Sub to skip ads!)")
	b.spawn(func() { b.sendChatSummary(channel) })
	go b.adGameLoop(ctx, channel)
}

// EndAdBreak flips the flag off and cancels the game loop. Safe to call
// both from the one-shot timer and from the dashboard.
func (b *Bot) EndAdBreak(channel string) {
	b.modes.mu.Lock()
	if !b.modes.adBreak {
		b.modes.mu.Unlock()
		return
	}
	b.modes.adBreak = false
	cancel := b.modes.adCancel
	b.modes.adCancel = nil
	if b.modes.adEndTimer != nil {
		b.modes.adEndTimer.Stop()
		b.modes.adEndTimer = nil
	}
	b.modes.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	telemetry.SetModeGauges(b.InBRB(), false)
	b.Out.Send(channel, "Ads are over, welcome back to the stream! 🎬")
}

// sendChatSummary posts an AI recap of recent chat, used on BRB and ad
// entry so newcomers and ad-watchers can catch up.
func (b *Bot) sendChatSummary(channel string) {
	history := b.Memory.Recent(10)
	if len(history) == 0 {
		return
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.User, m.Message))
	}
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()
	prompt := "Summarize the following chat history in two or three light sentences for viewers who just tuned in:\n" +
		strings.Join(lines, "\n")
	b.Out.Send(channel, ai.CompleteOrFallback(ctx, b.AI, prompt))
}

// brbGameLoop starts a random mini-game every 120-240s while BRB holds.
// The context is cancelled on exit, so a pending arm never fires late.
func (b *Bot) brbGameLoop(ctx context.Context, channel string) {
	for {
		wait := 120*time.Second + time.Duration(b.Rand()*120)*time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if !b.InBRB() {
			return
		}
		b.startModeGame(channel)
	}
}

// adGameLoop runs on a fixed 60s cadence while the ad break holds.
func (b *Bot) adGameLoop(ctx context.Context, channel string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(60 * time.Second):
		}
		if !b.InAdBreak() {
			return
		}
		b.startModeGame(channel)
	}
}

func (b *Bot) startModeGame(channel string) {
	if b.Games == nil {
		return
	}
	b.Out.Send(channel, b.Games.StartRandom(context.Background(), channel))
}
