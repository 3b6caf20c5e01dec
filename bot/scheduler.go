package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/db"
)

// autoChatMaxLen bounds spontaneous comments; AI replies elsewhere rely on
// the pacer's chunking instead.
const autoChatMaxLen = 200

// StartSchedulers launches the self-rearming background tasks. Each loop
// schedules its next firing only after the handler returns, so a slow AI
// call pushes the cadence back instead of stacking firings.
func (b *Bot) StartSchedulers(ctx context.Context) {
	go b.rearmLoop(ctx, "autochat", b.Cfg.AutoChatInterval, b.autoChatOnce)
	go b.rearmLoop(ctx, "starter", b.Cfg.ConversationStarterInterval, b.conversationStarterOnce)
}

func (b *Bot) rearmLoop(ctx context.Context, name string, interval time.Duration, fire func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		fire(ctx)
		if b.DB != nil {
			db.TouchHeartbeat(ctx, b.DB, name)
		}
		timer.Reset(interval)
	}
}

// autoChatOnce rolls the frequency dice and, with enough recent chatter,
// broadcasts a short spontaneous comment built from the last exchanges.
func (b *Bot) autoChatOnce(ctx context.Context) {
	snap := b.snapshot(ctx)
	if b.Rand() >= b.autoChatFreq(snap.AutoChatFreq) {
		return
	}
	if b.Memory.Len() <= 5 {
		return
	}
	history := b.Memory.Recent(10)
	var sb strings.Builder
	sb.WriteString("Based on the following chat history, what would be a good comment or question to add to the conversation? Keep it short and engaging.\n\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.User, m.Message)
	}
	aiCtx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()
	resp := ai.CompleteOrFallback(aiCtx, b.AI, sb.String())
	b.Out.Send("", truncateWithEllipsis(resp, autoChatMaxLen))
}

// conversationStarterOnce picks a recently active chatter and opens a
// personalized conversation with them.
func (b *Bot) conversationStarterOnce(ctx context.Context) {
	if b.DB == nil {
		return
	}
	rec, err := db.RandomActiveUser(ctx, b.DB, time.Now().Add(-time.Hour), 5)
	if err != nil {
		slog.Warn("conversation starter user pick failed", slog.Any("err", err))
		return
	}
	if rec == nil {
		return
	}
	snap := b.snapshot(ctx)
	prompt := fmt.Sprintf("Start a friendly conversation with %s.", rec.Username)
	if len(rec.Facts) > 0 {
		prompt += " Things you know about them: " + strings.Join(rec.Facts, "; ") + "."
	}
	prompt += " One short question or comment addressed to them."
	aiCtx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()
	full := b.persona(aiCtx, snap, rec.Username) + "\n" + prompt
	b.Out.Send("", ai.CompleteOrFallback(aiCtx, b.AI, full))
}

// truncateWithEllipsis hard-caps text at max runes, marking the cut.
func truncateWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
