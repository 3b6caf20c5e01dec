// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	LinesParsed       prometheus.Counter
	MessagesSent      prometheus.Counter
	SendsDropped      prometheus.Counter
	Reconnects        prometheus.Counter
	CommandsHandled   prometheus.Counter
	ModerationActions prometheus.Counter
	AICalls           prometheus.Counter
	AIFailures        prometheus.Counter
	GamesStarted      prometheus.Counter
	GamesWon          prometheus.Counter

	// Histograms (seconds)
	AIDuration prometheus.Observer

	// Gauges
	MemoryDepthGauge prometheus.Gauge
	BRBGauge         prometheus.Gauge // 1=away,0=present
	AdBreakGauge     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LinesParsed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_irc_lines_parsed_total", Help: "Inbound IRC lines parsed into events"})
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_sent_total", Help: "Paced chat fragments written to the wire"})
		SendsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_sends_dropped_total", Help: "Outbound fragments dropped because the send queue was full"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_irc_reconnects_total", Help: "IRC disconnects that triggered the reconnect loop"})
		CommandsHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_handled_total", Help: "Chat commands dispatched to a handler"})
		ModerationActions = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_moderation_actions_total", Help: "Messages deleted and users timed out by moderation"})
		AICalls = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_ai_calls_total", Help: "Completion requests sent to the AI backend"})
		AIFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_ai_failures_total", Help: "AI requests that fell back to the canned reply"})
		GamesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_games_started_total", Help: "Mini-game sessions started"})
		GamesWon = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_games_won_total", Help: "Mini-game sessions ended by a correct answer"})
		AIDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_ai_duration_seconds", Help: "AI completion round-trip seconds", Buckets: prometheus.DefBuckets})
		MemoryDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_memory_depth", Help: "Entries currently held in the conversation memory ring"})
		BRBGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_brb_mode", Help: "BRB mode active=1 inactive=0"})
		AdBreakGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_ad_break", Help: "Ad-break mode active=1 inactive=0"})
	})
}

// SetModeGauges records the BRB and ad-break flags.
func SetModeGauges(brb, ad bool) {
	if BRBGauge == nil || AdBreakGauge == nil {
		return
	}
	if brb {
		BRBGauge.Set(1)
	} else {
		BRBGauge.Set(0)
	}
	if ad {
		AdBreakGauge.Set(1)
	} else {
		AdBreakGauge.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
