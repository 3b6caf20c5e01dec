// Command backend is the main entrypoint for the chat bot and dashboard API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Connects to Twitch chat and dispatches events through the bot core.
//   - Starts background jobs: auto-chat, conversation starters, and the
//     OAuth token refresher.
//   - Exposes the dashboard HTTP server with /healthz, /status, /metrics,
//     /config, /users and the bot control endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/chat-tender/backend/ai"
	"github.com/onnwee/chat-tender/backend/bot"
	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/games"
	"github.com/onnwee/chat-tender/backend/irc"
	"github.com/onnwee/chat-tender/backend/oauth"
	"github.com/onnwee/chat-tender/backend/search"
	"github.com/onnwee/chat-tender/backend/server"
	"github.com/onnwee/chat-tender/backend/telemetry"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load("backend/.env")

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat credentials: prefer env, fall back to the token stored by a
	// previous run's authorize flow.
	if cfg.TwitchOAuthToken == "" {
		if access, _, _, _, err := db.GetOAuthToken(ctx, database, "twitch"); err != nil {
			slog.Warn("stored token lookup failed", slog.Any("err", err))
		} else if access != "" {
			cfg.TwitchOAuthToken = access
		}
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("chat credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	completer := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if cfg.GeminiModel != "" {
		completer.Model = cfg.GeminiModel
	}

	chatBot, conn := startChat(ctx, cfg, database, completer)

	// Keep the persisted Twitch token fresh; a rotation is adopted by the
	// connection on its next reconnect.
	refresher := &oauth.Refresher{
		DB:       database,
		Provider: "twitch",
		Interval: 5 * time.Minute,
		Window:   15 * time.Minute,
		Refresh: func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			res, err := twitchapi.RefreshToken(rctx, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
		},
	}
	refresher.OnRotate = func(access string) { conn.SetToken(chatToken(access)) }
	refresher.Start(ctx)

	startPprofIfEnabled()

	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, chatBot); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

// chatToken normalizes an access token into the oauth: form IRC expects.
func chatToken(access string) string {
	if strings.HasPrefix(access, "oauth:") {
		return access
	}
	return "oauth:" + access
}

// startChat wires the bot core to a live IRC connection and launches the
// read loop and schedulers.
func startChat(ctx context.Context, cfg *config.Config, database *sql.DB, completer ai.Completer) (*bot.Bot, *irc.Conn) {
	var chatBot *bot.Bot
	pacer := irc.NewPacerFromEnv()
	conn := irc.NewConn(cfg.TwitchBotUsername, chatToken(cfg.TwitchOAuthToken), cfg.TwitchChannels, pacer,
		func(ev irc.Event) { chatBot.HandleEvent(ev) })

	chatBot = bot.New(cfg, conn, completer)
	chatBot.DB = database
	chatBot.Hot = &config.Hot{DB: database, Base: cfg}
	chatBot.Games = games.NewManager(completer, conn.Send)
	chatBot.Search = search.NewClient(cfg.SearchAPIKey, cfg.SearchEngineID)
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		chatBot.Helix = &twitchapi.HelixClient{
			TokenSource: twitchapi.NewAppTokenSource(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, nil),
			ClientID:    cfg.TwitchClientID,
		}
	}

	go conn.Run(ctx)
	chatBot.StartSchedulers(ctx)
	return chatBot, conn
}

// startPprofIfEnabled exposes /debug/pprof on its own listener when
// ENABLE_PPROF=1.
func startPprofIfEnabled() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
		srv := &http.Server{
			Addr:              pprofAddr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
