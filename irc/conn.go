package irc

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/backend/telemetry"
)

// State is the connection lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateJoined
	StateReading
)

// DefaultAddr is the Twitch IRC endpoint.
const DefaultAddr = "irc.chat.twitch.tv:6667"

// Handler receives every parsed inbound event except PING, which the
// connection answers itself.
type Handler func(ev Event)

type outbound struct {
	channel string
	frag    Fragment
}

// Conn owns the socket lifecycle: connect, authenticate, join, read,
// reconnect with a fixed backoff on any I/O failure. All writes funnel
// through one mutex so concurrent senders never interleave partial lines.
type Conn struct {
	Addr     string
	Nick     string
	Token    string
	Channels []string

	// Backoff between reconnect attempts. Fixed, not exponential: the
	// host tolerates a 5s retry cadence and it keeps recovery prompt.
	Backoff time.Duration

	// Dial is injectable for tests; defaults to a plain TCP dial.
	Dial func(ctx context.Context) (net.Conn, error)

	// OnState is called on every lifecycle transition, if set.
	OnState func(s State)

	pacer   *Pacer
	handler Handler

	mu   sync.Mutex // guards sock for writes; sock is replaced on reconnect
	sock net.Conn

	sendQ chan outbound
}

// NewConn builds a connection manager. The handler is invoked inline from
// the read loop, so it must hand slow work to its own goroutines.
func NewConn(nick, token string, channels []string, pacer *Pacer, handler Handler) *Conn {
	addr := os.Getenv("IRC_ADDR")
	if addr == "" {
		addr = DefaultAddr
	}
	c := &Conn{
		Addr:     addr,
		Nick:     nick,
		Token:    token,
		Channels: channels,
		Backoff:  5 * time.Second,
		pacer:    pacer,
		handler:  handler,
		sendQ:    make(chan outbound, 256),
	}
	c.Dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", c.Addr)
	}
	return c
}

func (c *Conn) setState(s State) {
	if c.OnState != nil {
		c.OnState(s)
	}
}

// Run connects and reads until ctx is cancelled. The reconnect loop is
// unbounded; a connect or read failure transitions back to Disconnected,
// waits the fixed backoff and tries again.
func (c *Conn) Run(ctx context.Context) {
	go c.pacedSender(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)
		slog.Info("irc connecting", slog.String("addr", c.Addr), slog.String("nick", c.Nick))
		if err := c.connectAndRead(ctx); err != nil {
			telemetry.Reconnects.Inc()
			slog.Warn("irc disconnected", slog.Any("err", err))
		}
		c.setState(StateDisconnected)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.Backoff):
		}
	}
}

func (c *Conn) connectAndRead(ctx context.Context) error {
	sock, err := c.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.mu.Lock()
	c.sock = sock // replaced, never mutated in place
	c.mu.Unlock()
	defer func() {
		_ = sock.Close()
		c.mu.Lock()
		c.sock = nil
		c.mu.Unlock()
	}()

	c.mu.Lock()
	token := c.Token
	c.mu.Unlock()
	if err := c.SendRaw(Pass(token)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.SendRaw(Nick(c.Nick)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	c.setState(StateAuthenticated)
	for _, ch := range c.Channels {
		if err := c.SendRaw(Join(ch)); err != nil {
			return fmt.Errorf("join #%s: %w", ch, err)
		}
	}
	c.setState(StateJoined)
	slog.Info("irc joined", slog.Any("channels", c.Channels))

	c.setState(StateReading)
	reader := bufio.NewReader(sock)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handleLine(strings.TrimRight(raw, "\r\n"))
	}
}

func (c *Conn) handleLine(line string) {
	if line == "" {
		return
	}
	ev, ok := Parse(line)
	if !ok {
		slog.Debug("irc unrecognized line", slog.String("line", line))
		return
	}
	telemetry.LinesParsed.Inc()
	if ev.Kind == EventPing {
		if err := c.SendRaw(Pong(ev.Token)); err != nil {
			slog.Warn("pong failed", slog.Any("err", err))
		}
		return
	}
	c.handler(ev)
}

// SetToken replaces the auth token used on the next reconnect. Called by
// the OAuth refresher when a rotation lands.
func (c *Conn) SetToken(token string) {
	c.mu.Lock()
	c.Token = token
	c.mu.Unlock()
}

// SendRaw writes one wire line immediately under the write lock. Used for
// PONG, JOIN/PART control and the raid invasion sequence; paced chat goes
// through Send.
func (c *Conn) SendRaw(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return fmt.Errorf("not connected")
	}
	_, err := c.sock.Write([]byte(line))
	return err
}

// Send fragments text through the pacer and queues each fragment for the
// single paced sender. An empty channel broadcasts to every configured
// channel.
func (c *Conn) Send(channel, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	targets := []string{channel}
	if channel == "" {
		targets = c.Channels
	}
	for _, frag := range c.pacer.Chunk(text) {
		for _, ch := range targets {
			select {
			case c.sendQ <- outbound{channel: ch, frag: frag}:
			default:
				telemetry.SendsDropped.Inc()
				slog.Warn("send queue full, dropping fragment", slog.String("channel", ch))
			}
		}
	}
}

// pacedSender is the single consumer of the delay-annotated send queue.
// It waits each fragment's delay before writing, so bursty producers are
// smoothed into the host's rate limits instead of spawning a sleeper per
// message.
func (c *Conn) pacedSender(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ob := <-c.sendQ:
			select {
			case <-ctx.Done():
				return
			case <-time.After(ob.frag.Delay):
			}
			if err := c.SendRaw(Privmsg(ob.channel, ob.frag.Text)); err != nil {
				slog.Warn("send failed", slog.String("channel", ob.channel), slog.Any("err", err))
				continue
			}
			telemetry.MessagesSent.Inc()
			slog.Debug("sent", slog.String("channel", ob.channel), slog.Int("len", len(ob.frag.Text)))
		}
	}
}
