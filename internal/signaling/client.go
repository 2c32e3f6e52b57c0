// Package signaling implements the websocket transport that carries call
// signalling between peers: a client that keeps one live hub connection for
// the session layer, and a rendezvous hub that relays call messages by their
// envelope.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// ClientConfig holds configuration for a signaling Client.
type ClientConfig struct {
	// ServerURL is the WebSocket URL of the signaling hub (e.g. "ws://localhost:8090").
	ServerURL string

	// PeerID is this client's identifier, announced on join and used by the
	// hub to route call envelopes.
	PeerID string

	// TokenProvider returns the bearer token for the hub, consulted on every
	// dial so a refreshed token is picked up automatically. Nil means no
	// Authorization header.
	TokenProvider func() string

	// OnAuthFailure runs when the hub rejects a rejoin dial with HTTP 401.
	// It should refresh credentials; on success the next dial happens
	// without backoff. Nil treats 401 like any other dial failure. A 401 on
	// the initial Connect dial is returned as an error without calling it.
	OnAuthFailure func() error

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// InboundBuffer is the capacity of the inbound message channel.
	// Defaults to 64 if zero.
	InboundBuffer int

	// DialTimeout bounds each dial attempt. Defaults to 10s if zero.
	DialTimeout time.Duration

	// Reconnect controls what happens when the hub connection drops.
	Reconnect ReconnectConfig
}

// ReconnectConfig tunes the rejoin behavior after a lost connection.
//
// The engine treats a failed signalling send as fatal for the affected call
// (SignallingFailed), so the client does not buffer or replay writes across
// a reconnect; it only restores the hub session for subsequent calls. The
// rejoin schedule therefore needs no coordination with call timeouts — a
// call that could not signal is already gone.
type ReconnectConfig struct {
	// Enabled turns automatic rejoin on.
	Enabled bool

	// BaseDelay seeds the doubling backoff schedule. Defaults to 1s.
	BaseDelay time.Duration

	// MaxDelay caps the schedule. Defaults to 30s.
	MaxDelay time.Duration

	// MaxAttempts bounds rejoin attempts per outage. Zero means unlimited.
	MaxAttempts int
}

// Client maintains the websocket session with the hub. Inbound messages are
// decoded and delivered on Messages(); outbound messages go through Send,
// which fails fast while the connection is down.
//
// Connect may be called once per Client.
type Client struct {
	cfg     ClientConfig
	log     *slog.Logger
	inbound chan protocol.Message

	// kick requests an immediate, backoff-free rejoin (network change).
	kick chan struct{}

	halt context.CancelFunc
	done chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for the given hub. Call Connect to join.
func NewClient(cfg ClientConfig) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	buffer := cfg.InboundBuffer
	if buffer <= 0 {
		buffer = 64
	}

	return &Client{
		cfg:     cfg,
		log:     log.With("peer_id", cfg.PeerID),
		inbound: make(chan protocol.Message, buffer),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Messages returns the channel of decoded inbound messages. It is closed
// once the client shuts down or gives up rejoining.
func (c *Client) Messages() <-chan protocol.Message {
	return c.inbound
}

// Connect performs the initial dial-and-join synchronously, so the caller
// learns immediately whether the hub is reachable, then starts the receive
// loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	runCtx, halt := context.WithCancel(ctx)
	c.halt = halt

	if err := c.handshake(runCtx); err != nil {
		halt()
		close(c.done)
		return fmt.Errorf("joining signaling hub: %w", err)
	}

	c.log.Info("joined signaling hub", "url", c.cfg.ServerURL)

	go c.run(runCtx)
	return nil
}

// Send encodes and writes one message on the current connection. An error
// means the message was not handed to the hub; callers own any retry
// policy (for call messages, the engine maps this to a send failure).
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.MessageType(), err)
	}

	conn := c.current()
	if conn == nil {
		return errors.New("signaling hub is offline")
	}

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("sending %s: %w", msg.MessageType(), err)
	}

	c.log.Debug("sent message", "type", msg.MessageType())
	return nil
}

// ForceReconnect drops the current connection and rejoins without waiting
// out the backoff. Used when the underlying network changed and the old
// socket is likely dead. Safe from any goroutine; no-op when rejoin is
// disabled.
func (c *Client) ForceReconnect() {
	if !c.cfg.Reconnect.Enabled {
		return
	}

	c.log.Info("immediate rejoin requested")

	select {
	case c.kick <- struct{}{}:
	default:
	}

	// Killing the socket unblocks the receive loop, which rejoins.
	c.dropConn()
}

// Close shuts the client down and waits for the receive loop to finish.
func (c *Client) Close() error {
	if c.halt != nil {
		c.halt()
	}
	<-c.done
	return nil
}

// current returns the live connection, or nil while disconnected.
func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// dropConn closes and forgets the live connection, if any.
func (c *Client) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// handshake dials the hub and announces this peer. On success the
// connection becomes current.
func (c *Client) handshake(ctx context.Context) error {
	dialTimeout := c.cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var opts *websocket.DialOptions
	if c.cfg.TokenProvider != nil {
		if token := c.cfg.TokenProvider(); token != "" {
			opts = &websocket.DialOptions{
				HTTPHeader: http.Header{
					"Authorization": []string{"Bearer " + token},
				},
			}
		}
	}

	conn, _, err := websocket.Dial(dialCtx, c.cfg.ServerURL, opts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.Send(ctx, &protocol.JoinMessage{PeerID: c.cfg.PeerID}); err != nil {
		c.dropConn()
		return fmt.Errorf("announcing peer id: %w", err)
	}
	return nil
}

// run pumps inbound messages until the context ends, rejoining after each
// lost connection when configured. It owns the inbound channel.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.inbound)
	defer c.dropConn()

	for {
		err := c.pump(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		c.log.Warn("signaling connection lost", "error", err)
		c.dropConn()

		if !c.cfg.Reconnect.Enabled {
			return
		}
		if !c.rejoin(ctx) {
			return
		}
	}
}

// pump reads and delivers messages from the current connection until it
// fails. Undecodable frames are dropped, not fatal. Returns nil only on a
// clean context end.
func (c *Client) pump(ctx context.Context) error {
	for {
		conn := c.current()
		if conn == nil {
			return errors.New("connection dropped")
		}

		_, payload, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := protocol.Unmarshal(payload)
		if err != nil {
			c.log.Warn("dropping undecodable message", "error", err)
			continue
		}

		c.log.Debug("received message", "type", msg.MessageType())

		select {
		case c.inbound <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// rejoin re-establishes the hub session, doubling the wait between attempts
// up to the cap. Returns false when the attempt budget or the context ran
// out. A pending ForceReconnect kick, or a successful credential refresh
// after a 401, skips the wait for the next attempt.
func (c *Client) rejoin(ctx context.Context) bool {
	schedule := newBackoff(c.cfg.Reconnect.BaseDelay, c.cfg.Reconnect.MaxDelay)
	maxAttempts := c.cfg.Reconnect.MaxAttempts
	skipWait := c.kicked()

	for attempt := 1; maxAttempts == 0 || attempt <= maxAttempts; attempt++ {
		if skipWait {
			skipWait = false
			c.log.Info("rejoining signaling hub now", "attempt", attempt)
		} else {
			wait := schedule.next()
			c.log.Info("rejoining signaling hub", "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
		}

		err := c.handshake(ctx)
		if err == nil {
			c.log.Info("rejoined signaling hub", "attempt", attempt)
			return true
		}
		c.log.Warn("rejoin failed", "attempt", attempt, "error", err)

		if isAuthRejection(err) && c.cfg.OnAuthFailure != nil {
			c.log.Info("hub rejected credentials, refreshing")
			if refreshErr := c.cfg.OnAuthFailure(); refreshErr != nil {
				c.log.Error("credential refresh failed", "error", refreshErr)
			} else {
				// Fresh credentials deserve a fresh schedule and no wait.
				schedule.reset()
				skipWait = true
			}
		}
	}

	c.log.Error("giving up on signaling hub")
	return false
}

// kicked consumes a pending ForceReconnect signal.
func (c *Client) kicked() bool {
	select {
	case <-c.kick:
		return true
	default:
		return false
	}
}

// isAuthRejection reports whether a dial failed on the hub's HTTP 401.
func isAuthRejection(err error) bool {
	return err != nil && strings.Contains(err.Error(), "401")
}

// backoff yields a doubling wait, capped at max.
type backoff struct {
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return &backoff{base: base, max: max, cur: base}
}

func (b *backoff) next() time.Duration {
	wait := b.cur
	if b.cur < b.max {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	return wait
}

func (b *backoff) reset() {
	b.cur = b.base
}
