// Package livechannel is the room-scoped push connection to the chat
// service. A Channel is one connection instance: Idle -> Connecting -> Open
// -> Closed. Closed is terminal; reconnecting means creating a new Channel.
package livechannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"linguachat/client/internal/config"

	"github.com/gorilla/websocket"
)

var (
	ErrNotOpen        = errors.New("live channel is not open")
	ErrSendQueueFull  = errors.New("live channel send queue is full")
	ErrAlreadyStarted = errors.New("live channel already started")
	ErrClosed         = errors.New("live channel closed")
)

// Sink receives the channel events in delivery order. It is called from the
// channel goroutines and must not block.
type Sink func(Event)

// Config holds the connection parameters shared by all channels.
type Config struct {
	// BaseURL is the ws:// or wss:// origin of the chat service.
	BaseURL          string
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

// Channel is a single live connection for one room context.
type Channel struct {
	cfg   Config
	meta  Meta
	token string
	sink  Sink
	log   *slog.Logger

	// emitMu orders state transitions and deliveries to the sink.
	emitMu sync.Mutex

	mu    sync.Mutex
	state State
	err   error
	conn  *websocket.Conn

	send     chan []byte
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Idle channel for room. generation tags every event.
func New(cfg Config, roomID string, generation uint64, token string, sink Sink, log *slog.Logger) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = config.HandshakeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	return &Channel{
		cfg:   cfg,
		meta:  Meta{RoomID: roomID, Generation: generation},
		token: token,
		sink:  sink,
		log:   log.With("room", roomID, "generation", generation),
		state: StateIdle,
		send:  make(chan []byte, config.SendQueueSize),
		stop:  make(chan struct{}),
	}
}

// URL returns the websocket endpoint of the channel's room.
func (c *Channel) URL() string {
	query := url.Values{"token": {c.token}}
	return fmt.Sprintf("%s/ws/chat/%s/?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.meta.RoomID), query.Encode())
}

// State returns the current state and, for Closed, the termination error.
func (c *Channel) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

// Connect performs the handshake. It moves the channel to Open, or to
// Closed with the handshake error.
func (c *Channel) Connect(ctx context.Context) error {
	if !c.transition(StateIdle, StateConnecting, nil) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		err = fmt.Errorf("connect to room %s: %w", c.meta.RoomID, err)
		c.log.Warn("Live channel handshake failed", "error", err)
		c.transition(StateConnecting, StateClosed, err)
		c.shutdown()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(StateConnecting, StateOpen, nil) {
		// Close was called during the handshake.
		_ = conn.Close()
		return ErrClosed
	}
	c.log.Info("Live channel open")

	c.wg.Add(2)
	go c.writePump(conn)
	go c.readPump(conn)
	return nil
}

// Send queues text for delivery. It fails with ErrNotOpen unless the
// channel is Open; nothing is written in that case.
func (c *Channel) Send(text string) error {
	frame, err := encodeFrame(text)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return fmt.Errorf("%w (state %s)", ErrNotOpen, c.state)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close releases the connection. It is safe to call more than once and in
// any state.
func (c *Channel) Close() error {
	c.emitMu.Lock()
	c.mu.Lock()
	prev := c.state
	if prev != StateClosed {
		c.state = StateClosed
		c.err = nil
	}
	c.mu.Unlock()
	if prev != StateClosed {
		c.sink(StateChange{Meta: c.meta, State: StateClosed})
	}
	c.emitMu.Unlock()

	c.shutdown()
	if prev != StateClosed {
		c.log.Info("Live channel closed")
	}
	return nil
}

// Wait blocks until the pumps have exited.
func (c *Channel) Wait() {
	c.wg.Wait()
}

// transition moves from -> to and emits the StateChange. It reports false
// when the channel was not in state from.
func (c *Channel) transition(from, to State, err error) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.err = err
	c.mu.Unlock()

	c.sink(StateChange{Meta: c.meta, State: to, Err: err})
	return true
}

// deliver hands an inbound event to the sink unless the channel has left
// the Open state.
func (c *Channel) deliver(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	open := c.state == StateOpen
	c.mu.Unlock()
	if open {
		c.sink(ev)
	}
}

func (c *Channel) shutdown() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Channel) readPump(conn *websocket.Conn) {
	defer func() {
		c.shutdown()
		c.wg.Done()
	}()

	conn.SetReadLimit(config.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.terminate(err)
			return
		}

		ev, err := decodeFrame(c.meta, data)
		if err != nil {
			c.log.Warn("Ignoring inbound frame", "error", err)
			continue
		}
		if u, ok := ev.(Unrecognized); ok {
			c.log.Info("Ignoring unrecognized event kind", "kind", u.Kind)
		}
		c.deliver(ev)
	}
}

// terminate records the end of the read side. A local Close already moved
// the channel to Closed; otherwise normal close codes end without error.
func (c *Channel) terminate(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	} else {
		err = fmt.Errorf("live channel of room %s terminated: %w", c.meta.RoomID, err)
	}
	if c.transition(StateOpen, StateClosed, err) {
		if err != nil {
			c.log.Warn("Live channel closed abnormally", "error", err)
		} else {
			c.log.Info("Live channel closed by server")
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Live channel write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.stop:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(config.WriteWait))
			return
		}
	}
}
