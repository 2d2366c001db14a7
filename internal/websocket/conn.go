package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/wsuri"
)

const (
	bufferSize = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// closeGracePeriod bounds the wait for the peer's close frame
	closeGracePeriod = time.Second
)

type message struct {
	messageType int
	data        []byte
}

// Conn implements the wsuri.Conn interface
type Conn struct {
	id           string
	conn         *websocket.Conn
	uri          wsuri.WebSocketURI
	remoteAddr   string
	ctx          context.Context
	cancel       context.CancelFunc
	sendCh       chan message
	recvCh       chan message
	mu           sync.RWMutex
	closed       bool
	closeMsg     []byte
	closing      chan struct{}
	closingOnce  sync.Once
	writeDone    chan struct{}
	readDone     chan struct{}
	local        atomic.Bool
	logger       *slog.Logger
	onDisconnect OnDisconnectFn
}

// NewConn wraps an established connection and starts its read and write pumps
func NewConn(id string, conn *websocket.Conn, u wsuri.WebSocketURI, logger *slog.Logger, onDisconnect OnDisconnectFn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		id:           id,
		conn:         conn,
		uri:          u,
		remoteAddr:   conn.RemoteAddr().String(),
		ctx:          ctx,
		cancel:       cancel,
		sendCh:       make(chan message, bufferSize),
		recvCh:       make(chan message, bufferSize),
		closing:      make(chan struct{}),
		writeDone:    make(chan struct{}),
		readDone:     make(chan struct{}),
		logger:       logger,
		onDisconnect: onDisconnect,
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	go c.readPump()

	return c
}

// ID returns the connection identifier
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer's network address
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// URI returns the URI the connection was dialed with
func (c *Conn) URI() wsuri.WebSocketURI {
	return c.uri
}

// Context returns the connection's lifecycle context
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Send queues a text or binary message for the write pump. A nil error
// means the message will be written before the close frame.
func (c *Conn) Send(ctx context.Context, messageType int, data []byte) error {
	if messageType != wsuri.TextMessage && messageType != wsuri.BinaryMessage {
		return fmt.Errorf("%s: %d", wsuri.ErrUnsupportedType, messageType)
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New(wsuri.ErrConnectionClosed)
	}

	// Keep the lock while sending to prevent race with Close()
	select {
	case c.sendCh <- message{messageType: messageType, data: data}:
		c.mu.RUnlock()
		return nil
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	case <-c.closing:
		c.mu.RUnlock()
		return errors.New(wsuri.ErrConnectionClosed)
	}
}

// Receive returns the next message read from the peer. Messages already
// received are still delivered after the connection closes.
func (c *Conn) Receive(ctx context.Context) (int, []byte, error) {
	select {
	case m, ok := <-c.recvCh:
		if !ok {
			return 0, nil, errors.New(wsuri.ErrConnectionClosed)
		}
		return m.messageType, m.data, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Close closes the connection
func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode flushes the messages already queued by Send, writes a close
// frame with code and reason, then waits for the peer to answer it.
// ctx bounds both waits; when it expires the connection is dropped without
// the remaining messages. Only the first call has an effect.
func (c *Conn) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.local.Store(true)
	return c.shutdown(ctx, code, reason, true)
}

// IsAlive returns true if the connection is still open
func (c *Conn) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// shutdown closes closing before taking the lock so that a Send blocked on
// a full queue releases its read lock. The write pump owns the close frame:
// it is written once sendCh is drained.
func (c *Conn) shutdown(ctx context.Context, code int, reason string, waitPeer bool) error {
	c.closingOnce.Do(func() { close(c.closing) })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMsg = websocket.FormatCloseMessage(code, reason)
	close(c.sendCh)
	c.mu.Unlock()

	select {
	case <-c.writeDone:
	case <-ctx.Done():
		c.logger.Debug("close interrupted before queue drained", "error", ctx.Err())
	}

	if waitPeer {
		timer := time.NewTimer(closeGracePeriod)
		select {
		case <-c.readDone:
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}

	c.cancel()
	return c.conn.Close()
}

// writePump pumps messages from the send channel to the websocket connection
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writeDone)
	}()

	for {
		select {
		case m, ok := <-c.sendCh:
			if !ok {
				// Queue drained, finish with the close frame
				c.conn.WriteControl(websocket.CloseMessage, c.closeMsg, time.Now().Add(writeWait))
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(m.messageType, m.data); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.conn.Close()
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// readPump feeds the receive channel until the connection fails or closes
func (c *Conn) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		c.shutdown(ctx, websocket.CloseNormalClosure, "", false)
		cancel()
		close(c.recvCh)
		close(c.readDone)

		voluntary := c.local.Load()
		c.logger.Info("disconnected", "voluntary", voluntary)
		if c.onDisconnect != nil {
			c.onDisconnect(c, voluntary)
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.local.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("unexpected websocket close", "error", err)
			}
			return
		}

		// Reset read deadline after successful read
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		m := message{messageType: messageType, data: data}
		select {
		case c.recvCh <- m:
		default:
			select {
			case c.recvCh <- m:
			case <-c.closing:
				// Nobody is draining the queue; keep reading until the peer
				// answers the close frame.
			case <-c.ctx.Done():
				return
			}
		}
	}
}
