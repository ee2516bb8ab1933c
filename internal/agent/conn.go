package agent

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Conn wraps one agent WebSocket with a buffered write queue drained by
// a single write pump, so the read loop's replies and external command
// dispatch never interleave writes on the socket.
type Conn struct {
	ws           *websocket.Conn
	queue        chan any
	closed       chan struct{}
	once         sync.Once
	writeTimeout time.Duration
	logger       *zap.Logger
}

func newConn(ws *websocket.Conn, queueSize int, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	return &Conn{
		ws:           ws,
		queue:        make(chan any, queueSize),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Enqueue schedules a message on the write queue. Returns false once the
// connection is closing or when the queue is full; it never blocks.
func (c *Conn) Enqueue(msg any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.queue <- msg:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// Close tears the connection down with a best-effort close handshake.
// Safe to call from any goroutine, any number of times.
func (c *Conn) Close(reason string) {
	c.once.Do(func() {
		close(c.closed)
		// The peer may already be gone; the handshake failing is fine.
		_ = c.ws.Close(websocket.StatusNormalClosure, reason)
	})
}

// writePump drains the queue onto the socket until the connection closes.
func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.queue:
			writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := wsjson.Write(writeCtx, c.ws, msg)
			cancel()
			if err != nil {
				c.logger.Debug("agent write failed", zap.Error(err))
				c.Close("write failed")
				return
			}
		}
	}
}
