package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/logging"
	"github.com/Iron-Ham/drawbridge/internal/protocol"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the read side waits for any frame, pongs included.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps one inbound frame. Export replies carry the whole
	// diagram, embedded images included.
	maxMessageSize = 32 << 20

	// sendBuffer is the number of outbound messages queued per channel.
	sendBuffer = 16
)

// wsTransport is the editor channel of one session: a WebSocket with its own
// read and write goroutines.
type wsTransport struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	origin  string
	source  string
	logger  *logging.Logger
}

func newWSTransport(conn *websocket.Conn, origin, source string, limiter *rate.Limiter, logger *logging.Logger) *wsTransport {
	return &wsTransport{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: limiter,
		origin:  origin,
		source:  source,
		logger:  logger,
	}
}

// Send queues msg for the write pump. It never blocks: a full queue or a
// closed channel is an error.
func (t *wsTransport) Send(msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-t.done:
		return errors.NewSessionError("editor channel closed", errors.ErrSessionClosed).WithInstanceID(t.source)
	default:
	}
	select {
	case t.send <- data:
		return nil
	case <-t.done:
		return errors.NewSessionError("editor channel closed", errors.ErrSessionClosed).WithInstanceID(t.source)
	default:
		return errors.NewSessionError("editor send queue full", errors.ErrOperationFailed).WithInstanceID(t.source)
	}
}

// Close signals both pumps to stop. It is safe to call more than once.
func (t *wsTransport) Close() error {
	t.once.Do(func() {
		close(t.done)
	})
	return nil
}

// writePump drains the send queue and pings the editor. It owns all writes
// to the connection and closes it on exit.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = t.conn.Close()
	}()

	for {
		select {
		case <-t.done:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return

		case data := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				t.logger.Debug("editor write failed", "error", err)
				t.Close() //nolint:errcheck
				return
			}

		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.Close() //nolint:errcheck
				return
			}
		}
	}
}

// readPump reads frames until the connection fails or the transport is
// closed, handing each one to deliver. Inbound frames are rate limited by
// waiting, never by dropping.
func (t *wsTransport) readPump(ctx context.Context, deliver func(context.Context, protocol.Envelope)) {
	defer t.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	t.conn.SetReadLimit(maxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Debug("editor read failed", "error", err)
			}
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
		}
		deliver(ctx, protocol.Envelope{Origin: t.origin, Source: t.source, Raw: data})
	}
}
