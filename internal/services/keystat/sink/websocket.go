package sink

import (
	"context"
	"net/http"
	"sync"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"

	"github.com/gorilla/websocket"
)

// WebSocket streams records to a collector as text frames.
// The connection is dialed lazily and redialed after any failure
type WebSocket struct {
	url       string
	dialer    *websocket.Dialer
	writeWait time.Duration
	log       logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket returns a sink for url; nothing is dialed until the first Emit
func NewWebSocket(url string, log logger.Logger) *WebSocket {
	return &WebSocket{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		writeWait: 10 * time.Second,
		log:       log,
	}
}

// Emit writes the record for s, dialing first if needed.
// Dial and write failures are Unavailable so callers may retry
func (w *WebSocket) Emit(ctx context.Context, s domain.Snapshot) error {
	b, err := Encode(s)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "encode record")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		c, _, err := w.dialer.DialContext(ctx, w.url, nil)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "dial %s", w.url)
		}
		w.conn = c
		go w.readPump(c)
		w.log.Info().Str("url", w.url).Msg("collector connected")
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = w.conn.Close()
		w.conn = nil
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "write record")
	}
	return nil
}

// readPump services control frames and notices a peer close
func (w *WebSocket) readPump(c *websocket.Conn) {
	for {
		if _, _, err := c.NextReader(); err != nil {
			_ = c.Close()
			w.mu.Lock()
			if w.conn == c {
				w.conn = nil
			}
			w.mu.Unlock()
			return
		}
	}
}

// Close sends a close frame and drops the connection
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
