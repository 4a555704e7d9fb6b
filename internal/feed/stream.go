package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
)

// wsConn is the slice of *websocket.Conn the stream uses; tests substitute it.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// dialFunc opens a websocket connection; overridden in tests.
var dialStream = func(ctx context.Context, url string) (wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

// runStream consumes the live-data activity stream. Reconnection uses a
// fixed delay with a capped attempt count; the counter resets on a
// successful connection. Returns true when the budget is exhausted and the
// feed should fail over to pull mode, false when shutdown was requested.
func (f *Feed) runStream(ctx context.Context) bool {
	attempts := 0

	for {
		if f.stopped(ctx) {
			return false
		}
		if attempts >= f.maxReconnects {
			slog.Error("ws_reconnects_exhausted", "attempts", attempts)
			return true
		}

		if err := f.connect(ctx); err != nil {
			attempts++
			slog.Error("ws_connect_failed", "error", err, "attempt", attempts, "max", f.maxReconnects)
			f.waitReconnect(ctx)
			continue
		}
		attempts = 0

		if err := f.readLoop(ctx); err != nil {
			slog.Warn("ws_read_error", "error", err)
		}
		f.closeConnection()

		if f.stopped(ctx) {
			return false
		}
		attempts++
		f.waitReconnect(ctx)
	}
}

// connect dials the stream and subscribes to the tracked account's trade
// activity topic.
func (f *Feed) connect(ctx context.Context) error {
	conn, err := dialStream(ctx, f.wsURL)
	if err != nil {
		return err
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	if err := f.subscribe(); err != nil {
		f.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	slog.Info("ws_connected", "endpoint", f.wsURL, "target", f.target)
	return nil
}

// subscribe sends the trade-activity subscription message.
func (f *Feed) subscribe() error {
	msg := map[string]interface{}{
		"action": "subscribe",
		"subscriptions": []map[string]string{
			{"topic": "activity", "type": "trades"},
		},
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(msg)
}

// readLoop reads stream messages until an error or shutdown.
func (f *Feed) readLoop(ctx context.Context) error {
	for {
		if f.stopped(ctx) {
			return nil
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		f.handleMessage(message)
	}
}

// handleMessage parses a stream message and dispatches any trade events.
func (f *Feed) handleMessage(data []byte) {
	events, msgType, err := parseStreamMessage(data)
	if err != nil {
		slog.Debug("ws_parse_error", "error", err, "raw", truncate(string(data), 200))
		return
	}
	if len(events) == 0 {
		if msgType != "" {
			slog.Debug("ws_message", "type", msgType)
		}
		return
	}
	f.acceptBatch(events)
}

// closeConnection safely closes the websocket connection.
func (f *Feed) closeConnection() {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
		slog.Info("ws_disconnected")
	}
}

// waitReconnect sleeps the fixed reconnect delay, honoring shutdown.
func (f *Feed) waitReconnect(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-f.stopChan:
	case <-time.After(f.reconnectDelay):
	}
}
