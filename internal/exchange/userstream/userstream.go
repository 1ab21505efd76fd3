// Package userstream listens to the exchange's account user-data-stream
// (order fills, position updates) over a websocket, so the reconciler can
// react to fills immediately instead of waiting for its next poll tick.
// Reconciliation via REST polling (internal/reconcile) remains the source
// of truth per spec §4.I; this stream is informational-only and never the
// sole path to detecting a fill. Grounded on the teacher's
// pkg/smartconnect.SmartWebSocketV3 dial/read-loop/reconnect shape, rebuilt
// around JSON text frames instead of Angel One's binary tick protocol.
package userstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 15 * time.Second
	reconnectBase = 2 * time.Second
	reconnectMax  = 30 * time.Second
)

// Event is a decoded account-update or order-update message. Fields are a
// deliberately loose subset: the reconciler only uses it to wake up early,
// never to mutate state directly.
type Event struct {
	EventType string `json:"e"`
	OrderID   string `json:"i"`
	Symbol    string `json:"s"`
	Status    string `json:"X"`
}

// Listener maintains a reconnecting websocket connection to a listen-key
// URL and decodes incoming JSON frames into Events.
type Listener struct {
	url string
	log *slog.Logger

	dialer *websocket.Dialer
}

// New builds a Listener for the given listen-key stream URL (caller is
// responsible for obtaining/renewing the listen key via the REST client).
func New(streamURL string, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{url: streamURL, log: log, dialer: websocket.DefaultDialer}
}

// Run connects and forwards decoded events onto out until ctx is cancelled,
// reconnecting with exponential backoff on any read/dial error.
func (l *Listener) Run(ctx context.Context, out chan<- Event) error {
	backoff := reconnectBase
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.connectAndRead(ctx, out); err != nil {
			l.log.Warn("user stream disconnected, reconnecting", "err", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (l *Listener) connectAndRead(ctx context.Context, out chan<- Event) error {
	conn, resp, err := l.dialer.DialContext(ctx, l.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if resp != nil {
		l.log.Debug("user stream connected", "status", resp.Status)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			<-done
			return fmt.Errorf("read: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			l.log.Warn("dropping undecodable user stream frame", "err", err)
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
