// Package notify delivers operational alerts through the Telegram Bot API.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	queueSize   = 64
	sendTimeout = 5 * time.Second
)

// Notifier posts messages to a Telegram chat from a single background
// worker. An unconfigured notifier silently drops everything.
type Notifier struct {
	apiURL string
	chatID string
	httpc  *http.Client

	queue    chan message
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type message struct {
	text string
	sent chan struct{}
}

// New creates a notifier. Empty token or chat ID disables delivery.
func New(botToken, chatID string) *Notifier {
	n := &Notifier{
		chatID: chatID,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	if botToken != "" && chatID != "" {
		n.apiURL = "https://api.telegram.org/bot" + botToken + "/sendMessage"
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

// Enabled reports whether messages will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.apiURL != ""
}

// Send queues a message and waits briefly for delivery. A full queue or a
// slow delivery drops the wait, never the caller.
func (n *Notifier) Send(text string) {
	if !n.Enabled() {
		return
	}

	msg := message{text: text, sent: make(chan struct{})}
	select {
	case n.queue <- msg:
	default:
		slog.Warn("notification_dropped", "reason", "queue full")
		return
	}

	select {
	case <-msg.sent:
	case <-time.After(sendTimeout):
	case <-n.done:
	}
}

// Close stops the worker after draining queued messages.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() {
		close(n.done)
	})
	n.wg.Wait()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case msg := <-n.queue:
			n.deliver(msg)
		case <-n.done:
			// Drain what was queued before shutdown.
			for {
				select {
				case msg := <-n.queue:
					n.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(msg message) {
	defer close(msg.sent)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    n.chatID,
		"text":       msg.text,
		"parse_mode": "HTML",
	})
	if err != nil {
		slog.Error("notification_encode_failed", "error", err)
		return
	}

	resp, err := n.httpc.Post(n.apiURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("notification_send_failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("notification_send_failed", "status", resp.StatusCode)
	}
}

// escapeHTML escapes the characters Telegram's HTML parse mode reserves.
func escapeHTML(s string) string {
	r := bytes.NewBuffer(make([]byte, 0, len(s)))
	for _, c := range s {
		switch c {
		case '<':
			r.WriteString("&lt;")
		case '>':
			r.WriteString("&gt;")
		case '&':
			r.WriteString("&amp;")
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

func fmtUSD(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
