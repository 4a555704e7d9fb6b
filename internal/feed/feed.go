package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Mode identifies the active acquisition strategy.
type Mode int32

const (
	// ModePush streams trades over the live-data websocket.
	ModePush Mode = iota
	// ModePull polls the Data API activity endpoint.
	ModePull
)

// String returns the mode name for logging.
func (m Mode) String() string {
	if m == ModePush {
		return "push"
	}
	return "pull"
}

const (
	// DefaultBuffer is the size of the outbound event channel.
	DefaultBuffer = 256
	// DefaultPollLimit is how many recent activity records each poll requests.
	DefaultPollLimit = 10
	// stopJoinTimeout bounds how long Stop waits for background work; a
	// leaked goroutine is accepted over hanging shutdown.
	stopJoinTimeout = 5 * time.Second
)

// Options configures a Feed.
type Options struct {
	Target         string
	WSURL          string
	DataAPIURL     string
	UseStream      bool
	ReconnectDelay time.Duration
	MaxReconnects  int
	PollInterval   time.Duration
	PollLimit      int
	Buffer         int
}

// Feed emits deduplicated trade events from the tracked account on its
// Events channel. It starts in push mode (when enabled) and permanently
// fails over to pull mode once the reconnection budget is exhausted.
type Feed struct {
	target         string
	wsURL          string
	dataAPI        string
	reconnectDelay time.Duration
	maxReconnects  int
	pollInterval   time.Duration
	pollLimit      int

	out    chan TradeEvent
	window *Window
	httpc  *http.Client

	mode     atomic.Int32
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	connMu sync.Mutex
	conn   wsConn

	now func() time.Time
}

// New creates a Feed for the given tracked account.
func New(opts Options) *Feed {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.PollLimit <= 0 {
		opts.PollLimit = DefaultPollLimit
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}

	f := &Feed{
		target:         strings.ToLower(opts.Target),
		wsURL:          opts.WSURL,
		dataAPI:        strings.TrimSuffix(opts.DataAPIURL, "/"),
		reconnectDelay: opts.ReconnectDelay,
		maxReconnects:  opts.MaxReconnects,
		pollInterval:   opts.PollInterval,
		pollLimit:      opts.PollLimit,
		out:            make(chan TradeEvent, opts.Buffer),
		window:         NewWindow(DefaultWindowLimit),
		httpc:          &http.Client{Timeout: 5 * time.Second},
		stopChan:       make(chan struct{}),
		now:            time.Now,
	}
	if !opts.UseStream {
		f.mode.Store(int32(ModePull))
	}
	return f
}

// Events returns the channel trade events are emitted on.
func (f *Feed) Events() <-chan TradeEvent {
	return f.out
}

// Mode returns the currently active acquisition strategy.
func (f *Feed) Mode() Mode {
	return Mode(f.mode.Load())
}

// Start begins event acquisition in the background.
func (f *Feed) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.run(ctx)
}

// Stop terminates acquisition and joins background work within a bounded
// timeout.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopChan)
	})
	f.closeConnection()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("feed_stopped")
	case <-time.After(stopJoinTimeout):
		slog.Warn("feed_stop_timeout", "timeout", stopJoinTimeout)
	}
}

// run drives the active strategy, switching to pull mode for the remainder
// of the process lifetime once the stream's reconnection budget is spent.
func (f *Feed) run(ctx context.Context) {
	defer f.wg.Done()

	if f.Mode() == ModePush {
		if !f.runStream(ctx) {
			return
		}
		f.mode.Store(int32(ModePull))
		slog.Warn("feed_failover", "mode", "pull", "reason", "stream reconnect budget exhausted")
	}

	f.runPoller(ctx)
}

// accept filters an event to the tracked account, applies deduplication,
// and emits it. Returns true if the event was emitted.
func (f *Feed) accept(ev TradeEvent) bool {
	if ev.Trader != f.target {
		return false
	}
	if !f.window.Accept(ev.TxHash, ev.Timestamp) {
		return false
	}

	select {
	case f.out <- ev:
		slog.Debug("trade_detected",
			"tx", truncate(ev.TxHash, 14),
			"side", ev.Side,
			"size", ev.Size,
			"price", ev.Price,
			"market", truncate(ev.Title, 40),
		)
		return true
	case <-f.stopChan:
		return false
	}
}

// acceptBatch orders a batch oldest-first and accepts each event in turn.
func (f *Feed) acceptBatch(events []TradeEvent) {
	sortByTimestamp(events)
	for _, ev := range events {
		f.accept(ev)
	}
}

// stopped reports whether shutdown has been requested.
func (f *Feed) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-f.stopChan:
		return true
	default:
		return false
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
