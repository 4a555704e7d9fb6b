// Package metrics provides real-time metrics tracking for the engine.
package metrics

import (
	"sync"
	"time"
)

// decisionHistory caps the decision ring buffer.
const decisionHistory = 100

// Decision records the outcome of one processed trade.
type Decision struct {
	Time    time.Time
	Title   string
	Side    string
	Outcome string
	Result  string // executed | rejected | failed | halted
	Reason  string
	BetUSD  float64
	OrderID string
	TxHash  string
}

// Snapshot is a point-in-time view of engine metrics.
type Snapshot struct {
	TradesSeen        int64
	TradesExecuted    int64
	TradesRejected    int64
	TradesFailed      int64
	RejectionsByCheck map[string]int64

	NetWorthUSD   float64
	DailyPnLUSD   float64
	DailyPnLPct   float64
	DrawdownPct   float64
	OpenPositions int

	BreakerState string
	FeedMode     string
	Uptime       time.Duration
	Decisions    []Decision
}

// Tracker provides thread-safe metrics tracking. The engine goroutine
// writes; the dashboard and exporters read snapshots.
type Tracker struct {
	mu sync.RWMutex

	tradesSeen     int64
	tradesExecuted int64
	tradesRejected int64
	tradesFailed   int64
	rejections     map[string]int64

	netWorthUSD   float64
	dailyPnLUSD   float64
	dailyPnLPct   float64
	drawdownPct   float64
	openPositions int

	breakerState string
	feedMode     string
	startTime    time.Time
	decisions    []Decision
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		rejections:   make(map[string]int64),
		breakerState: "normal",
		feedMode:     "push",
		startTime:    time.Now(),
		decisions:    make([]Decision, 0, decisionHistory),
	}
}

// TradeSeen counts a trade emitted by the feed.
func (t *Tracker) TradeSeen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tradesSeen++
}

// RecordDecision appends a decision and bumps the matching counter.
func (t *Tracker) RecordDecision(d Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch d.Result {
	case "executed":
		t.tradesExecuted++
	case "rejected":
		t.tradesRejected++
		if d.Reason != "" {
			t.rejections[d.Reason]++
		}
	case "failed":
		t.tradesFailed++
	}

	d.Time = time.Now()
	t.decisions = append(t.decisions, d)
	if len(t.decisions) > decisionHistory {
		t.decisions = t.decisions[len(t.decisions)-decisionHistory:]
	}
}

// SetPortfolio updates the portfolio gauges.
func (t *Tracker) SetPortfolio(netWorthUSD, dailyPnLUSD, dailyPnLPct, drawdownPct float64, openPositions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.netWorthUSD = netWorthUSD
	t.dailyPnLUSD = dailyPnLUSD
	t.dailyPnLPct = dailyPnLPct
	t.drawdownPct = drawdownPct
	t.openPositions = openPositions
}

// SetBreakerState records the circuit breaker state.
func (t *Tracker) SetBreakerState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakerState = state
}

// SetFeedMode records the feed's acquisition mode.
func (t *Tracker) SetFeedMode(mode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.feedMode = mode
}

// Snapshot returns a point-in-time snapshot of metrics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rejCopy := make(map[string]int64, len(t.rejections))
	for k, v := range t.rejections {
		rejCopy[k] = v
	}
	decCopy := make([]Decision, len(t.decisions))
	copy(decCopy, t.decisions)

	return Snapshot{
		TradesSeen:        t.tradesSeen,
		TradesExecuted:    t.tradesExecuted,
		TradesRejected:    t.tradesRejected,
		TradesFailed:      t.tradesFailed,
		RejectionsByCheck: rejCopy,
		NetWorthUSD:       t.netWorthUSD,
		DailyPnLUSD:       t.dailyPnLUSD,
		DailyPnLPct:       t.dailyPnLPct,
		DrawdownPct:       t.drawdownPct,
		OpenPositions:     t.openPositions,
		BreakerState:      t.breakerState,
		FeedMode:          t.feedMode,
		Uptime:            time.Since(t.startTime),
		Decisions:         decCopy,
	}
}
