// Package portfolio tracks our own capital, positions and rolling
// performance stats.
package portfolio

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Position is an open holding in one market. At most one position exists
// per condition ID; replicated entries into the same market merge.
type Position struct {
	Asset       string
	ConditionID string
	Outcome     string
	Title       string
	Shares      float64
	AvgPrice    float64
	CostUSD     float64
	OpenedAt    time.Time
}

// BalanceSource reports on-chain balances for dynamic bankroll mode.
type BalanceSource interface {
	EstimateNetWorth(ctx context.Context) (float64, error)
}

// Summary is a point-in-time view of the portfolio used by notifications
// and the dashboard.
type Summary struct {
	NetWorth      float64
	Available     float64
	OpenPositions int
	DailyPnL      float64
	DailyPnLPct   float64
	DrawdownPct   float64
	HighWaterMark float64
	TradesToday   int
}

// Tracker maintains positions, spent capital and daily stats.
//
// Tracker is not safe for concurrent use. All mutation happens on the
// engine's single consumer goroutine; the dashboard reads copies published
// through the metrics package.
type Tracker struct {
	mode          string
	fixedBankroll float64
	balances      BalanceSource

	positions map[string]*Position
	spentUSD  float64

	dailyStart    float64
	dailyPnL      float64
	dailyDate     string
	tradesToday   int
	highWaterMark float64
	drawdownPct   float64

	tradeTimes []time.Time

	now func() time.Time
}

// NewTracker creates a tracker. In fixed mode net worth is the configured
// bankroll minus spent capital; dynamic mode queries the balance source.
func NewTracker(mode string, fixedBankroll float64, balances BalanceSource) *Tracker {
	return &Tracker{
		mode:          mode,
		fixedBankroll: fixedBankroll,
		balances:      balances,
		positions:     make(map[string]*Position),
		now:           time.Now,
	}
}

// NetWorth returns our current net worth in USD.
func (t *Tracker) NetWorth(ctx context.Context) (float64, error) {
	if t.mode == "dynamic" && t.balances != nil {
		nw, err := t.balances.EstimateNetWorth(ctx)
		if err != nil {
			return 0, err
		}
		return nw, nil
	}
	// Fixed mode: bankroll plus open position cost basis. Spent capital
	// stays counted at cost until positions are marked or closed.
	return t.fixedBankroll, nil
}

// AvailableCapital returns capital not tied up in open positions.
func (t *Tracker) AvailableCapital(ctx context.Context) (float64, error) {
	nw, err := t.NetWorth(ctx)
	if err != nil {
		return 0, err
	}
	avail := nw - t.spentUSD
	if avail < 0 {
		avail = 0
	}
	return avail, nil
}

// HasPosition reports whether we already hold a position in a market.
func (t *Tracker) HasPosition(conditionID string) bool {
	_, ok := t.positions[conditionID]
	return ok
}

// Position returns our holding in a market, or nil.
func (t *Tracker) Position(conditionID string) *Position {
	return t.positions[conditionID]
}

// AddPosition records a fill, merging into an existing position in the
// same market with a volume-weighted average price.
func (t *Tracker) AddPosition(asset, conditionID, outcome, title string, shares, price, costUSD float64) {
	if pos, ok := t.positions[conditionID]; ok {
		total := pos.Shares + shares
		if total > 0 {
			pos.AvgPrice = (pos.AvgPrice*pos.Shares + price*shares) / total
		}
		pos.Shares = total
		pos.CostUSD += costUSD
		return
	}
	t.positions[conditionID] = &Position{
		Asset:       asset,
		ConditionID: conditionID,
		Outcome:     outcome,
		Title:       title,
		Shares:      shares,
		AvgPrice:    price,
		CostUSD:     costUSD,
		OpenedAt:    t.now(),
	}
}

// RecordTrade charges an executed trade against today's stats and the rate
// limit window.
func (t *Tracker) RecordTrade(costUSD float64) {
	t.spentUSD += costUSD
	t.dailyPnL -= costUSD
	t.tradesToday++

	now := t.now()
	t.tradeTimes = append(t.tradeTimes, now)
	t.pruneTradeTimes(now)
}

// UpdateDailyStats rolls the daily window at UTC midnight. Returns the
// closed day's summary, captured before the reset, and true when a new day
// started.
func (t *Tracker) UpdateDailyStats(netWorth float64) (Summary, bool) {
	today := t.now().UTC().Format("2006-01-02")
	if today == t.dailyDate {
		return Summary{}, false
	}

	rolled := t.dailyDate != ""
	closed := t.Summarize(netWorth)
	if rolled {
		slog.Info("daily_rollover",
			"date", t.dailyDate,
			"pnl_usd", t.dailyPnL,
			"trades", t.tradesToday)
	}

	t.dailyDate = today
	t.dailyStart = netWorth
	t.dailyPnL = 0
	t.tradesToday = 0
	return closed, rolled
}

// DailyPnLPct returns today's profit or loss as a percentage of the day's
// starting net worth.
func (t *Tracker) DailyPnLPct() float64 {
	if t.dailyStart <= 0 {
		return 0
	}
	return t.dailyPnL / t.dailyStart * 100
}

// UpdateDrawdown advances the high-water mark and recomputes drawdown.
func (t *Tracker) UpdateDrawdown(netWorth float64) {
	if netWorth > t.highWaterMark {
		t.highWaterMark = netWorth
	}
	if t.highWaterMark <= 0 {
		t.drawdownPct = 0
		return
	}
	t.drawdownPct = (t.highWaterMark - netWorth) / t.highWaterMark * 100
	if t.drawdownPct < 0 {
		t.drawdownPct = 0
	}
}

// DrawdownPct returns the current drawdown from the high-water mark.
func (t *Tracker) DrawdownPct() float64 {
	return t.drawdownPct
}

// TradesLastHour counts executed trades in the trailing hour.
func (t *Tracker) TradesLastHour() int {
	now := t.now()
	t.pruneTradeTimes(now)
	return len(t.tradeTimes)
}

// LastTradeTime returns the most recent execution time, or zero.
func (t *Tracker) LastTradeTime() time.Time {
	if len(t.tradeTimes) == 0 {
		return time.Time{}
	}
	return t.tradeTimes[len(t.tradeTimes)-1]
}

// Summarize builds a snapshot of current portfolio state.
func (t *Tracker) Summarize(netWorth float64) Summary {
	avail := netWorth - t.spentUSD
	if avail < 0 {
		avail = 0
	}
	return Summary{
		NetWorth:      netWorth,
		Available:     avail,
		OpenPositions: len(t.positions),
		DailyPnL:      t.dailyPnL,
		DailyPnLPct:   t.DailyPnLPct(),
		DrawdownPct:   t.drawdownPct,
		HighWaterMark: t.highWaterMark,
		TradesToday:   t.tradesToday,
	}
}

func (t *Tracker) pruneTradeTimes(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for ; i < len(t.tradeTimes); i++ {
		if t.tradeTimes[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		t.tradeTimes = append(t.tradeTimes[:0], t.tradeTimes[i:]...)
	}
}

// RoundCents rounds a USD amount to whole cents.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
