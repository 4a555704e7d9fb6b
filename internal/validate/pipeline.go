// Package validate runs each observed trade through the ordered gate of
// copy-safety checks.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/polycopy/engine/internal/config"
	"github.com/polycopy/engine/internal/feed"
	"github.com/polycopy/engine/internal/market"
	"github.com/polycopy/engine/internal/portfolio"
)

// Outcome is the result of validating one trade.
type Outcome struct {
	OK       bool
	Check    string
	Reason   string
	Snapshot *market.Snapshot
	BetUSD   float64
}

// check is one gate in the pipeline. Checks are pure over the prepared
// evaluation state.
type check struct {
	name string
	run  func(*evaluation) (bool, string)
}

// evaluation carries everything a check may consult.
type evaluation struct {
	trade    *feed.TradeEvent
	snapshot *market.Snapshot
	theirNW  float64
	ourNW    float64
	betUSD   float64
	now      time.Time
}

// Pipeline validates trades against market state, portfolio state and the
// configured limits.
//
// Pipeline is not safe for concurrent use.
type Pipeline struct {
	cfg     *config.Config
	markets *market.Cache
	tracker *portfolio.Tracker
	sizer   portfolio.Sizer
	checks  []check
	now     func() time.Time
}

// NewPipeline wires the pipeline to its collaborators.
func NewPipeline(cfg *config.Config, markets *market.Cache, tracker *portfolio.Tracker, sizer portfolio.Sizer) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		markets: markets,
		tracker: tracker,
		sizer:   sizer,
		now:     time.Now,
	}
	p.checks = []check{
		{"price_sanity", p.checkPriceSanity},
		{"outcome_match", passAlways},
		{"duplicate", passAlways},
		{"market_open", p.checkMarketOpen},
		{"time_to_close", p.checkTimeToClose},
		{"volume", p.checkVolume},
		{"spread", passAlways},
		{"trade_age", p.checkTradeAge},
		{"rate_limit", p.checkRateLimit},
		{"daily_loss", p.checkDailyLoss},
		{"drawdown", p.checkDrawdown},
		{"min_edge", p.checkMinEdge},
		{"position_limits", p.checkPositionLimits},
		{"price_movement", p.checkPriceMovement},
	}
	return p
}

// Validate runs the checks in order and stops at the first failure.
// theirNetWorth is the tracked account's estimated net worth; ourNetWorth
// is ours.
func (p *Pipeline) Validate(ctx context.Context, trade *feed.TradeEvent, theirNetWorth, ourNetWorth float64) Outcome {
	ev, out, ok := p.prepare(ctx, trade, theirNetWorth, ourNetWorth)
	if !ok {
		return out
	}

	for _, c := range p.checks {
		if passed, reason := c.run(ev); !passed {
			slog.Debug("trade_rejected",
				"check", c.name,
				"reason", reason,
				"tx_hash", shortHash(trade.TxHash))
			return Outcome{OK: false, Check: c.name, Reason: reason, Snapshot: ev.snapshot}
		}
	}

	return Outcome{OK: true, Snapshot: ev.snapshot, BetUSD: ev.betUSD}
}

// Diagnose runs every check without short-circuiting and returns all
// failures. Used to enrich rejection notifications; Validate remains the
// decision authority.
func (p *Pipeline) Diagnose(ctx context.Context, trade *feed.TradeEvent, theirNetWorth, ourNetWorth float64) []Outcome {
	ev, out, ok := p.prepare(ctx, trade, theirNetWorth, ourNetWorth)
	if !ok {
		return []Outcome{out}
	}

	var failures []Outcome
	for _, c := range p.checks {
		if passed, reason := c.run(ev); !passed {
			failures = append(failures, Outcome{Check: c.name, Reason: reason})
		}
	}
	return failures
}

// prepare resolves market data and the proposed bet size. A market data
// failure is itself the first check.
func (p *Pipeline) prepare(ctx context.Context, trade *feed.TradeEvent, theirNetWorth, ourNetWorth float64) (*evaluation, Outcome, bool) {
	snap, err := p.markets.Get(ctx, trade.ConditionID)
	if err != nil {
		return nil, Outcome{
			OK:     false,
			Check:  "market_data",
			Reason: fmt.Sprintf("market data unavailable: %v", err),
		}, false
	}

	return &evaluation{
		trade:    trade,
		snapshot: snap,
		theirNW:  theirNetWorth,
		ourNW:    ourNetWorth,
		betUSD:   p.sizer.Size(trade.NotionalUSD(), theirNetWorth, ourNetWorth),
		now:      p.now(),
	}, Outcome{}, true
}

func passAlways(*evaluation) (bool, string) {
	return true, ""
}

func (p *Pipeline) checkPriceSanity(ev *evaluation) (bool, string) {
	price := ev.trade.Price
	if price < p.cfg.MinPrice || price > p.cfg.MaxPrice {
		return false, fmt.Sprintf("price %.4f outside [%.2f, %.2f]",
			price, p.cfg.MinPrice, p.cfg.MaxPrice)
	}
	return true, ""
}

func (p *Pipeline) checkMarketOpen(ev *evaluation) (bool, string) {
	if ev.snapshot.Closed {
		return false, "market is closed"
	}
	return true, ""
}

func (p *Pipeline) checkTimeToClose(ev *evaluation) (bool, string) {
	hours, ok := ev.snapshot.HoursUntilClose(ev.now)
	if !ok {
		return true, ""
	}
	if hours < p.cfg.MinHoursUntilClose {
		return false, fmt.Sprintf("market closes in %.1fh, minimum %.1fh",
			hours, p.cfg.MinHoursUntilClose)
	}
	return true, ""
}

func (p *Pipeline) checkVolume(ev *evaluation) (bool, string) {
	if ev.snapshot.Volume24h < p.cfg.Min24hVolumeUSD {
		return false, fmt.Sprintf("24h volume $%.0f below minimum $%.0f",
			ev.snapshot.Volume24h, p.cfg.Min24hVolumeUSD)
	}
	return true, ""
}

func (p *Pipeline) checkTradeAge(ev *evaluation) (bool, string) {
	age := ev.trade.Age(ev.now)
	if age > p.cfg.MaxTradeAge {
		return false, fmt.Sprintf("trade is %s old, maximum %s",
			age.Round(time.Second), p.cfg.MaxTradeAge)
	}
	return true, ""
}

func (p *Pipeline) checkRateLimit(ev *evaluation) (bool, string) {
	if n := p.tracker.TradesLastHour(); n >= p.cfg.MaxTradesPerHour {
		return false, fmt.Sprintf("%d trades in the last hour, cap %d",
			n, p.cfg.MaxTradesPerHour)
	}
	if last := p.tracker.LastTradeTime(); !last.IsZero() {
		if since := ev.now.Sub(last); since < p.cfg.MinTradeInterval {
			return false, fmt.Sprintf("last trade %s ago, minimum interval %s",
				since.Round(time.Second), p.cfg.MinTradeInterval)
		}
	}
	return true, ""
}

func (p *Pipeline) checkDailyLoss(ev *evaluation) (bool, string) {
	pct := p.tracker.DailyPnLPct()
	if pct <= -p.cfg.DailyLossLimitPct {
		return false, fmt.Sprintf("daily loss %.1f%% at limit %.1f%%",
			-pct, p.cfg.DailyLossLimitPct)
	}
	return true, ""
}

func (p *Pipeline) checkDrawdown(ev *evaluation) (bool, string) {
	pct := p.tracker.DrawdownPct()
	if pct > p.cfg.MaxDrawdownPct {
		return false, fmt.Sprintf("drawdown %.1f%% over limit %.1f%%",
			pct, p.cfg.MaxDrawdownPct)
	}
	return true, ""
}

// checkMinEdge compares the trade price to the current snapshot price,
// signed by side: a buyer wants the current price at or below what the
// target paid, a seller wants it at or above. An unresolvable current
// price fails; an unverifiable edge is not a pass.
func (p *Pipeline) checkMinEdge(ev *evaluation) (bool, string) {
	current, ok := ev.snapshot.TokenPrice(ev.trade.Asset)
	if !ok {
		return false, "current price unavailable for outcome token"
	}

	movePct := (current - ev.trade.Price) / ev.trade.Price * 100
	edge := -movePct
	if ev.trade.Side == "SELL" {
		edge = movePct
	}
	if edge < p.cfg.MinEdgePct {
		return false, fmt.Sprintf("edge %.2f%% below minimum %.2f%%",
			edge, p.cfg.MinEdgePct)
	}
	return true, ""
}

func (p *Pipeline) checkPositionLimits(ev *evaluation) (bool, string) {
	if p.tracker.HasPosition(ev.trade.ConditionID) {
		return false, "already holding a position in this market"
	}
	if ev.betUSD <= 0 {
		return false, "sized bet is zero"
	}
	if ev.betUSD < p.cfg.MinBetSizeUSD || ev.betUSD > p.cfg.MaxBetSizeUSD {
		return false, fmt.Sprintf("sized bet $%.2f outside [$%.2f, $%.2f]",
			ev.betUSD, p.cfg.MinBetSizeUSD, p.cfg.MaxBetSizeUSD)
	}
	return true, ""
}

func (p *Pipeline) checkPriceMovement(ev *evaluation) (bool, string) {
	current, ok := ev.snapshot.TokenPrice(ev.trade.Asset)
	if !ok {
		return false, "current price unavailable for outcome token"
	}

	movePct := math.Abs(current-ev.trade.Price) / ev.trade.Price * 100
	if movePct > p.cfg.MaxPriceMovementPct {
		return false, fmt.Sprintf("price moved %.1f%% since the trade, maximum %.1f%%",
			movePct, p.cfg.MaxPriceMovementPct)
	}
	return true, ""
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10] + ".."
}
