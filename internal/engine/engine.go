// Package engine runs the control loop that turns observed trades into
// copied orders.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polycopy/engine/internal/config"
	"github.com/polycopy/engine/internal/execute"
	"github.com/polycopy/engine/internal/feed"
	"github.com/polycopy/engine/internal/metrics"
	"github.com/polycopy/engine/internal/notify"
	"github.com/polycopy/engine/internal/portfolio"
	"github.com/polycopy/engine/internal/risk"
	"github.com/polycopy/engine/internal/validate"
)

// TargetEstimator estimates the tracked account's net worth at startup.
type TargetEstimator interface {
	EstimateNetWorth(ctx context.Context) (float64, error)
}

// Options wires the engine to its collaborators.
type Options struct {
	Config   *config.Config
	Feed     *feed.Feed
	Pipeline *validate.Pipeline
	Tracker  *portfolio.Tracker
	Guard    *risk.Guard
	Gateway  *execute.Gateway
	Notify   *notify.Service
	Metrics  *metrics.Tracker
	Target   TargetEstimator
}

// Engine consumes the trade feed and drives each event through the risk
// guard, validation, sizing and execution in strict order.
//
// All portfolio and risk state is confined to the single consumer
// goroutine; only the metrics tracker is shared.
type Engine struct {
	cfg      *config.Config
	feed     *feed.Feed
	pipeline *validate.Pipeline
	tracker  *portfolio.Tracker
	guard    *risk.Guard
	gateway  *execute.Gateway
	notify   *notify.Service
	metrics  *metrics.Tracker
	target   TargetEstimator

	// Estimated once at startup; refreshing per trade would add a
	// network round trip to every decision.
	targetNetWorth float64

	wg  sync.WaitGroup
	now func() time.Time
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{
		cfg:      opts.Config,
		feed:     opts.Feed,
		pipeline: opts.Pipeline,
		tracker:  opts.Tracker,
		guard:    opts.Guard,
		gateway:  opts.Gateway,
		notify:   opts.Notify,
		metrics:  opts.Metrics,
		target:   opts.Target,
		now:      time.Now,
	}
}

// Start estimates the target's net worth, starts the feed and launches the
// consumer. Returns after startup; Wait blocks until shutdown.
func (e *Engine) Start(ctx context.Context) error {
	nw, err := e.target.EstimateNetWorth(ctx)
	if err != nil {
		// A fetch failure at startup is survivable; assume the configured
		// baseline instead of refusing to run.
		nw = e.cfg.TargetInitialCapital
		slog.Warn("target_net_worth_fallback",
			"error", err,
			"assumed_usd", nw)
	} else {
		slog.Info("target_net_worth_estimated",
			"target", e.cfg.TargetAccount,
			"net_worth_usd", nw)
	}
	e.targetNetWorth = nw

	ourNW, err := e.tracker.NetWorth(ctx)
	if err != nil {
		return fmt.Errorf("own net worth query failed: %w", err)
	}
	e.tracker.UpdateDailyStats(ourNW)
	e.tracker.UpdateDrawdown(ourNW)
	e.publishPortfolio(ourNW)

	e.feed.Start(ctx)

	e.wg.Add(1)
	go e.consume(ctx)
	return nil
}

// Wait blocks until the consumer goroutine exits.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) consume(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case ev, ok := <-e.feed.Events():
			if !ok {
				return
			}
			e.handleTrade(ctx, &ev)
		case <-ctx.Done():
			return
		}
	}
}

// handleTrade processes one observed trade. A panic anywhere in the
// sequence is contained here so one bad trade cannot kill the loop.
func (e *Engine) handleTrade(ctx context.Context, trade *feed.TradeEvent) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			slog.Error("trade_handling_panic",
				"tx_hash", shortHash(trade.TxHash),
				"error", err)
			e.notify.Error("trade handling", err)
		}
	}()

	e.metrics.TradeSeen()
	e.metrics.SetFeedMode(e.feed.Mode().String())

	ourNW, err := e.tracker.NetWorth(ctx)
	if err != nil {
		slog.Error("net_worth_query_failed", "error", err)
		e.notify.Error("net worth query", err)
		return
	}

	if closed, rolled := e.tracker.UpdateDailyStats(ourNW); rolled {
		yesterday := e.now().UTC().AddDate(0, 0, -1)
		e.notify.DailySummary(yesterday, closed)
	}
	e.tracker.UpdateDrawdown(ourNW)

	wasTripped := e.guard.State() == risk.Tripped
	verdict, reason := e.guard.Check(risk.Snapshot{
		NetWorth:    ourNW,
		DailyPnLPct: e.tracker.DailyPnLPct(),
		DrawdownPct: e.tracker.DrawdownPct(),
	})
	e.metrics.SetBreakerState(e.guard.State().String())
	if verdict == risk.Halt {
		if !wasTripped {
			e.notify.CircuitBreaker(reason, e.tracker.Summarize(ourNW))
		}
		e.recordDecision(trade, metrics.Decision{Result: "halted", Reason: reason})
		e.publishPortfolio(ourNW)
		return
	}

	out := e.pipeline.Validate(ctx, trade, e.targetNetWorth, ourNW)
	if !out.OK {
		metrics.CountRejection(out.Check)
		failures := e.pipeline.Diagnose(ctx, trade, e.targetNetWorth, ourNW)
		reasons := make([]string, len(failures))
		for i, f := range failures {
			reasons[i] = f.Reason
		}
		e.notify.TradeRejected(trade.Title, out.Reason, reasons)
		e.recordDecision(trade, metrics.Decision{Result: "rejected", Reason: out.Reason})
		e.publishPortfolio(ourNW)
		return
	}

	res := e.gateway.Submit(ctx, trade, out.BetUSD)
	if !res.Success {
		slog.Error("execution_failed",
			"tx_hash", shortHash(trade.TxHash),
			"attempts", res.Attempts,
			"error", res.Err)
		e.notify.Error("order execution", res.Err)
		e.recordDecision(trade, metrics.Decision{Result: "failed", Reason: res.Err.Error()})
		e.publishPortfolio(ourNW)
		return
	}

	shares := 0.0
	if trade.Price > 0 {
		shares = out.BetUSD / trade.Price
	}
	e.tracker.AddPosition(trade.Asset, trade.ConditionID, trade.Outcome, trade.Title,
		shares, trade.Price, out.BetUSD)
	e.tracker.RecordTrade(out.BetUSD)

	slog.Info("trade_copied",
		"order_id", res.OrderID,
		"side", trade.Side,
		"outcome", trade.Outcome,
		"bet_usd", out.BetUSD,
		"price", trade.Price,
		"title", truncate(trade.Title, 40))
	e.notify.TradeExecuted(trade.Title, trade.Side, trade.Outcome,
		out.BetUSD, trade.Price, res.OrderID, res.Details.Simulated)
	e.recordDecision(trade, metrics.Decision{
		Result:  "executed",
		BetUSD:  out.BetUSD,
		OrderID: res.OrderID,
	})
	e.publishPortfolio(ourNW)
}

func (e *Engine) recordDecision(trade *feed.TradeEvent, d metrics.Decision) {
	d.Title = trade.Title
	d.Side = trade.Side
	d.Outcome = trade.Outcome
	d.TxHash = trade.TxHash
	e.metrics.RecordDecision(d)
	if d.Result != "halted" {
		metrics.CountTrade(d.Result)
	}
}

func (e *Engine) publishPortfolio(netWorth float64) {
	sum := e.tracker.Summarize(netWorth)
	e.metrics.SetPortfolio(sum.NetWorth, sum.DailyPnL, sum.DailyPnLPct, sum.DrawdownPct, sum.OpenPositions)
	metrics.PublishGauges(e.metrics.Snapshot())
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10] + ".."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + ".."
}
