// Package execute places orders, simulated or live, for validated trades.
package execute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polycopy/engine/internal/feed"
)

// Request is one order to place.
type Request struct {
	Asset       string
	ConditionID string
	Side        string
	Price       float64
	NotionalUSD float64
	OrderType   string
}

// Response is the execution service's answer to one submission attempt. An
// empty OrderID means the order was not accepted.
type Response struct {
	OrderID string
	Status  string
}

// Submitter builds, signs and submits one order against the exchange.
// Implemented by the CLOB client wiring; faked in tests.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Response, error)
}

// Result reports the outcome of a submission, with per-attempt details for
// the audit trail.
type Result struct {
	Success  bool
	OrderID  string
	Err      error
	Details  Details
	Attempts int
}

// Details captures what was (or would have been) sent.
type Details struct {
	Asset       string
	Side        string
	NotionalUSD float64
	LimitPrice  float64
	Simulated   bool
}

// Gateway submits orders with retry, slippage-adjusted pricing and a total
// wall-clock deadline. In simulation mode nothing leaves the process.
type Gateway struct {
	submitter Submitter
	simulate  bool

	maxRetries   int
	totalTimeout time.Duration
	retryDelay   time.Duration
	slippagePct  float64
	minPrice     float64
	maxPrice     float64
	orderType    string

	now func() time.Time
}

// Options configures a Gateway.
type Options struct {
	Submitter    Submitter
	Simulate     bool
	MaxRetries   int
	TotalTimeout time.Duration
	RetryDelay   time.Duration
	SlippagePct  float64
	MinPrice     float64
	MaxPrice     float64
	OrderType    string
}

// NewGateway creates a gateway. Simulation mode needs no submitter.
func NewGateway(opts Options) *Gateway {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = 3 * time.Second
	}
	if opts.OrderType == "" {
		opts.OrderType = "FOK"
	}
	return &Gateway{
		submitter:    opts.Submitter,
		simulate:     opts.Simulate,
		maxRetries:   opts.MaxRetries,
		totalTimeout: opts.TotalTimeout,
		retryDelay:   opts.RetryDelay,
		slippagePct:  opts.SlippagePct,
		minPrice:     opts.MinPrice,
		maxPrice:     opts.MaxPrice,
		orderType:    opts.OrderType,
		now:          time.Now,
	}
}

// Submit places an order copying the given trade at our sized notional.
func (g *Gateway) Submit(ctx context.Context, trade *feed.TradeEvent, notionalUSD float64) Result {
	if g.simulate {
		return g.submitSimulated(trade, notionalUSD)
	}
	return g.submitLive(ctx, trade, notionalUSD)
}

func (g *Gateway) submitSimulated(trade *feed.TradeEvent, notionalUSD float64) Result {
	orderID := "sim-" + uuid.NewString()
	details := Details{
		Asset:       trade.Asset,
		Side:        trade.Side,
		NotionalUSD: notionalUSD,
		LimitPrice:  trade.Price,
		Simulated:   true,
	}

	slog.Info("order_simulated",
		"order_id", orderID,
		"side", trade.Side,
		"asset", truncate(trade.Asset, 12),
		"notional_usd", notionalUSD,
		"price", trade.Price)

	return Result{Success: true, OrderID: orderID, Details: details, Attempts: 1}
}

func (g *Gateway) submitLive(ctx context.Context, trade *feed.TradeEvent, notionalUSD float64) Result {
	details := Details{
		Asset:       trade.Asset,
		Side:        trade.Side,
		NotionalUSD: notionalUSD,
		LimitPrice:  g.limitPrice(trade.Side, trade.Price),
	}
	req := Request{
		Asset:       trade.Asset,
		ConditionID: trade.ConditionID,
		Side:        trade.Side,
		NotionalUSD: notionalUSD,
		OrderType:   g.orderType,
	}

	deadline := g.now().Add(g.totalTimeout)
	var lastErr error

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if g.now().After(deadline) {
			lastErr = fmt.Errorf("submission deadline exceeded after %d attempts", attempt-1)
			return Result{Err: lastErr, Details: details, Attempts: attempt - 1}
		}

		// The limit is re-derived on every attempt, not cached across
		// retries.
		limitPrice := g.limitPrice(trade.Side, trade.Price)
		req.Price = limitPrice
		details.LimitPrice = limitPrice

		resp, err := g.submitter.Submit(ctx, req)
		if err == nil && resp.OrderID != "" {
			slog.Info("order_submitted",
				"order_id", resp.OrderID,
				"side", trade.Side,
				"notional_usd", notionalUSD,
				"limit_price", limitPrice,
				"attempt", attempt)
			return Result{Success: true, OrderID: resp.OrderID, Details: details, Attempts: attempt}
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("order not accepted: status %q", resp.Status)
		}
		slog.Warn("order_attempt_failed",
			"attempt", attempt,
			"error", lastErr)

		if attempt < g.maxRetries && g.retryDelay > 0 {
			select {
			case <-time.After(g.retryDelay):
			case <-ctx.Done():
				return Result{Err: ctx.Err(), Details: details, Attempts: attempt}
			}
		}
	}

	return Result{Err: lastErr, Details: details, Attempts: g.maxRetries}
}

// limitPrice widens the trade price in the fill direction by the slippage
// allowance, clamped to the valid price range. Buys pay up, sells accept
// down.
func (g *Gateway) limitPrice(side string, price float64) float64 {
	adj := price * g.slippagePct / 100
	var limit float64
	if strings.EqualFold(side, "SELL") {
		limit = price - adj
	} else {
		limit = price + adj
	}

	if g.minPrice > 0 && limit < g.minPrice {
		limit = g.minPrice
	}
	if g.maxPrice > 0 && limit > g.maxPrice {
		limit = g.maxPrice
	}
	return limit
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + ".."
}
