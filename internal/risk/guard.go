// Package risk implements the circuit breakers that halt copying when the
// portfolio bleeds past its configured limits.
package risk

import (
	"fmt"
	"log/slog"
)

// State is the breaker state.
type State int

const (
	// Normal allows trading.
	Normal State = iota
	// Tripped halts all trading until a manual reset.
	Tripped
)

func (s State) String() string {
	if s == Tripped {
		return "tripped"
	}
	return "normal"
}

// Verdict is the guard's answer for a single trade attempt.
type Verdict int

const (
	// Proceed lets the trade continue through validation.
	Proceed Verdict = iota
	// Halt stops the trade; the breaker is tripped.
	Halt
)

// Snapshot carries the portfolio numbers the guard evaluates.
type Snapshot struct {
	NetWorth    float64
	DailyPnLPct float64
	DrawdownPct float64
}

// Guard is a latched circuit breaker. Once tripped it stays tripped until
// Reset is called; limits are not re-evaluated while halted.
//
// Guard is not safe for concurrent use.
type Guard struct {
	dailyLossLimitPct float64
	maxDrawdownPct    float64

	state  State
	reason string
}

// NewGuard creates a guard with the given limits, both in percent.
func NewGuard(dailyLossLimitPct, maxDrawdownPct float64) *Guard {
	return &Guard{
		dailyLossLimitPct: dailyLossLimitPct,
		maxDrawdownPct:    maxDrawdownPct,
	}
}

// Check evaluates the breaker against current portfolio numbers. The daily
// loss limit is checked before drawdown, so when both are breached the
// reported reason names the daily loss.
func (g *Guard) Check(snap Snapshot) (Verdict, string) {
	if g.state == Tripped {
		return Halt, g.reason
	}

	if snap.DailyPnLPct <= -g.dailyLossLimitPct {
		g.trip(fmt.Sprintf("daily loss %.1f%% breached limit %.1f%%",
			-snap.DailyPnLPct, g.dailyLossLimitPct), snap)
		return Halt, g.reason
	}

	if snap.DrawdownPct > g.maxDrawdownPct {
		g.trip(fmt.Sprintf("drawdown %.1f%% breached limit %.1f%%",
			snap.DrawdownPct, g.maxDrawdownPct), snap)
		return Halt, g.reason
	}

	return Proceed, ""
}

// State returns the current breaker state.
func (g *Guard) State() State {
	return g.state
}

// Reason returns why the breaker tripped, or empty.
func (g *Guard) Reason() string {
	return g.reason
}

// Reset re-arms a tripped breaker. Operator action only.
func (g *Guard) Reset() {
	if g.state != Tripped {
		return
	}
	slog.Warn("circuit_breaker_reset", "previous_reason", g.reason)
	g.state = Normal
	g.reason = ""
}

func (g *Guard) trip(reason string, snap Snapshot) {
	g.state = Tripped
	g.reason = reason
	slog.Error("circuit_breaker_tripped",
		"reason", reason,
		"net_worth_usd", snap.NetWorth,
		"daily_pnl_pct", snap.DailyPnLPct,
		"drawdown_pct", snap.DrawdownPct)
}
