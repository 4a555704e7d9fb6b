package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/polycopy/engine/internal/portfolio"
)

// Toggles selects which event classes are delivered.
type Toggles struct {
	Trades       bool
	Rejections   bool
	Errors       bool
	Breakers     bool
	DailySummary bool
}

// Service formats engine events into chat messages and gates them by the
// configured toggles.
type Service struct {
	notifier *Notifier
	toggles  Toggles
}

// NewService wraps a notifier with event toggles.
func NewService(notifier *Notifier, toggles Toggles) *Service {
	return &Service{notifier: notifier, toggles: toggles}
}

// Close stops the underlying notifier.
func (s *Service) Close() {
	s.notifier.Close()
}

// Started announces engine startup.
func (s *Service) Started(target string, netWorth float64, dryRun bool) {
	mode := "LIVE"
	if dryRun {
		mode = "SIMULATION"
	}
	s.notifier.Send(fmt.Sprintf(
		"🚀 <b>Copy engine started</b>\nMode: %s\nTarget: <code>%s</code>\nNet worth: %s",
		mode, escapeHTML(target), fmtUSD(netWorth)))
}

// Stopped announces shutdown with a final portfolio summary.
func (s *Service) Stopped(sum portfolio.Summary) {
	s.notifier.Send(fmt.Sprintf(
		"🛑 <b>Copy engine stopped</b>\nNet worth: %s\nDaily PnL: %s (%.1f%%)\nOpen positions: %d",
		fmtUSD(sum.NetWorth), fmtUSD(sum.DailyPnL), sum.DailyPnLPct, sum.OpenPositions))
}

// TradeExecuted reports a successful copy.
func (s *Service) TradeExecuted(title, side, outcome string, betUSD, price float64, orderID string, simulated bool) {
	if !s.toggles.Trades {
		return
	}
	tag := ""
	if simulated {
		tag = " (simulated)"
	}
	s.notifier.Send(fmt.Sprintf(
		"✅ <b>Trade copied</b>%s\n%s <b>%s</b> %s\nBet: %s @ %.3f\nOrder: <code>%s</code>",
		tag, side, escapeHTML(outcome), escapeHTML(title), fmtUSD(betUSD), price, escapeHTML(orderID)))
}

// TradeRejected reports a skipped trade with every failed check.
func (s *Service) TradeRejected(title, reason string, allFailures []string) {
	if !s.toggles.Rejections {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏭️ <b>Trade skipped</b>\n%s\nReason: %s", escapeHTML(title), escapeHTML(reason))
	if len(allFailures) > 1 {
		b.WriteString("\nAll failures:")
		for _, f := range allFailures {
			b.WriteString("\n• " + escapeHTML(f))
		}
	}
	s.notifier.Send(b.String())
}

// CircuitBreaker reports a breaker trip.
func (s *Service) CircuitBreaker(reason string, sum portfolio.Summary) {
	if !s.toggles.Breakers {
		return
	}
	s.notifier.Send(fmt.Sprintf(
		"🚨 <b>CIRCUIT BREAKER TRIPPED</b>\n%s\nNet worth: %s\nTrading halted until manual reset.",
		escapeHTML(reason), fmtUSD(sum.NetWorth)))
}

// Error reports a processing failure.
func (s *Service) Error(context string, err error) {
	if !s.toggles.Errors {
		return
	}
	s.notifier.Send(fmt.Sprintf(
		"⚠️ <b>Error</b> in %s\n<code>%s</code>",
		escapeHTML(context), escapeHTML(err.Error())))
}

// DailySummary reports the previous day's results at UTC rollover.
func (s *Service) DailySummary(date time.Time, sum portfolio.Summary) {
	if !s.toggles.DailySummary {
		return
	}
	s.notifier.Send(fmt.Sprintf(
		"📊 <b>Daily summary %s</b>\nNet worth: %s\nPnL: %s (%.1f%%)\nTrades: %d\nDrawdown: %.1f%%",
		date.Format("2006-01-02"), fmtUSD(sum.NetWorth), fmtUSD(sum.DailyPnL),
		sum.DailyPnLPct, sum.TradesToday, sum.DrawdownPct))
}
