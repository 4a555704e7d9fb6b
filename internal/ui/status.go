package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/polycopy/engine/internal/metrics"
)

// StatusView displays portfolio health and engine status.
type StatusView struct {
	textView *tview.TextView
}

// NewStatusView creates a new status view.
func NewStatusView() *StatusView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Engine Status ").SetBorder(true)

	return &StatusView{textView: textView}
}

// Widget returns the tview primitive.
func (v *StatusView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the status display.
func (v *StatusView) Update(snapshot metrics.Snapshot) {
	v.textView.Clear()

	breakerColor := "green"
	if snapshot.BreakerState == "tripped" {
		breakerColor = "red"
	}

	pnlColor := "green"
	if snapshot.DailyPnLUSD < 0 {
		pnlColor = "red"
	}

	feedColor := "green"
	if snapshot.FeedMode == "pull" {
		feedColor = "yellow"
	}

	text := fmt.Sprintf(`[yellow]Portfolio[-]
Net Worth: $%.2f
Daily PnL: [%s]$%.2f (%.1f%%)[-]
Drawdown: %.1f%%
Open Positions: %d

[yellow]Engine[-]
Uptime: %s
Feed Mode: [%s]%s[-]
Circuit Breaker: [%s]%s[-]

[yellow]Trades[-]
Seen: %d  Executed: %d  Rejected: %d  Failed: %d
`,
		snapshot.NetWorthUSD,
		pnlColor, snapshot.DailyPnLUSD, snapshot.DailyPnLPct,
		snapshot.DrawdownPct,
		snapshot.OpenPositions,
		formatDuration(snapshot.Uptime),
		feedColor, snapshot.FeedMode,
		breakerColor, snapshot.BreakerState,
		snapshot.TradesSeen,
		snapshot.TradesExecuted,
		snapshot.TradesRejected,
		snapshot.TradesFailed,
	)

	fmt.Fprint(v.textView, text)
}

// formatDuration renders an uptime compactly.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
