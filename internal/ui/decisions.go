package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polycopy/engine/internal/metrics"
)

// DecisionsView displays a scrolling log of copy decisions.
type DecisionsView struct {
	table   *tview.Table
	maxRows int
}

var decisionHeaders = []string{"Time", "Result", "Side", "Market", "Bet", "Detail"}

// NewDecisionsView creates a new decisions view.
func NewDecisionsView() *DecisionsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Copy Decisions ").SetBorder(true)

	v := &DecisionsView{
		table:   table,
		maxRows: 50,
	}
	v.setHeader()
	return v
}

// Widget returns the tview primitive.
func (v *DecisionsView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from the latest snapshot, newest first.
func (v *DecisionsView) Update(snapshot metrics.Snapshot) {
	v.table.Clear()
	v.setHeader()

	decisions := snapshot.Decisions
	row := 1
	for i := len(decisions) - 1; i >= 0 && row <= v.maxRows; i-- {
		d := decisions[i]

		detail := d.Reason
		if d.Result == "executed" {
			detail = d.OrderID
		}

		cells := []string{
			d.Time.Format("15:04:05"),
			d.Result,
			d.Side,
			clip(d.Title, 40),
			fmt.Sprintf("$%.2f", d.BetUSD),
			clip(detail, 48),
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetTextColor(resultColor(d.Result)).
				SetAlign(tview.AlignLeft)
			v.table.SetCell(row, col, cell)
		}
		row++
	}
}

func (v *DecisionsView) setHeader() {
	for col, header := range decisionHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}
}

func resultColor(result string) tcell.Color {
	switch result {
	case "executed":
		return tcell.ColorGreen
	case "failed":
		return tcell.ColorRed
	case "halted":
		return tcell.ColorOrange
	default:
		return tcell.ColorGray
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-2] + ".."
}
