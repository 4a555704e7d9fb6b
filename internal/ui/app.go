// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polycopy/engine/internal/metrics"
)

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	status    *StatusView
	decisions *DecisionsView

	metricsTracker *metrics.Tracker
	refreshRate    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application reading from the metrics tracker.
func NewApp(tracker *metrics.Tracker, refreshRate time.Duration) *App {
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		app:            tview.NewApplication(),
		metricsTracker: tracker,
		refreshRate:    refreshRate,
		ctx:            ctx,
		cancel:         cancel,
	}

	app.status = NewStatusView()
	app.decisions = NewDecisionsView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the 2-panel layout: status on top, the decision log
// below it.
func (a *App) setupLayout() {
	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.status.Widget(), 0, 1, false).
		AddItem(a.decisions.Widget(), 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.refresh()
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// updateLoop periodically refreshes views with metrics data.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			snapshot := a.metricsTracker.Snapshot()

			a.app.QueueUpdateDraw(func() {
				a.status.Update(snapshot)
				a.decisions.Update(snapshot)
			})
		}
	}
}

// refresh manually refreshes all views.
func (a *App) refresh() {
	snapshot := a.metricsTracker.Snapshot()

	a.app.QueueUpdateDraw(func() {
		a.status.Update(snapshot)
		a.decisions.Update(snapshot)
	})
}
