package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardProceedsWithinLimits(t *testing.T) {
	g := NewGuard(5, 15)

	verdict, reason := g.Check(Snapshot{NetWorth: 10000, DailyPnLPct: -4.9, DrawdownPct: 14.9})
	assert.Equal(t, Proceed, verdict)
	assert.Empty(t, reason)
	assert.Equal(t, Normal, g.State())
}

func TestGuardTripsOnDailyLoss(t *testing.T) {
	g := NewGuard(5, 15)

	// Losing 6% of a $10k day trips the 5% limit.
	verdict, reason := g.Check(Snapshot{NetWorth: 9400, DailyPnLPct: -6})
	assert.Equal(t, Halt, verdict)
	assert.Contains(t, reason, "daily loss")
	assert.Equal(t, Tripped, g.State())
}

func TestGuardTripsOnDrawdown(t *testing.T) {
	g := NewGuard(5, 15)

	verdict, reason := g.Check(Snapshot{NetWorth: 8000, DrawdownPct: 20})
	assert.Equal(t, Halt, verdict)
	assert.Contains(t, reason, "drawdown")
}

func TestGuardDailyLossCheckedFirst(t *testing.T) {
	g := NewGuard(5, 15)

	_, reason := g.Check(Snapshot{DailyPnLPct: -10, DrawdownPct: 30})
	assert.Contains(t, reason, "daily loss")
}

func TestGuardLatchesUntilReset(t *testing.T) {
	g := NewGuard(5, 15)

	g.Check(Snapshot{DailyPnLPct: -6})
	original := g.Reason()

	// Healthy numbers do not re-arm a tripped breaker.
	verdict, reason := g.Check(Snapshot{DailyPnLPct: 0, DrawdownPct: 0})
	assert.Equal(t, Halt, verdict)
	assert.Equal(t, original, reason)

	g.Reset()
	assert.Equal(t, Normal, g.State())
	verdict, _ = g.Check(Snapshot{DailyPnLPct: 0})
	assert.Equal(t, Proceed, verdict)
}

func TestGuardExactLimitTrips(t *testing.T) {
	g := NewGuard(5, 15)

	// Daily loss at exactly the limit trips; drawdown must exceed it.
	verdict, _ := g.Check(Snapshot{DailyPnLPct: -5})
	assert.Equal(t, Halt, verdict)

	g2 := NewGuard(5, 15)
	verdict, _ = g2.Check(Snapshot{DrawdownPct: 15})
	assert.Equal(t, Proceed, verdict)
}
