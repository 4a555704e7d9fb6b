package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycopy/engine/internal/config"
	"github.com/polycopy/engine/internal/feed"
	"github.com/polycopy/engine/internal/market"
	"github.com/polycopy/engine/internal/portfolio"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type marketFetcher struct {
	snap *market.Snapshot
	err  error
}

func (f *marketFetcher) FetchMarket(context.Context, string) (*market.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.snap
	return &cp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MinPrice:            0.01,
		MaxPrice:            0.99,
		MinHoursUntilClose:  24,
		Min24hVolumeUSD:     5000,
		MaxTradeAge:         60 * time.Second,
		MaxTradesPerHour:    10,
		MinTradeInterval:    30 * time.Second,
		DailyLossLimitPct:   5,
		MaxDrawdownPct:      15,
		MinEdgePct:          0,
		MaxKellyFraction:    0.25,
		MinBetSizeUSD:       0.001,
		MaxBetSizeUSD:       1000,
		MaxBetPctPortfolio:  10,
		MaxPriceMovementPct: 5,
	}
}

func goodSnapshot() *market.Snapshot {
	end := testNow.Add(48 * time.Hour)
	return &market.Snapshot{
		ConditionID: "0xc1",
		EndTime:     &end,
		Volume24h:   50000,
		TokenPrices: map[string]float64{"tok1": 0.50},
	}
}

func goodTrade() *feed.TradeEvent {
	return &feed.TradeEvent{
		Trader:      "0xtarget",
		Side:        "BUY",
		Asset:       "tok1",
		ConditionID: "0xc1",
		Size:        1000,
		Price:       0.50,
		Timestamp:   testNow.Add(-10 * time.Second).Unix(),
		Outcome:     "Yes",
		Title:       "Test market",
		TxHash:      "0xhash1",
	}
}

func newTestPipeline(cfg *config.Config, fetcher market.Fetcher) (*Pipeline, *portfolio.Tracker) {
	tracker := portfolio.NewTracker("fixed", 10000, nil)
	sizer := portfolio.Sizer{
		KellyCap:  cfg.MaxKellyFraction,
		MinBetUSD: cfg.MinBetSizeUSD,
		MaxBetUSD: cfg.MaxBetSizeUSD,
		MaxBetPct: cfg.MaxBetPctPortfolio,
	}
	p := NewPipeline(cfg, market.NewCache(fetcher, time.Minute), tracker, sizer)
	p.now = func() time.Time { return testNow }
	return p, tracker
}

func TestValidateAllChecksPass(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.True(t, out.OK, "reason: %s", out.Reason)

	// $500 of their $50k is 1%; 1% of our $10k.
	assert.Equal(t, 100.00, out.BetUSD)
	assert.NotNil(t, out.Snapshot)
}

func TestValidateMarketDataUnavailable(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), &marketFetcher{err: errors.New("gamma down")})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "market_data", out.Check)
}

func TestValidateShortCircuitsAtFirstFailure(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})

	// Both the price and the age are bad; the earlier check wins.
	trade := goodTrade()
	trade.Price = 0.995
	trade.Timestamp = testNow.Add(-10 * time.Minute).Unix()

	out := p.Validate(context.Background(), trade, 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "price_sanity", out.Check)
}

func TestValidateClosedMarket(t *testing.T) {
	snap := goodSnapshot()
	snap.Closed = true
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "market_open", out.Check)
}

func TestValidateTimeToClose(t *testing.T) {
	snap := goodSnapshot()
	end := testNow.Add(12 * time.Hour)
	snap.EndTime = &end
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "time_to_close", out.Check)
	assert.Contains(t, out.Reason, "12.0h")
}

func TestValidateNoEndTimePasses(t *testing.T) {
	snap := goodSnapshot()
	snap.EndTime = nil
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	assert.True(t, out.OK)
}

func TestValidateLowVolume(t *testing.T) {
	snap := goodSnapshot()
	snap.Volume24h = 100
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "volume", out.Check)
}

func TestValidateStaleTrade(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})

	trade := goodTrade()
	trade.Timestamp = testNow.Add(-2 * time.Minute).Unix()

	out := p.Validate(context.Background(), trade, 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "trade_age", out.Check)
}

func TestValidateMinTradeInterval(t *testing.T) {
	p, tracker := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})
	tracker.RecordTrade(10)

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "rate_limit", out.Check)
	assert.Contains(t, out.Reason, "minimum interval")
}

func TestValidateHourlyCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTradesPerHour = 2
	cfg.MinTradeInterval = 0
	p, tracker := newTestPipeline(cfg, &marketFetcher{snap: goodSnapshot()})
	tracker.RecordTrade(10)
	tracker.RecordTrade(10)

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "rate_limit", out.Check)
	assert.Contains(t, out.Reason, "cap 2")
}

func TestValidateMinEdgeBuySide(t *testing.T) {
	cfg := testConfig()
	cfg.MinEdgePct = 1
	cfg.MaxPriceMovementPct = 100
	snap := goodSnapshot()
	snap.TokenPrices["tok1"] = 0.55 // moved up 10% since the buy
	p, _ := newTestPipeline(cfg, &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "min_edge", out.Check)
}

func TestValidateMinEdgeSellSide(t *testing.T) {
	cfg := testConfig()
	cfg.MinEdgePct = 1
	cfg.MaxPriceMovementPct = 100
	snap := goodSnapshot()
	snap.TokenPrices["tok1"] = 0.55
	p, _ := newTestPipeline(cfg, &marketFetcher{snap: snap})

	trade := goodTrade()
	trade.Side = "SELL"

	// Price moved in the seller's favor; the edge is positive.
	out := p.Validate(context.Background(), trade, 50000, 10000)
	assert.True(t, out.OK, "reason: %s", out.Reason)
}

func TestValidateExistingPosition(t *testing.T) {
	p, tracker := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})
	tracker.AddPosition("tok1", "0xc1", "Yes", "Test market", 100, 0.50, 50)

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "position_limits", out.Check)
	assert.Contains(t, out.Reason, "already holding")
}

func TestValidateRejectsOtherOutcomeOfHeldMarket(t *testing.T) {
	// Holding the No token of a market blocks copying into its Yes token;
	// one position per market, no averaging in through the other side.
	snap := goodSnapshot()
	snap.TokenPrices["tok-no"] = 0.50
	p, tracker := newTestPipeline(testConfig(), &marketFetcher{snap: snap})
	tracker.AddPosition("tok-no", "0xc1", "No", "Test market", 100, 0.50, 50)

	trade := goodTrade() // tok1 in the same market 0xc1
	out := p.Validate(context.Background(), trade, 50000, 10000)
	require.False(t, out.OK, "second entry into the same market must be rejected")
	assert.Equal(t, "position_limits", out.Check)
}

func TestValidateUnresolvableTokenPrice(t *testing.T) {
	snap := goodSnapshot()
	snap.TokenPrices = map[string]float64{}
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	out := p.Validate(context.Background(), goodTrade(), 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "min_edge", out.Check)
	assert.Contains(t, out.Reason, "current price unavailable")
}

func TestValidateZeroSizedBet(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: goodSnapshot()})

	out := p.Validate(context.Background(), goodTrade(), 0, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "position_limits", out.Check)
	assert.Contains(t, out.Reason, "zero")
}

func TestValidatePriceMovement(t *testing.T) {
	snap := goodSnapshot()
	snap.TokenPrices["tok1"] = 0.56 // 12% away from the fill
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	trade := goodTrade()
	trade.Side = "SELL" // positive edge, so only movement fails

	out := p.Validate(context.Background(), trade, 50000, 10000)
	require.False(t, out.OK)
	assert.Equal(t, "price_movement", out.Check)
}

func TestDiagnoseCollectsAllFailures(t *testing.T) {
	snap := goodSnapshot()
	snap.Closed = true
	snap.Volume24h = 100
	p, _ := newTestPipeline(testConfig(), &marketFetcher{snap: snap})

	trade := goodTrade()
	trade.Timestamp = testNow.Add(-5 * time.Minute).Unix()

	failures := p.Diagnose(context.Background(), trade, 50000, 10000)
	names := make([]string, len(failures))
	for i, f := range failures {
		names[i] = f.Check
	}
	assert.Contains(t, names, "market_open")
	assert.Contains(t, names, "volume")
	assert.Contains(t, names, "trade_age")
}
