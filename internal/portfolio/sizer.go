package portfolio

// Sizer converts the target's bet into our proportional bet.
type Sizer struct {
	KellyCap  float64 // max fraction of net worth per bet, e.g. 0.25
	MinBetUSD float64
	MaxBetUSD float64
	MaxBetPct float64 // max percent of net worth per bet, e.g. 10
}

// Size returns our bet in USD for a trade the target made.
//
// The bet fraction mirrors the target's conviction: the share of their net
// worth they committed, capped by the Kelly fraction. The resulting dollar
// amount is clamped to the absolute and portfolio-relative bet limits and
// rounded to whole cents. Returns 0 when either net worth is unknown.
func (s Sizer) Size(theirNotional, theirNetWorth, ourNetWorth float64) float64 {
	if theirNetWorth <= 0 || ourNetWorth <= 0 {
		return 0
	}

	pct := theirNotional / theirNetWorth
	if pct > s.KellyCap {
		pct = s.KellyCap
	}

	bet := pct * ourNetWorth
	if bet < s.MinBetUSD {
		bet = s.MinBetUSD
	}
	if bet > s.MaxBetUSD {
		bet = s.MaxBetUSD
	}

	maxByPct := s.MaxBetPct / 100 * ourNetWorth
	if bet > maxByPct {
		bet = maxByPct
	}

	return RoundCents(bet)
}
