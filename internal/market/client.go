// Package market provides per-market static and liquidity data behind a
// short-TTL cache.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Snapshot is a point-in-time view of a market's static and liquidity data.
type Snapshot struct {
	ConditionID string
	Closed      bool
	EndTime     *time.Time
	Volume24h   float64
	TokenPrices map[string]float64
	CachedAt    time.Time
}

// TokenPrice returns the current price for an outcome token.
func (s *Snapshot) TokenPrice(asset string) (float64, bool) {
	p, ok := s.TokenPrices[asset]
	return p, ok
}

// HoursUntilClose returns hours until the market's end time. The second
// return is false when the market has no end time set.
func (s *Snapshot) HoursUntilClose(now time.Time) (float64, bool) {
	if s.EndTime == nil {
		return 0, false
	}
	return s.EndTime.Sub(now).Hours(), true
}

// gammaMarket is the wire schema of the Gamma markets endpoint.
type gammaMarket struct {
	ConditionID string          `json:"conditionId"`
	Closed      bool            `json:"closed"`
	EndDate     json.RawMessage `json:"endDate"`
	Volume24hr  float64         `json:"volume24hr"`
	Tokens      []struct {
		TokenID string  `json:"token_id"`
		Price   float64 `json:"price"`
	} `json:"tokens"`
}

// Client fetches market data from the Gamma API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a Gamma API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 3 * time.Second},
	}
}

// FetchMarket fetches a fresh snapshot for a condition ID.
func (c *Client) FetchMarket(ctx context.Context, conditionID string) (*Snapshot, error) {
	url := fmt.Sprintf("%s/markets?condition_ids=%s", c.baseURL, conditionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("market %s not found", conditionID)
	}

	return convertMarket(markets[0], time.Now()), nil
}

// convertMarket maps the wire record onto a Snapshot.
func convertMarket(m gammaMarket, now time.Time) *Snapshot {
	snap := &Snapshot{
		ConditionID: m.ConditionID,
		Closed:      m.Closed,
		Volume24h:   m.Volume24hr,
		TokenPrices: make(map[string]float64, len(m.Tokens)),
		CachedAt:    now,
	}
	for _, tok := range m.Tokens {
		snap.TokenPrices[tok.TokenID] = tok.Price
	}
	if t, ok := parseEndDate(m.EndDate); ok {
		snap.EndTime = &t
	}
	return snap
}

// parseEndDate handles both ISO-8601 strings and unix-second numbers.
func parseEndDate(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	s := strings.Trim(string(raw), `"`)
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.Unix(ts, 0).UTC(), true
	}

	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
