// Package wallet queries on-chain balances and open-position value for an
// address through the data API.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// BalanceProvider estimates the current net worth of a wallet. Implemented
// by Client and faked in tests.
type BalanceProvider interface {
	EstimateNetWorth(ctx context.Context) (float64, error)
}

// Client fetches wallet data for one address.
type Client struct {
	baseURL     string
	address     string
	baseCapital float64
	httpc       *http.Client

	proxy string
}

// NewClient creates a wallet client for an address. baseCapital floors the
// net worth estimate so transient API gaps never zero the bankroll.
func NewClient(baseURL, address string, baseCapital float64) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		address:     strings.ToLower(address),
		baseCapital: baseCapital,
		httpc:       &http.Client{Timeout: 5 * time.Second},
	}
}

// DynamicValue answers dynamic-mode bankroll queries: spendable cash plus
// the current value of open positions. It implements BalanceProvider.
type DynamicValue struct {
	client *Client
}

// NewDynamicValue wraps a wallet client for dynamic bankroll mode.
func NewDynamicValue(client *Client) *DynamicValue {
	return &DynamicValue{client: client}
}

// EstimateNetWorth returns the USDC balance plus open-position value.
func (d *DynamicValue) EstimateNetWorth(ctx context.Context) (float64, error) {
	addr, err := d.client.FindProxyWallet(ctx)
	if err != nil {
		slog.Warn("proxy_wallet_fallback", "error", err)
		addr = d.client.address
	}

	balance, err := d.client.USDCBalance(ctx, addr)
	if err != nil {
		return 0, err
	}
	posValue, err := d.client.PositionsValue(ctx, addr)
	if err != nil {
		return 0, err
	}
	return balance + posValue, nil
}

type positionRecord struct {
	Asset        string  `json:"asset"`
	Size         float64 `json:"size"`
	CurrentValue float64 `json:"currentValue"`
}

type closedPositionRecord struct {
	RealizedPnL float64 `json:"realizedPnl"`
}

// PositionsValue sums the current USD value of all open positions.
func (c *Client) PositionsValue(ctx context.Context, address string) (float64, error) {
	var records []positionRecord
	if err := c.getJSON(ctx, "/positions?user="+address, &records); err != nil {
		return 0, fmt.Errorf("positions fetch failed: %w", err)
	}

	var total float64
	for _, r := range records {
		total += r.CurrentValue
	}
	return total, nil
}

// USDCBalance returns the spendable USDC balance for an address.
func (c *Client) USDCBalance(ctx context.Context, address string) (float64, error) {
	var result struct {
		Balance float64 `json:"balance"`
	}
	if err := c.getJSON(ctx, "/balance?user="+address, &result); err != nil {
		return 0, fmt.Errorf("balance fetch failed: %w", err)
	}
	return result.Balance, nil
}

// RealizedPnL sums realized profit and loss across closed positions.
func (c *Client) RealizedPnL(ctx context.Context, address string) (float64, error) {
	var records []closedPositionRecord
	if err := c.getJSON(ctx, "/closed-positions?user="+address, &records); err != nil {
		return 0, fmt.Errorf("closed positions fetch failed: %w", err)
	}

	var total float64
	for _, r := range records {
		total += r.RealizedPnL
	}
	return total, nil
}

// FindProxyWallet resolves the proxy wallet associated with the primary
// address, caching the answer. Falls back to the primary address when no
// proxy exists.
func (c *Client) FindProxyWallet(ctx context.Context) (string, error) {
	if c.proxy != "" {
		return c.proxy, nil
	}

	var result struct {
		ProxyWallet string `json:"proxyWallet"`
	}
	if err := c.getJSON(ctx, "/proxy-wallet?address="+c.address, &result); err != nil {
		return "", fmt.Errorf("proxy wallet lookup failed: %w", err)
	}

	proxy := strings.ToLower(result.ProxyWallet)
	if proxy == "" {
		proxy = c.address
	}
	c.proxy = proxy

	slog.Info("proxy_wallet_resolved",
		"address", maskAddress(c.address),
		"proxy", maskAddress(proxy))
	return proxy, nil
}

// EstimateNetWorth estimates total net worth as base capital plus realized
// PnL plus open-position value, floored at base capital.
func (c *Client) EstimateNetWorth(ctx context.Context) (float64, error) {
	addr, err := c.FindProxyWallet(ctx)
	if err != nil {
		// Lookup failure is survivable; fall back to the primary address.
		slog.Warn("proxy_wallet_fallback", "error", err)
		addr = c.address
	}

	posValue, err := c.PositionsValue(ctx, addr)
	if err != nil {
		return 0, err
	}
	realized, err := c.RealizedPnL(ctx, addr)
	if err != nil {
		return 0, err
	}

	nw := c.baseCapital + realized + posValue
	if nw < c.baseCapital {
		nw = c.baseCapital
	}
	return nw, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func maskAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + ".." + addr[len(addr)-4:]
}
