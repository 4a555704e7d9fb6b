package wallet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x00000000000000000000000000000000000000aa"

func walletServer(t *testing.T, proxy string, positions, closed string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/proxy-wallet", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"proxyWallet":%q}`, proxy)
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, positions)
	})
	mux.HandleFunc("/closed-positions", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, closed)
	})
	mux.HandleFunc("/balance", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"balance":250}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEstimateNetWorth(t *testing.T) {
	srv := walletServer(t, "0xproxy",
		`[{"asset":"tok1","size":100,"currentValue":55.5},{"asset":"tok2","size":10,"currentValue":4.5}]`,
		`[{"realizedPnl":20},{"realizedPnl":-5}]`)

	c := NewClient(srv.URL, testAddr, 1000)
	nw, err := c.EstimateNetWorth(context.Background())
	require.NoError(t, err)

	// 1000 base + 15 realized + 60 positions.
	assert.InDelta(t, 1075.0, nw, 1e-9)
}

func TestEstimateNetWorthFlooredAtBaseCapital(t *testing.T) {
	srv := walletServer(t, "", `[]`, `[{"realizedPnl":-400}]`)

	c := NewClient(srv.URL, testAddr, 1000)
	nw, err := c.EstimateNetWorth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, nw)
}

func TestDynamicValueIsBalancePlusPositions(t *testing.T) {
	srv := walletServer(t, "",
		`[{"asset":"tok1","size":100,"currentValue":55.5},{"asset":"tok2","size":10,"currentValue":4.5}]`,
		`[{"realizedPnl":999}]`)

	// Cash plus open-position value; realized PnL does not enter the
	// dynamic bankroll.
	dv := NewDynamicValue(NewClient(srv.URL, testAddr, 0))
	nw, err := dv.EstimateNetWorth(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 310.0, nw, 1e-9)
}

func TestFindProxyWalletCached(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/proxy-wallet", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"proxyWallet":"0xPROXY"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, testAddr, 0)

	first, err := c.FindProxyWallet(context.Background())
	require.NoError(t, err)
	second, err := c.FindProxyWallet(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0xproxy", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestFindProxyWalletFallsBackToPrimary(t *testing.T) {
	srv := walletServer(t, "", `[]`, `[]`)

	c := NewClient(srv.URL, testAddr, 0)
	proxy, err := c.FindProxyWallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddr, proxy)
}

func TestPositionsValueErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, testAddr, 0)
	_, err := c.PositionsValue(context.Background(), testAddr)
	assert.Error(t, err)
}
