package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTarget = "0x1111111111111111111111111111111111111111"

func testRecord(tx string, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"proxyWallet":     testTarget,
		"side":            "BUY",
		"asset":           "token-1",
		"conditionId":     "cond-1",
		"size":            100.0,
		"price":           0.55,
		"timestamp":       ts,
		"outcome":         "Yes",
		"title":           "Will it happen?",
		"transactionHash": tx,
	}
}

// activityServer serves the batches in sequence, one per poll.
func activityServer(t *testing.T, batches ...[]map[string]interface{}) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activity", r.URL.Path)
		assert.Equal(t, testTarget, r.URL.Query().Get("user"))

		batch := batches[len(batches)-1]
		if call < len(batches) {
			batch = batches[call]
		}
		call++
		json.NewEncoder(w).Encode(batch)
	}))
}

func newTestFeed(serverURL string) *Feed {
	return New(Options{
		Target:     testTarget,
		DataAPIURL: serverURL,
		UseStream:  false,
	})
}

func drain(f *Feed) []TradeEvent {
	var out []TradeEvent
	for {
		select {
		case ev := <-f.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPollEmitsChronologicalOrder(t *testing.T) {
	// The API returns newest-first; emission must be oldest-first.
	srv := activityServer(t, []map[string]interface{}{
		testRecord("0xc", 300),
		testRecord("0xb", 200),
		testRecord("0xa", 100),
	})
	defer srv.Close()

	f := newTestFeed(srv.URL)
	require.NoError(t, f.pollOnce(context.Background()))

	events := drain(f)
	require.Len(t, events, 3)
	assert.Equal(t, int64(100), events[0].Timestamp)
	assert.Equal(t, int64(200), events[1].Timestamp)
	assert.Equal(t, int64(300), events[2].Timestamp)
	assert.Equal(t, "0xa", events[0].TxHash)
}

func TestPollDeduplicatesOverlappingWindows(t *testing.T) {
	srv := activityServer(t,
		[]map[string]interface{}{
			testRecord("0xb", 200),
			testRecord("0xa", 100),
		},
		[]map[string]interface{}{
			testRecord("0xc", 300),
			testRecord("0xb", 200),
			testRecord("0xa", 100),
		},
	)
	defer srv.Close()

	f := newTestFeed(srv.URL)
	require.NoError(t, f.pollOnce(context.Background()))
	first := drain(f)
	require.Len(t, first, 2)

	require.NoError(t, f.pollOnce(context.Background()))
	second := drain(f)
	require.Len(t, second, 1, "overlapping records must fire at most once")
	assert.Equal(t, "0xc", second[0].TxHash)
}

func TestPollIgnoresOtherTraders(t *testing.T) {
	other := testRecord("0xd", 400)
	other["proxyWallet"] = "0x2222222222222222222222222222222222222222"

	srv := activityServer(t, []map[string]interface{}{
		other,
		testRecord("0xe", 500),
	})
	defer srv.Close()

	f := newTestFeed(srv.URL)
	require.NoError(t, f.pollOnce(context.Background()))

	events := drain(f)
	require.Len(t, events, 1)
	assert.Equal(t, "0xe", events[0].TxHash)
}

func TestPollSkipsEventsAtOrBelowWatermark(t *testing.T) {
	srv := activityServer(t,
		[]map[string]interface{}{testRecord("0xa", 100)},
		[]map[string]interface{}{
			testRecord("0xnew", 100), // distinct tx, same timestamp
			testRecord("0xold", 90),
		},
	)
	defer srv.Close()

	f := newTestFeed(srv.URL)
	require.NoError(t, f.pollOnce(context.Background()))
	drain(f)

	require.NoError(t, f.pollOnce(context.Background()))
	assert.Empty(t, drain(f), "events at or before the watermark never fire")
}

func TestPollErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFeed(srv.URL)
	err := f.pollOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, drain(f))
}

func TestParseStreamMessageWrappedArray(t *testing.T) {
	payload := fmt.Sprintf(`{"topic":"activity","type":"trades","payload":[
		{"proxyWallet":%q,"side":"buy","asset":"tok","conditionId":"cond","size":"50","price":"0.4","timestamp":1700000000,"outcome":"No","title":"T","transactionHash":"0xf"}
	]}`, testTarget)

	events, msgType, err := parseStreamMessage([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "trades", msgType)
	require.Len(t, events, 1)
	assert.Equal(t, "BUY", events[0].Side)
	assert.Equal(t, 50.0, events[0].Size)
	assert.Equal(t, 0.4, events[0].Price)
	assert.Equal(t, int64(1700000000), events[0].Timestamp)
}

func TestParseStreamMessageBareRecord(t *testing.T) {
	payload := fmt.Sprintf(`{"proxyWallet":%q,"side":"SELL","asset":"tok","conditionId":"cond","size":10,"price":0.7,"timestamp":1700000001,"transactionHash":"0xg"}`, testTarget)

	events, _, err := parseStreamMessage([]byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "SELL", events[0].Side)
}

func TestParseStreamMessageHeartbeat(t *testing.T) {
	events, _, err := parseStreamMessage([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMillisecondTimestampNormalized(t *testing.T) {
	rec := activityRecord{
		ProxyWallet:     testTarget,
		Price:           0.5,
		Timestamp:       apiInt(1700000000000),
		TransactionHash: "0xh",
	}
	assert.Equal(t, int64(1700000000), rec.toEvent().Timestamp)
}
