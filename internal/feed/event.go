// Package feed produces a deduplicated, time-ordered stream of trade events
// from the tracked account, using a push-based activity stream with a
// pull-based polling fallback.
package feed

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TradeEvent is a single trade observed from the tracked account.
// Immutable once constructed.
type TradeEvent struct {
	// Trader is the wallet that made the trade
	Trader string

	// Side is BUY or SELL
	Side string

	// Asset is the outcome token ID
	Asset string

	// ConditionID identifies the market
	ConditionID string

	// Size is the trade size in shares
	Size float64

	// Price is the execution price (0-1 range for prediction markets)
	Price float64

	// Timestamp is the exchange timestamp in unix seconds
	Timestamp int64

	// Outcome is the outcome label (e.g. Yes/No)
	Outcome string

	// Title is the market title
	Title string

	// TxHash is the unique on-chain transaction identifier
	TxHash string
}

// NotionalUSD returns the USD-equivalent value of the trade.
func (e TradeEvent) NotionalUSD() float64 {
	return e.Size * e.Price
}

// Age returns how long ago the trade happened relative to now.
func (e TradeEvent) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.Timestamp, 0))
}

// apiFloat tolerates both JSON numbers and quoted numeric strings.
type apiFloat float64

func (f *apiFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = apiFloat(v)
	return nil
}

// apiInt tolerates both JSON numbers and quoted numeric strings.
type apiInt int64

func (i *apiInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	// Fractional-second timestamps show up in some payloads.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*i = apiInt(v)
	return nil
}

// activityRecord is the wire schema of the Polymarket activity feed,
// shared by the websocket stream and the Data API.
type activityRecord struct {
	ProxyWallet     string   `json:"proxyWallet"`
	Side            string   `json:"side"`
	Asset           string   `json:"asset"`
	ConditionID     string   `json:"conditionId"`
	Size            apiFloat `json:"size"`
	Price           apiFloat `json:"price"`
	Timestamp       apiInt   `json:"timestamp"`
	Outcome         string   `json:"outcome"`
	Title           string   `json:"title"`
	TransactionHash string   `json:"transactionHash"`
}

// toEvent converts a wire record to a TradeEvent.
func (r activityRecord) toEvent() TradeEvent {
	ts := int64(r.Timestamp)
	if ts > 1e12 {
		// Milliseconds
		ts = ts / 1000
	}
	return TradeEvent{
		Trader:      strings.ToLower(r.ProxyWallet),
		Side:        strings.ToUpper(r.Side),
		Asset:       r.Asset,
		ConditionID: r.ConditionID,
		Size:        float64(r.Size),
		Price:       float64(r.Price),
		Timestamp:   ts,
		Outcome:     r.Outcome,
		Title:       r.Title,
		TxHash:      r.TransactionHash,
	}
}

// streamMessage is the wrapper used by the live-data websocket.
type streamMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// parseStreamMessage extracts trade events from a raw websocket message.
// The stream delivers either a wrapped payload (single record or array),
// a bare array of records, or a bare record.
func parseStreamMessage(data []byte) ([]TradeEvent, string, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err == nil && len(msg.Payload) > 0 {
		events, perr := parseRecords(msg.Payload)
		if perr != nil {
			return nil, msg.Type, perr
		}
		return events, msg.Type, nil
	}

	events, err := parseRecords(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return events, "", nil
}

// parseRecords decodes either an array of activity records or a single one.
func parseRecords(data []byte) ([]TradeEvent, error) {
	var records []activityRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return convertRecords(records), nil
	}

	var single activityRecord
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	if single.TransactionHash == "" && single.ProxyWallet == "" {
		// Heartbeats and subscription acks decode to an empty record.
		return nil, nil
	}
	return convertRecords([]activityRecord{single}), nil
}

// convertRecords maps wire records to events, skipping non-trade rows.
func convertRecords(records []activityRecord) []TradeEvent {
	events := make([]TradeEvent, 0, len(records))
	for _, r := range records {
		if r.ProxyWallet == "" || r.Price == 0 {
			continue
		}
		events = append(events, r.toEvent())
	}
	return events
}

// sortByTimestamp orders a batch oldest-first so emission within the batch
// is non-decreasing in timestamp.
func sortByTimestamp(events []TradeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}
