package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// runPoller polls the Data API activity endpoint at a fixed interval.
// Individual poll failures are logged and the loop continues indefinitely.
func (f *Feed) runPoller(ctx context.Context) {
	slog.Info("poller_started", "interval", f.pollInterval, "target", f.target)

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	if err := f.pollOnce(ctx); err != nil {
		slog.Warn("poll_failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller_stopped", "reason", "context cancelled")
			return
		case <-f.stopChan:
			slog.Info("poller_stopped", "reason", "stop signal")
			return
		case <-ticker.C:
			if err := f.pollOnce(ctx); err != nil {
				slog.Warn("poll_failed", "error", err)
			}
		}
	}
}

// pollOnce fetches the most recent activity records (newest first) and
// accepts them oldest-first so emission is non-decreasing in timestamp.
func (f *Feed) pollOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s/activity?user=%s&type=TRADE&limit=%d&sortDirection=DESC",
		f.dataAPI, f.target, f.pollLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var records []activityRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	f.acceptBatch(convertRecords(records))
	return nil
}
