// Package main is the entry point for the Polymarket copy-trading engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/polycopy/engine/internal/config"
	"github.com/polycopy/engine/internal/engine"
	"github.com/polycopy/engine/internal/execute"
	"github.com/polycopy/engine/internal/feed"
	"github.com/polycopy/engine/internal/market"
	"github.com/polycopy/engine/internal/metrics"
	"github.com/polycopy/engine/internal/notify"
	"github.com/polycopy/engine/internal/portfolio"
	"github.com/polycopy/engine/internal/risk"
	"github.com/polycopy/engine/internal/ui"
	"github.com/polycopy/engine/internal/validate"
	"github.com/polycopy/engine/internal/wallet"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("copy engine starting",
		"version", "1.0.0",
	)

	slog.Info("config_loaded",
		"target_account", cfg.TargetAccount,
		"dry_run", cfg.DryRun,
		"bankroll_mode", cfg.BankrollMode,
		"fixed_bankroll", cfg.FixedBankroll,
		"ws_url", cfg.WSURL,
		"data_api_url", cfg.DataAPIURL,
		"gamma_api_url", cfg.GammaAPIURL,
		"clob_api_url", cfg.ClobAPIURL,
		"private_key", cfg.MaskedPrivateKey(),
		"telegram_token", cfg.MaskedTelegramToken(),
		"enable_tui", cfg.EnableTUI,
		"prometheus_port", cfg.PrometheusPort,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Metrics: in-process tracker plus Prometheus exposition
	tracker := metrics.NewTracker()
	if cfg.PrometheusPort > 0 {
		go func() {
			if err := metrics.Serve(cfg.PrometheusPort); err != nil {
				slog.Error("metrics_server_failed", "error", err)
			}
		}()
	}

	// Trade feed for the tracked account
	tradeFeed := feed.New(feed.Options{
		Target:         cfg.TargetAccount,
		WSURL:          cfg.WSURL,
		DataAPIURL:     cfg.DataAPIURL,
		UseStream:      cfg.WSURL != "",
		ReconnectDelay: cfg.WSReconnectDelay,
		MaxReconnects:  cfg.WSMaxReconnects,
		PollInterval:   cfg.PollInterval,
	})

	// Portfolio, sizing and risk
	var balances portfolio.BalanceSource
	if cfg.BankrollMode == config.BankrollDynamic {
		balances = wallet.NewDynamicValue(wallet.NewClient(cfg.DataAPIURL, cfg.WalletAddress, 0))
	}
	book := portfolio.NewTracker(cfg.BankrollMode, cfg.FixedBankroll, balances)
	sizer := portfolio.Sizer{
		KellyCap:  cfg.MaxKellyFraction,
		MinBetUSD: cfg.MinBetSizeUSD,
		MaxBetUSD: cfg.MaxBetSizeUSD,
		MaxBetPct: cfg.MaxBetPctPortfolio,
	}
	guard := risk.NewGuard(cfg.DailyLossLimitPct, cfg.MaxDrawdownPct)

	// Validation against cached market snapshots
	markets := market.NewCache(market.NewClient(cfg.GammaAPIURL), market.DefaultTTL)
	pipeline := validate.NewPipeline(cfg, markets, book, sizer)

	// Execution: simulated in dry-run, CLOB otherwise
	var submitter execute.Submitter
	if !cfg.DryRun {
		submitter = execute.NewClobClient(cfg.ClobAPIURL, cfg.PrivateKey)
	}
	gateway := execute.NewGateway(execute.Options{
		Submitter:    submitter,
		Simulate:     cfg.DryRun,
		MaxRetries:   cfg.ExecMaxRetries,
		TotalTimeout: cfg.ExecTotalTimeout,
		RetryDelay:   cfg.ExecRetryDelay,
		SlippagePct:  cfg.SlippagePct,
		MinPrice:     cfg.MinPrice,
		MaxPrice:     cfg.MaxPrice,
		OrderType:    cfg.OrderType,
	})

	// Notifications
	notifier := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	alerts := notify.NewService(notifier, notify.Toggles{
		Trades:       cfg.NotifyTrades,
		Rejections:   cfg.NotifyRejections,
		Errors:       cfg.NotifyErrors,
		Breakers:     cfg.NotifyBreakers,
		DailySummary: cfg.NotifyDailySummary,
	})

	// Net worth of the tracked account, estimated once at startup
	target := wallet.NewClient(cfg.DataAPIURL, cfg.TargetAccount, cfg.TargetInitialCapital)

	eng := engine.New(engine.Options{
		Config:   cfg,
		Feed:     tradeFeed,
		Pipeline: pipeline,
		Tracker:  book,
		Guard:    guard,
		Gateway:  gateway,
		Notify:   alerts,
		Metrics:  tracker,
		Target:   target,
	})

	if err := eng.Start(ctx); err != nil {
		slog.Error("engine_start_failed", "error", err)
		os.Exit(1)
	}

	ourNW, _ := book.NetWorth(ctx)
	alerts.Started(cfg.TargetAccount, ourNW, cfg.DryRun)

	slog.Info("engine_started",
		"status", "copying trades",
		"target", cfg.TargetAccount,
		"feed_mode", tradeFeed.Mode().String(),
		"tui_enabled", cfg.EnableTUI,
	)

	// Start TUI or run in background mode
	if cfg.EnableTUI {
		slog.Info("starting_tui")
		app := ui.NewApp(tracker, cfg.UIRefreshRate)

		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
				cancel()
			}
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			app.Stop()
		case <-ctx.Done():
			app.Stop()
		}
	} else {
		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
	}

	cancel()

	// Graceful shutdown
	slog.Info("shutting_down", "status", "stopping feed")
	tradeFeed.Stop()
	eng.Wait()

	finalNW, _ := book.NetWorth(context.Background())
	alerts.Stopped(book.Summarize(finalNW))
	alerts.Close()

	slog.Info("shutdown_complete",
		"net_worth_usd", finalNW,
		"trades_executed", tracker.Snapshot().TradesExecuted,
	)
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
