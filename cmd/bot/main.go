package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ycwei/probroll/internal/broker"
	"github.com/ycwei/probroll/internal/config"
	"github.com/ycwei/probroll/internal/dashboard"
	"github.com/ycwei/probroll/internal/dist"
	"github.com/ycwei/probroll/internal/monitor"
	"github.com/ycwei/probroll/internal/orders"
	"github.com/ycwei/probroll/internal/retry"
	"github.com/ycwei/probroll/internal/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[BOT] ", log.LstdFlags)
	logger.Printf("Starting probability roller for %s in %s mode", cfg.Strategy.Symbol, cfg.Environment.Mode)
	if !cfg.IsPaperTrading() {
		logger.Println("LIVE TRADING MODE - real money at risk. Waiting 10 seconds to confirm...")
		time.Sleep(10 * time.Second)
	}

	series, err := dist.LoadCSV(cfg.Strategy.Symbol, cfg.HistoryPath(cfg.Strategy.Symbol))
	if err != nil {
		logger.Fatalf("Failed to load price history: %v", err)
	}
	logger.Printf("Loaded %d daily bars for %s", series.Len(), cfg.Strategy.Symbol)

	store, err := storage.NewStorage(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		logger.Fatalf("Failed to open position ledger: %v", err)
	}

	brk, err := buildBroker(cfg)
	if err != nil {
		logger.Fatalf("Failed to build broker: %v", err)
	}
	wrapped := broker.NewCircuitBreakerBroker(brk)

	manager := orders.NewManager(
		retry.NewClient(wrapped, logger),
		store,
		logger,
		orders.Config{
			CallTimeout:    30 * time.Second,
			LegacyQuantity: cfg.LegacyQuantity(),
		},
	)

	bot := &Bot{
		config:  cfg,
		series:  series,
		broker:  wrapped,
		storage: store,
		orders:  manager,
		logger:  logger,
	}

	mon := monitor.New(monitor.Config{
		Symbol:   cfg.Strategy.Symbol,
		Interval: cfg.GetCheckInterval(),
		WinRate:  cfg.Strategy.WinRate,
		ProbLow:  cfg.Strategy.ProbLow,
		ProbHigh: cfg.Strategy.ProbHigh,
		InWindow: cfg.IsWithinTradingHours,
	}, series, wrapped, store, manager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dash *dashboard.Server
	if cfg.Dashboard.Enabled {
		dash = dashboard.NewServer(dashboard.Config{
			Addr:      cfg.Dashboard.Listen,
			AuthToken: cfg.Dashboard.AuthToken,
		}, store, wrapped, newDashboardLogger(cfg))
		go func() {
			if err := dash.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Dashboard server error: %v", err)
			}
		}()
	}

	if err := bot.Bootstrap(ctx); err != nil {
		logger.Printf("Bootstrap: %v", err)
	}

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Monitor stopped: %v", err)
	}

	if dash != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dash.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Dashboard shutdown: %v", err)
		}
	}
	logger.Println("Stopped")
}

// buildBroker picks the brokerage backend for the configured mode. Paper
// mode always runs against the in-memory broker.
func buildBroker(cfg *config.Config) (broker.Broker, error) {
	if cfg.IsPaperTrading() {
		bp := cfg.Broker.BuyingPower
		if bp <= 0 {
			bp = 100000
		}
		return broker.NewPaperBroker(bp), nil
	}
	switch cfg.Broker.Provider {
	case "", "tradier":
		return broker.NewRESTBroker(cfg.Broker.APIKey, cfg.Broker.AccountID, cfg.Broker.APIEndpoint), nil
	default:
		return nil, fmt.Errorf("unsupported broker provider %q", cfg.Broker.Provider)
	}
}

func newDashboardLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
