package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/marketsim/internal/asset"
	"github.com/efreitasn/marketsim/internal/config"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/ops"
	"github.com/efreitasn/marketsim/internal/simulation"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	sim, alice, bob := buildDemoSimulation(logger)

	router := ops.NewRouter(sim, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("ops server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stepDone := make(chan struct{})
	go runDemoLoop(ctx, sim, alice, bob, cfg.StepInterval, logger, stepDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-stepDone:
		logger.Info("demo simulation finished")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped", slog.String("run_id", sim.RunID().String()))
}

// buildDemoSimulation wires a small deterministic market: one currency,
// one bond, one stock, and two users. There is no stochastic price model
// here — that generator is out of scope, so orders come from a fixed,
// readable script in runDemoLoop instead.
func buildDemoSimulation(logger *slog.Logger) (*simulation.Simulation, domain.UserID, domain.UserID) {
	sim := simulation.New(1.0, 20.0, 20)

	if _, err := sim.RegisterAsset(false, "", asset.NewCurrency("CAD")); err != nil {
		logger.Error("register currency failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := sim.RegisterAsset(true, "CAD", asset.NewBond("GOVT10Y", "CAD", 0.03, 1000)); err != nil {
		logger.Error("register bond failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := sim.RegisterAsset(true, "CAD", asset.NewStock("ACME", "CAD")); err != nil {
		logger.Error("register stock failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	alice := sim.AddUser("alice")
	bob := sim.AddUser("bob")

	logger.Info("demo simulation built",
		slog.String("run_id", sim.RunID().String()),
		slog.Int("asset_count", sim.AssetCount()),
		slog.Int("user_count", sim.UserCount()),
	)

	return sim, alice, bob
}

// runDemoLoop submits a canned order script between steps and drives
// ProcessStep once per tick until the simulation ends or ctx is cancelled.
func runDemoLoop(ctx context.Context, sim *simulation.Simulation, alice, bob domain.UserID, interval time.Duration, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)

	stockID, _ := sim.GetSecurityID("ACME")
	bondID, _ := sim.GetSecurityID("GOVT10Y")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sim.HasNextStep() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		step := sim.CurrentStep()
		switch step {
		case 0:
			sim.SubmitLimitOrder(alice, stockID, domain.Buy, 100, 10)
			sim.SubmitLimitOrder(bob, stockID, domain.Sell, 100, 10)
			sim.SubmitLimitOrder(alice, bondID, domain.Buy, 980, 5)
			sim.SubmitLimitOrder(bob, bondID, domain.Sell, 980, 5)
		case 5:
			sim.SubmitMarketOrder(bob, stockID, domain.Buy, 3)
			sim.SubmitLimitOrder(alice, stockID, domain.Sell, 102, 3)
		case 10:
			sim.SubmitLimitOrder(alice, stockID, domain.Buy, 98, 4)
			sim.SubmitLimitOrder(bob, stockID, domain.Sell, 98, 4)
		}

		result, err := sim.ProcessStep()
		if err != nil {
			logger.Error("process step failed", slog.String("error", err.Error()))
			return
		}

		logger.Debug("step processed",
			slog.Int("step", int(result.CurrentStep)),
			slog.Bool("has_next_step", result.HasNextStep),
			slog.Int("transaction_count", countTransactions(result)),
		)
	}
}

func countTransactions(result *simulation.StepResult) int {
	n := 0
	for _, txs := range result.Transactions {
		n += len(txs)
	}
	return n
}
