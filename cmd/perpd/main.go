// Command perpd boots the perpetual-futures engine as a standalone daemon:
// it loads a toml config, wires the engine against in-memory reference
// collaborators, runs a scripted open/close demo so an operator sees state
// actually move, then serves Prometheus metrics until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perpengine/ledger"
	"perpengine/market"
	"perpengine/observability/logging"
	"perpengine/observability/otel"
	"perpengine/oracle"
	"perpengine/referral"

	"perpengine/engine"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the perpd config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logger = logging.Setup("perpd", cfg.Environment)
	if cfg.LogFile.Path != "" {
		logger = logging.SetupWithFile("perpd", cfg.Environment, cfg.LogFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, otel.Config{ServiceName: "perpd", Environment: cfg.Environment, Traces: false})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	lg := ledger.NewInMemory()
	referrals := referral.NewInMemory()
	feed := oracle.NewStaticFeed()

	eng, err := engine.New(cfg.Engine, lg, newLogEmitter(logger), referrals)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(1)
	}
	eng.SetFeed(feed)
	eng.SetReferenceFeed(feed)

	marketID := market.NewID("ETH-USD")
	if len(cfg.Engine.Markets) > 0 {
		marketID = market.NewID(cfg.Engine.Markets[0].Name)
	}
	if err := runDemo(eng, lg, feed, marketID, logger); err != nil {
		logger.Error("demo run failed", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.ListenAddress, Handler: mux}

	go func() {
		logger.Info("perpd listening", "address", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("perpd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
