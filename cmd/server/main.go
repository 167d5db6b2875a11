package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/chart-gateway/internal/aggregate"
	"github.com/ignite/chart-gateway/internal/api"
	"github.com/ignite/chart-gateway/internal/calendar"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/pkg/logger"
	"github.com/ignite/chart-gateway/internal/region"
	"github.com/ignite/chart-gateway/internal/source"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("[server] chart-gateway starting")

	// Load configuration
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[server] Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] Invalid config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cal, err := calendar.New(cfg.Calendar, nil)
	if err != nil {
		log.Fatalf("[server] Failed to build calendar: %v", err)
	}

	src, err := source.New(ctx, cfg, cal)
	if err != nil {
		log.Fatalf("[server] Failed to build %s source: %v", cfg.Upstream.Strategy, err)
	}
	log.Printf("[server] Upstream source: %s (timeout %s, retries %d)", src.Name(), cfg.Upstream.Timeout(), cfg.Upstream.MaxRetries)
	if cfg.Upstream.Strategy == config.StrategyEntries && !cfg.Entries.HasCredential() {
		log.Println("[server] WARNING: no upstream credential configured; chart requests will return 502")
	}

	collector := aggregate.NewCollector(src, cfg.Aggregation)
	log.Printf("[server] Aggregation policy %s, concurrency %d", cfg.Aggregation.Policy, cfg.Aggregation.Concurrency)

	validator := region.NewValidator(cfg.Regions)
	handlers := api.NewHandlers(cal, validator, collector, cfg.Charts.LatestShorthandEnabled())
	server := api.NewServer(cfg.Server, handlers)

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("[server] %v", err)
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[server] Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] Server error: %v", err)
		}
	}()

	<-done
	log.Println("[server] Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] Shutdown error: %v", err)
	}

	log.Println("[server] Server stopped")
}
