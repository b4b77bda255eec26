// README: Entry point; loads config, wires the fare engine, starts the terminal HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kiosk/internal/backend"
	"kiosk/internal/config"
	httptransport "kiosk/internal/http"
	"kiosk/internal/infra"
	"kiosk/internal/kv"
	"kiosk/internal/modules/card"
	"kiosk/internal/modules/faillog"
	"kiosk/internal/modules/pricing"
	"kiosk/internal/modules/scan"
	"kiosk/internal/modules/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatal(err)
	}
	store := kv.NewRedisStore(redisClient, "kiosk:")

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)

	provider := pricing.NewProvider(backendClient, cfg.SnapshotPath)
	if err := provider.Initialize(ctx); err != nil {
		log.Fatalf("config init: %v", err)
	}
	if provider.StartedOffline() {
		log.Printf("started offline: fare configuration loaded from static snapshot")
	} else {
		log.Printf("fare configuration loaded from backend: %d stations, %d fare pairs", len(provider.Stations()), provider.Table().Len())
	}

	ledger := card.NewStore(store, cfg.DefaultBalance)
	sink := faillog.NewSink(store, cfg.KioskID, cfg.FailedOpCap, cfg.ExportDir)
	engine := trip.NewService(ledger, provider, backendClient, sink, cfg.Backend.Timeout)
	dispatcher := scan.NewDispatcher(engine, cfg.StationID)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Dispatcher: dispatcher,
		Engine:     engine,
		Sink:       sink,
		Pricing:    provider,
		APIKey:     cfg.HTTP.APIKey,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("terminal %s serving on %s (station %d)", cfg.KioskID, cfg.HTTP.Addr, cfg.StationID)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// Drain in-flight sync attempts so their failures land in the backlog
	// before the process exits.
	engine.Wait()
}
