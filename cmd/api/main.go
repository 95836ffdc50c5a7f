package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mizan.org/internal/anomaly"
	"mizan.org/internal/books"
	"mizan.org/internal/config"
	"mizan.org/internal/httpapi"
	"mizan.org/internal/ledger"
	"mizan.org/internal/obs"
	"mizan.org/internal/store/pg"
	"mizan.org/internal/treasury"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	deps := httpapi.Deps{
		RateBurst:  cfg.RateLimit.Burst,
		RatePerSec: cfg.RateLimit.PerSecond,
	}

	var store *pg.Store
	if cfg.PostgresDSN != "" {
		store, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		deps.Journal = store
		deps.Records = store
		deps.Periods = store
		deps.ReadyProbe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// Without a DSN everything lives in memory. Useful for demos and
		// local development, not for anything that must survive a restart.
		deps.Journal = ledger.NewInMemory()
		deps.Records = books.NewInMemory()
		deps.Periods = treasury.NewInMemoryStore()
	}

	deps.Detector = anomaly.New(deps.Records, anomaly.Config{
		Thresholds: anomaly.Thresholds{
			Revenue: cfg.Anomaly.RevenueThreshold,
			Expense: cfg.Anomaly.ExpenseThreshold,
			Invoice: cfg.Anomaly.InvoiceThreshold,
			Tax:     cfg.Anomaly.TaxThreshold,
		},
		BootstrapFloor:          cfg.Anomaly.BootstrapFloor,
		ExtremeMultiplier:       cfg.Anomaly.ExtremeMultiplier,
		SingleExtremeMultiplier: cfg.Anomaly.SingleExtremeMultiplier,
	})
	deps.Rollup = treasury.NewRollup(deps.Periods, deps.Records)

	api := httpapi.New(deps, version)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mizan-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
