package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/api"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/export"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/ingest"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/resolution"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage/badger"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/storage/rollup"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

var startTime = time.Now()

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(startTime).String(),
	}); err != nil {
		log.Printf("❌ Failed to encode health response: %v", err)
	}
}

func main() {
	log.Println("🚀 Starting wearables data server...")

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("⚙️  Configuration: port=%s data_dir=%s memory_limit=%dMB in_memory=%v",
		cfg.Port, cfg.DataDir, cfg.MaxMemoryMB, cfg.InMemory)

	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatalf("❌ Failed to create data directory: %v", err)
		}
	}

	log.Println("💾 Initializing BadgerDB storage...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		InMemory:    cfg.InMemory,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Println("✅ BadgerDB storage initialized")

	opts := config.DefaultOptions()
	handler := api.NewHandler(store, opts)
	ingestHandler := ingest.NewHandler(store)
	exportHandler := export.NewHandler(store)
	log.Println("📊 Data handlers created (retrieval, imputation, ingest, export)")

	hub := api.NewStreamHub()
	handler.Engine().SetPersistObserver(hub.PublishImputed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 Stream hub started (live imputed-point feed)")

	materializer := rollup.New(store)
	stopRollup := make(chan bool)
	wg.Add(1)
	go runRollup(materializer, stopRollup, &wg)

	stopGC := make(chan bool)
	wg.Add(1)
	go runBadgerGC(store, stopGC, &wg)

	router := setupRouter(handler, ingestHandler, exportHandler, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   GET  /data                - Paginated series retrieval")
		log.Println("   GET  /data/imputed        - Advisory gap-filled view")
		log.Println("   POST /data/run_imputation - Batch forecast imputation")
		log.Println("   POST /data/ingest         - Device point ingestion")
		log.Println("   GET  /data/export         - Series snapshot (json/csv)")
		log.Println("   POST /data/import         - Backup restore")
		log.Println("   GET  /data/live           - Imputed-point stream (WebSocket)")
		log.Println("✅ Server ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel before wg.Wait or the hub goroutine never exits.
	cancel()
	close(stopRollup)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 Server exited cleanly")
}

// rollupRange is the span the periodic job re-materializes. Two years back
// covers any study period currently being ingested.
func rollupRange() resolution.Range {
	now := time.Now().UTC()
	return resolution.Range{Start: now.AddDate(-2, 0, 0), End: now.AddDate(0, 0, 1)}
}

// runRollup materializes the minute/hour/day aggregate tiers periodically.
func runRollup(materializer *rollup.Rollup, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RollupInterval)
	defer ticker.Stop()

	// Run once on startup (non-blocking, tracked by parent WaitGroup)
	go func() {
		log.Println("🔧 Running initial rollup (raw → minute/hour/day aggregates)...")
		start := time.Now()
		if err := materializer.MaterializeAll(context.Background(), rollupRange()); err != nil {
			log.Printf("❌ Initial rollup failed: %v", err)
		} else {
			log.Printf("✅ Initial rollup completed in %v", time.Since(start).Round(time.Millisecond))
		}
	}()

	for {
		select {
		case <-ticker.C:
			log.Println("⏰ Scheduled rollup started...")
			start := time.Now()
			if err := materializer.MaterializeAll(context.Background(), rollupRange()); err != nil {
				log.Printf("❌ Rollup failed: %v", err)
			} else {
				log.Printf("✅ Rollup completed in %v", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("🛑 Stopping rollup scheduler")
			return
		}
	}
}

// runBadgerGC reclaims value-log space periodically. Badger's LSM design
// accumulates dead data until GC rewrites the log files.
func runBadgerGC(store storage.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	badgerStore, ok := store.(*badger.Store)
	if !ok {
		log.Println("⚠️  Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("🗑️  BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := badgerStore.RunGC(0.5); err != nil {
				// Badger returns an error when no rewrite was needed.
				log.Printf("🗑️  GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("✅ GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("🛑 Stopping BadgerDB GC scheduler")
			return
		}
	}
}
