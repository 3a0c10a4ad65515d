package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propsearch/agent"
	"propsearch/config"
	"propsearch/httputil"
	"propsearch/logging"
	"propsearch/models"
	"propsearch/scheduler"
	"propsearch/scraper"
	"propsearch/server"
	"propsearch/services"
	"propsearch/storage"
	"propsearch/workers"
)

var (
	searchJSON = flag.String("search", "", "Run one search from criteria JSON and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting propsearch...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open cache store: %v", err)
	}
	defer store.Close()
	log.Printf("Cache store: %s (TTL %s)", cfg.CacheDriver, cfg.CacheTTL)

	clients := httputil.NewClients()
	portal := scraper.NewClient(&cfg.Portal, clients.Portal)
	search := services.NewSearchService(store, portal, cfg.CacheTTL, services.MatchMode(cfg.MatchMode))

	if *searchJSON != "" {
		runDebugSearch(ctx, search, *searchJSON)
		return
	}

	ag := agent.New(cfg.LLM, clients.API, search.Search)
	srv := server.New(cfg, search, ag, portal, store)

	sched := scheduler.New(cfg, store)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	if cfg.Refresh.Enabled {
		refreshWorker := workers.NewRefreshWorker(store, portal, cfg.CacheTTL)
		go refreshWorker.Run(ctx, cfg.Refresh.BatchSize, cfg.Refresh.Interval)
	}

	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.CacheStore, error) {
	switch cfg.CacheDriver {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewSQLiteStore(cfg.DBPath)
	}
}

// runDebugSearch is the one-shot CLI path. It goes through the same facade
// as the web API, so its output is filtered identically.
func runDebugSearch(ctx context.Context, search *services.SearchService, criteriaJSON string) {
	var criteria models.SearchCriteria
	if err := json.Unmarshal([]byte(criteriaJSON), &criteria); err != nil {
		log.Fatalf("Bad criteria JSON: %v", err)
	}

	result, err := search.Search(ctx, criteria)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	fmt.Printf("%d listings (%d fetched, %s, entry age %s)\n",
		result.Count(), result.TotalFetched, result.Provenance, result.EntryAge)
	for _, listing := range result.Listings {
		fmt.Printf("  %-12s %-12s %4d bed %9d AED  %s\n",
			listing.ID, listing.PropertyType, listing.Rooms, listing.Price, listing.Title)
	}
}
