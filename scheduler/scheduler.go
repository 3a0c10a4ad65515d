package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"propsearch/config"
	"propsearch/storage"
)

// Scheduler sweeps expired cache entries on a cron schedule. Expired
// entries are still servable as a stale fallback until swept, so the sweep
// cutoff is one extra TTL behind the staleness cutoff.
type Scheduler struct {
	cfg   *config.Config
	store storage.CacheStore
	cron  *cron.Cron
}

func New(cfg *config.Config, store storage.CacheStore) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		store: store,
		cron:  cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Sweep.Cron == "" {
		log.Println("No sweep schedule configured, cache entries are kept until overwritten")
		return nil
	}

	log.Printf("Starting cache sweep with cron: %s", s.cfg.Sweep.Cron)
	_, err := s.cron.AddFunc(s.cfg.Sweep.Cron, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-2 * s.cfg.CacheTTL)
	purged, err := s.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		log.Printf("Sweep error: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Sweep: purged %d expired cache entries", purged)
	}
}
