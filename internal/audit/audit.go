// Package audit runs the periodic data-quality scan over occurrence edits.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/websocket"
)

// Scheduler periodically reports occurrence keys present in both the
// exception and override tables. The expansion engine already resolves these
// deterministically (the exception wins), so the scan is pure observability:
// it surfaces authoring flows writing past each other before users notice
// occurrences silently missing.
type Scheduler struct {
	cron        *cron.Cron
	overrides   *storage.OverrideRepository
	broadcaster *websocket.EventBroadcaster
	schedule    string
}

// NewScheduler creates an audit scheduler. schedule is a cron expression
// (e.g. "@every 10m").
func NewScheduler(overrides *storage.OverrideRepository, hub *websocket.Hub, schedule string) *Scheduler {
	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &Scheduler{
		cron:        cron.New(),
		overrides:   overrides,
		broadcaster: broadcaster,
		schedule:    schedule,
	}
}

// Start begins the periodic scan.
func (s *Scheduler) Start() error {
	log.Println("Starting edit audit scheduler...")

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.ScanConflicts(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Edit audit scheduler started (schedule: %s)", s.schedule)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Edit audit scheduler stopped")
}

// ScanConflicts runs one scan, logging and broadcasting every conflicting
// key. It is also called directly at startup so stale conflicts surface
// without waiting for the first tick.
func (s *Scheduler) ScanConflicts(ctx context.Context) {
	conflicts, err := s.overrides.ListConflicting(ctx)
	if err != nil {
		log.Printf("Edit audit scan failed: %v", err)
		return
	}

	for _, c := range conflicts {
		log.Printf("Edit conflict: occurrence %s:%s has both an exception and an override",
			c.SeriesID, c.OriginalStart.UTC().Format(time.RFC3339))
		if s.broadcaster != nil {
			s.broadcaster.BroadcastEditConflict(c.SeriesID, c.OriginalStart)
		}
	}

	if len(conflicts) > 0 {
		log.Printf("Edit audit found %d conflicting occurrence key(s)", len(conflicts))
	}
}
