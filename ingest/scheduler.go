/*
scheduler.go - Interval-driven ingestion runs

PURPOSE:
  Periodically scans the input directory and runs the orchestrator. Files
  that failed on a previous run are still in place and are simply retried;
  the upserts make the replay a no-op for rows that already committed.

USAGE:
  scheduler := ingest.NewScheduler(orchestrator, 5*time.Minute)
  scheduler.Start()
  // ... on shutdown
  scheduler.Stop()
*/
package ingest

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler triggers ingestion runs on a fixed interval. Runs never
// overlap: each tick waits for the previous run to finish.
type Scheduler struct {
	Orchestrator *Orchestrator
	Interval     time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(o *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		Orchestrator: o,
		Interval:     interval,
		stop:         make(chan struct{}),
	}
}

// Start begins scheduling. The first run happens immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] started, ingesting every %v", s.Interval)
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.runOnce()
	for {
		select {
		case <-s.ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) runOnce() {
	if _, err := s.Orchestrator.Run(context.Background()); err != nil {
		log.Printf("[Scheduler] ingestion run failed: %v", err)
	}
}
