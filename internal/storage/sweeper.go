package storage

import (
	"time"

	"github.com/glanceboard/storekit/internal/telemetry/logger"
)

// Sweeper periodically evicts expired cache entries across every cache the
// manager knows about. The application owns the sweeper: the storage layer
// never starts goroutines on its own.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      logger.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeper creates a sweeper ticking at the given interval.
func NewSweeper(manager *Manager, interval time.Duration, log logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Default()
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		log:      log,
	}
}

// Start launches the background loop. Calling Start twice without an
// intervening Stop is a no-op.
func (s *Sweeper) Start() {
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)
	s.log.Info("cache sweeper started", "interval", s.interval)
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.doneCh = nil
	s.log.Info("cache sweeper stopped")
}

func (s *Sweeper) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted, err := s.manager.CleanupExpiredCaches()
			if err != nil {
				s.log.Warn("cache sweep had errors", "evicted", evicted, "error", err)
			}
		case <-stopCh:
			return
		}
	}
}
