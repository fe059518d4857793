package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SweeperConfig holds configuration for the cache sweeper
type SweeperConfig struct {
	Enabled     bool
	IntervalSec int
}

// Sweeper periodically evicts expired response-cache entries
type Sweeper struct {
	cache  ResponseCache
	logger *logrus.Entry
	config SweeperConfig
	stopCh chan struct{}
}

// NewSweeper creates a new cache sweeper
func NewSweeper(cache ResponseCache, logger *logrus.Entry, config SweeperConfig) *Sweeper {
	return &Sweeper{
		cache:  cache,
		logger: logger.WithField("component", "cache-sweeper"),
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start starts the sweeper loop
func (s *Sweeper) Start() {
	if !s.config.Enabled {
		s.logger.Info("Disabled, not starting")
		return
	}
	if s.config.IntervalSec < 1 {
		s.config.IntervalSec = 60
	}

	s.logger.Infof("Starting with interval=%ds", s.config.IntervalSec)
	go s.run()
}

// Stop stops the sweeper
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(time.Duration(s.config.IntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			s.logger.Info("Stopped")
			return
		}
	}
}

func (s *Sweeper) tick() {
	removed, err := s.cache.SweepExpired(context.Background())
	if err != nil {
		s.logger.Errorf("Sweep failed: %v", err)
		return
	}
	if removed > 0 {
		s.logger.Infof("Swept %d expired entries", removed)
	}
}
