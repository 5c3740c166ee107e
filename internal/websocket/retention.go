package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mathvoice/domain/repositories"
)

// Retention defaults
const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = 30 * time.Minute
	initialSweepDelay    = time.Minute
	sweepTimeout         = 5 * time.Minute
)

// JobPruner drops finished jobs older than a cutoff
type JobPruner interface {
	Prune(cutoff time.Time) int
}

// RetentionConfig holds configuration for the RetentionSweeper.
// Optional fields: Retention, Interval (defaults DefaultRetention and
// DefaultSweepInterval).
type RetentionConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// RetentionSweeper periodically removes old documents and finished jobs
type RetentionSweeper struct {
	documents repositories.DocumentRepository
	jobs      JobPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewRetentionSweeper creates a new retention sweeper. jobs may be nil.
func NewRetentionSweeper(documents repositories.DocumentRepository, jobs JobPruner, config RetentionConfig, logger *zap.Logger) *RetentionSweeper {
	if config.Retention <= 0 {
		logger.Info("Using default document retention", zap.Duration("retention", DefaultRetention))
		config.Retention = DefaultRetention
	}
	if config.Interval <= 0 {
		logger.Info("Using default sweep interval", zap.Duration("interval", DefaultSweepInterval))
		config.Interval = DefaultSweepInterval
	}

	return &RetentionSweeper{
		documents: documents,
		jobs:      jobs,
		retention: config.Retention,
		interval:  config.Interval,
		now:       time.Now,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background sweep
func (s *RetentionSweeper) Start() {
	go s.sweepLoop()
	s.logger.Info("Retention sweeper started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))
}

// Stop stops the sweeper. It is safe to call more than once.
func (s *RetentionSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("Retention sweeper stopped")
	})
}

func (s *RetentionSweeper) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initialTimer := time.NewTimer(initialSweepDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runSweep()
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *RetentionSweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("Retention sweep failed", zap.Error(err))
	}
}

// Sweep removes everything older than the retention window once and
// reports how many documents and jobs went away
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, int, error) {
	cutoff := s.now().Add(-s.retention)

	jobsRemoved := 0
	if s.jobs != nil {
		jobsRemoved = s.jobs.Prune(cutoff)
	}

	docsRemoved, err := s.documents.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, jobsRemoved, err
	}

	s.logger.Info("Retention sweep completed",
		zap.Time("cutoff", cutoff),
		zap.Int("documentsRemoved", docsRemoved),
		zap.Int("jobsRemoved", jobsRemoved))
	return docsRemoved, jobsRemoved, nil
}
