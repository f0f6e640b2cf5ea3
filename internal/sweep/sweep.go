// ABOUTME: Scheduled retention sweeps driven by cron.
// ABOUTME: Expires stale pending requests and purges old decided records.

package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/2389/joinguard/internal/config"
)

// jobTimeout bounds a single sweep run.
const jobTimeout = 2 * time.Minute

// Maintainer is the slice of the moderation service the sweeper drives.
type Maintainer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
	PurgeDecided(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper runs the retention jobs on a cron schedule in UTC. Both jobs share
// one schedule; a zero TTL disables the corresponding job.
type Sweeper struct {
	cron    *cron.Cron
	service Maintainer
	cfg     config.RetentionConfig
	logger  *slog.Logger
}

// New creates a sweeper with jobs registered per the retention config.
// An empty schedule yields a sweeper with no jobs, so Start is a no-op.
func New(svc Maintainer, cfg config.RetentionConfig) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		service: svc,
		cfg:     cfg,
		logger:  slog.Default().With("component", "sweep"),
	}

	if cfg.Schedule == "" {
		s.logger.Info("retention sweeps disabled, no schedule configured")
		return s, nil
	}

	if cfg.PendingTTL > 0 {
		if _, err := s.cron.AddFunc(cfg.Schedule, s.runExpire); err != nil {
			return nil, fmt.Errorf("registering expire job: %w", err)
		}
	}
	if cfg.DecidedTTL > 0 {
		if _, err := s.cron.AddFunc(cfg.Schedule, s.runPurge); err != nil {
			return nil, fmt.Errorf("registering purge job: %w", err)
		}
	}

	return s, nil
}

// Start begins the schedule. Jobs run in cron's own goroutines.
func (s *Sweeper) Start() {
	entries := len(s.cron.Entries())
	if entries == 0 {
		return
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", s.cfg.Schedule, "jobs", entries)
}

// Stop halts the schedule and waits for any in-flight job to finish.
// Safe to call on a sweeper that was never started.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runExpire() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.service.ExpireStalePending(ctx, s.cfg.PendingTTL); err != nil {
		s.logger.Error("expire sweep failed", "error", err)
	}
}

func (s *Sweeper) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.service.PurgeDecided(ctx, s.cfg.DecidedTTL)
	if err != nil {
		s.logger.Error("purge sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("purged decided requests", "removed", removed)
	}
}
