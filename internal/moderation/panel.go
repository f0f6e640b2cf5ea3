// ABOUTME: Read models for the admin panel: dashboard stats, queues, mode toggle
// ABOUTME: Aggregates store counts and policy state into render-ready structs

package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/store"
)

// statsWindow is how far back the dashboard counts requests.
const statsWindow = 24 * time.Hour

// DashboardData is everything the admin dashboard renders in one screen.
type DashboardData struct {
	Mode       policy.Mode
	Thresholds policy.Thresholds
	Window     time.Duration
	Counts     store.StatusCounts
	Recent     []*store.JoinRequest
}

// Dashboard assembles the moderation overview: current mode, thresholds,
// request counts over the stats window, and the latest decisions.
func (s *Service) Dashboard(ctx context.Context) (*DashboardData, error) {
	since := s.now().Add(-statsWindow)
	counts, err := s.store.CountByStatusSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("counting requests: %w", err)
	}

	recent, err := s.store.ListRecentDecisions(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("listing recent decisions: %w", err)
	}

	return &DashboardData{
		Mode:       s.policy.Mode(ctx),
		Thresholds: s.policy.Thresholds(),
		Window:     statsWindow,
		Counts:     counts,
		Recent:     recent,
	}, nil
}

// PendingReview lists requests waiting on a human, oldest first.
func (s *Service) PendingReview(ctx context.Context, limit int) ([]*store.JoinRequest, error) {
	return s.store.ListPendingReview(ctx, limit)
}

// RecentDecisions lists decided requests, newest decision first.
func (s *Service) RecentDecisions(ctx context.Context, limit int) ([]*store.JoinRequest, error) {
	return s.store.ListRecentDecisions(ctx, limit)
}

// ToggleMode flips hybrid to manual or back, records who did it, and returns
// the mode now in force.
func (s *Service) ToggleMode(ctx context.Context, actorID int64) (policy.Mode, error) {
	mode, err := s.policy.Toggle(ctx)
	if err != nil {
		return "", fmt.Errorf("toggling moderation mode: %w", err)
	}

	s.logger.Info("moderation mode toggled", "mode", mode, "actor_id", actorID)
	s.audit(ctx, &store.AuditEntry{
		ActorID: actorID,
		Action:  store.AuditToggleMode,
		Detail:  map[string]any{"mode": string(mode)},
	})
	return mode, nil
}

// Mode reports the moderation mode currently in force.
func (s *Service) Mode(ctx context.Context) policy.Mode {
	return s.policy.Mode(ctx)
}

// SetMode persists an explicit moderation mode and records who set it.
func (s *Service) SetMode(ctx context.Context, mode policy.Mode, actorID int64) error {
	if err := s.policy.SetMode(ctx, mode); err != nil {
		return err
	}
	s.audit(ctx, &store.AuditEntry{
		ActorID: actorID,
		Action:  store.AuditToggleMode,
		Detail:  map[string]any{"mode": string(mode)},
	})
	return nil
}
