// ABOUTME: Background maintenance: expire stale pending requests, purge old decisions
// ABOUTME: Batch-driven so a single sweep bounds its own work

package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/joinguard/internal/store"
)

// expireBatchSize bounds how many stale requests one sweep pass handles.
const expireBatchSize = 100

// ExpireStalePending declines every pending request older than olderThan.
// Each request is rejected through the gate before its record is declined;
// a request whose gate call fails is skipped and picked up by a later sweep.
// Returns how many requests were expired.
func (s *Service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.store.ListStalePending(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale requests: %w", err)
	}

	expired := 0
	for _, rec := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		if err := s.gate.Reject(ctx, rec.ChatID, rec.UserID); err != nil {
			s.logger.Warn("gate reject failed during expiry, skipping",
				"request_id", rec.ID, "user_id", rec.UserID, "error", err)
			continue
		}

		err := s.store.CompleteJoinRequest(ctx, rec.ID, rec.Status, store.StatusDeclined, nil, "expired_pending")
		if err != nil {
			if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrNotFound) {
				// Someone decided or re-applied while we were sweeping
				continue
			}
			return expired, fmt.Errorf("expiring request %d: %w", rec.ID, err)
		}

		expired++
		s.audit(ctx, &store.AuditEntry{
			Action:    store.AuditExpireRequest,
			RequestID: &rec.ID,
			Detail:    map[string]any{"user_id": rec.UserID, "submitted_at": rec.SubmittedAt.Format(time.RFC3339)},
		})
	}

	if expired > 0 {
		s.logger.Info("expired stale pending requests", "count", expired, "cutoff", cutoff)
	}
	return expired, nil
}

// PurgeDecided deletes decided requests older than olderThan and returns how
// many rows were removed. Audit entries are kept.
func (s *Service) PurgeDecided(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	removed, err := s.store.DeleteDecidedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging decided requests: %w", err)
	}

	if removed > 0 {
		s.audit(ctx, &store.AuditEntry{
			Action: store.AuditPurgeRecords,
			Detail: map[string]any{"removed": removed, "cutoff": cutoff.Format(time.RFC3339)},
		})
	}
	return removed, nil
}
