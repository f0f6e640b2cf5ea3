// ABOUTME: Manual review flow: a reviewer approves or declines a pending request
// ABOUTME: Gate-before-commit with CAS so racing reviewers can't double-decide

package moderation

import (
	"context"
	"fmt"

	"github.com/2389/joinguard/internal/store"
)

// ReviewOutcome reports a committed manual decision.
type ReviewOutcome struct {
	Request  *store.JoinRequest
	Approved bool
}

// SubmitReview applies one reviewer's verdict to a request awaiting manual
// review. The record must still be pending_admin; a request that was already
// decided, or that a racing reviewer just decided, returns ErrAlreadyDecided
// and the stored decision stands untouched.
//
// Caller is responsible for having authenticated the reviewer; this layer
// only records who decided.
func (s *Service) SubmitReview(ctx context.Context, requestID, reviewerID int64, approve bool) (*ReviewOutcome, error) {
	rec, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("loading join request: %w", err)
	}
	if rec.Status != store.StatusPendingAdmin {
		return nil, ErrAlreadyDecided
	}

	var (
		target store.Status
		note   string
		action store.AuditAction
	)
	if approve {
		target, note, action = store.StatusApproved, "manual_approve", store.AuditApproveRequest
	} else {
		target, note, action = store.StatusDeclined, "manual_decline", store.AuditDeclineRequest
	}

	if approve {
		err = s.gate.Admit(ctx, rec.ChatID, rec.UserID)
	} else {
		err = s.gate.Reject(ctx, rec.ChatID, rec.UserID)
	}
	if err != nil {
		s.logger.Warn("gate call failed during manual review",
			"request_id", requestID, "reviewer_id", reviewerID, "approve", approve, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGateUnavailable, err)
	}

	if err := s.store.CompleteJoinRequest(ctx, requestID, store.StatusPendingAdmin, target, &reviewerID, note); err != nil {
		return nil, s.mapConflict(err, "committing review")
	}

	s.logger.Info("manual review committed",
		"request_id", requestID, "reviewer_id", reviewerID, "approved", approve,
		"user_id", rec.UserID, "chat_id", rec.ChatID)
	s.audit(ctx, &store.AuditEntry{
		ActorID:   reviewerID,
		Action:    action,
		RequestID: &requestID,
		Detail:    map[string]any{"note": note, "user_id": rec.UserID},
	})

	decided, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		// Decision is committed; reporting it back is best-effort
		s.logger.Warn("reloading decided request failed", "request_id", requestID, "error", err)
		decided = rec
	}
	return &ReviewOutcome{Request: decided, Approved: approve}, nil
}
