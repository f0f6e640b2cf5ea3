// ABOUTME: Tests for background expiry and purge maintenance
// ABOUTME: Uses the service clock seam to age requests deterministically

package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/joinguard/internal/risk"
	"github.com/2389/joinguard/internal/store"
)

func eventAt(userID int64, submitted time.Time) JoinEvent {
	e := testEvent(userID)
	e.SubmittedAt = submitted
	return e
}

func TestExpireStalePending(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 2000, Score: 0, Reasons: []string{"estimated_age=2000d"}})
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }

	// One stale captcha, one stale admin review, one fresh captcha
	staleCaptcha, err := h.svc.SubmitJoinRequest(ctx, eventAt(401, now.Add(-9*24*time.Hour)))
	require.NoError(t, err)

	h.svc.scorer = stubAssessor{out: risk.Assessment{AgeDays: 5, Score: 10, Reasons: []string{"account_bot"}}}
	staleAdmin, err := h.svc.SubmitJoinRequest(ctx, eventAt(402, now.Add(-3*24*time.Hour)))
	require.NoError(t, err)

	h.svc.scorer = stubAssessor{out: risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil}}
	fresh, err := h.svc.SubmitJoinRequest(ctx, eventAt(403, now.Add(-time.Hour)))
	require.NoError(t, err)

	expired, err := h.svc.ExpireStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Equal(t, 2, h.gate.rejectCount())

	for _, id := range []int64{staleCaptcha.RequestID, staleAdmin.RequestID} {
		rec, err := h.store.GetJoinRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, store.StatusDeclined, rec.Status)
		assert.Nil(t, rec.DecidedBy)
		assert.Equal(t, "expired_pending", rec.DecisionNote)
	}

	rec, err := h.store.GetJoinRequest(ctx, fresh.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingCaptcha, rec.Status)

	action := store.AuditExpireRequest
	entries, err := h.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, int64(0), entry.ActorID)
	}

	// A second sweep finds nothing
	expired, err = h.svc.ExpireStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestExpireStalePending_GateFailureSkips(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil})
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }

	outcome, err := h.svc.SubmitJoinRequest(ctx, eventAt(404, now.Add(-9*24*time.Hour)))
	require.NoError(t, err)

	h.gate.rejectErr = errors.New("telegram is down")
	expired, err := h.svc.ExpireStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, expired)

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingCaptcha, rec.Status)

	// The next sweep picks it up once the gate recovers
	h.gate.rejectErr = nil
	expired, err = h.svc.ExpireStalePending(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}

func TestPurgeDecided(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil})
	ctx := context.Background()

	decided := submitChallenger(t, h, 405, 0)
	_, err := h.svc.SubmitChallengeAnswer(ctx, decided.RequestID, 405, 4)
	require.NoError(t, err)

	pending := submitChallenger(t, h, 406, 0)

	// Sweep from two days in the future so the fresh decision is past cutoff
	h.svc.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	removed, err := h.svc.PurgeDecided(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = h.store.GetJoinRequest(ctx, decided.RequestID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err := h.store.GetJoinRequest(ctx, pending.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingCaptcha, rec.Status)

	action := store.AuditPurgeRecords
	entries, err := h.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Detail["removed"])
}

func TestPurgeDecided_NothingToRemove(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil})
	ctx := context.Background()

	removed, err := h.svc.PurgeDecided(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	action := store.AuditPurgeRecords
	entries, err := h.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
