// ABOUTME: Tests for panel read models, dashboard assembly and the mode toggle
// ABOUTME: Exercises count windows and audit trails for mode changes

package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/risk"
	"github.com/2389/joinguard/internal/store"
)

func TestDashboard(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil})
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }

	// Within the 24h window: one decided, one waiting on captcha, one on admin
	decided, err := h.svc.SubmitJoinRequest(ctx, eventAt(501, now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = h.svc.SubmitChallengeAnswer(ctx, decided.RequestID, 501, 4)
	require.NoError(t, err)

	_, err = h.svc.SubmitJoinRequest(ctx, eventAt(502, now.Add(-2*time.Hour)))
	require.NoError(t, err)

	h.svc.scorer = stubAssessor{out: risk.Assessment{AgeDays: 5, Score: 10, Reasons: []string{"account_bot"}}}
	_, err = h.svc.SubmitJoinRequest(ctx, eventAt(503, now.Add(-3*time.Hour)))
	require.NoError(t, err)

	// Outside the window: not counted
	h.svc.scorer = stubAssessor{out: risk.Assessment{AgeDays: 2000, Score: 0, Reasons: nil}}
	_, err = h.svc.SubmitJoinRequest(ctx, eventAt(504, now.Add(-48*time.Hour)))
	require.NoError(t, err)

	data, err := h.svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, policy.ModeHybrid, data.Mode)
	assert.Equal(t, 7, data.Thresholds.AdminReview)
	assert.Equal(t, 24*time.Hour, data.Window)

	assert.Equal(t, 1, data.Counts[store.StatusApproved])
	assert.Equal(t, 1, data.Counts[store.StatusPendingCaptcha])
	assert.Equal(t, 1, data.Counts[store.StatusPendingAdmin])
	assert.Equal(t, 3, data.Counts.Total())

	require.Len(t, data.Recent, 1)
	assert.Equal(t, decided.RequestID, data.Recent[0].ID)
}

func TestPendingReviewAndRecentDecisions(t *testing.T) {
	h := newTestService(t, risk.Assessment{AgeDays: 5, Score: 10, Reasons: []string{"account_bot"}})
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	older, err := h.svc.SubmitJoinRequest(ctx, eventAt(505, now.Add(-2*time.Hour)))
	require.NoError(t, err)
	newer, err := h.svc.SubmitJoinRequest(ctx, eventAt(506, now.Add(-time.Hour)))
	require.NoError(t, err)

	pending, err := h.svc.PendingReview(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.RequestID, pending[0].ID)
	assert.Equal(t, newer.RequestID, pending[1].ID)

	_, err = h.svc.SubmitReview(ctx, older.RequestID, 777, true)
	require.NoError(t, err)

	decisions, err := h.svc.RecentDecisions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, older.RequestID, decisions[0].ID)

	pending, err = h.svc.PendingReview(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.RequestID, pending[0].ID)
}

func TestToggleMode(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()

	assert.Equal(t, policy.ModeHybrid, h.svc.Mode(ctx))

	mode, err := h.svc.ToggleMode(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, policy.ModeManual, mode)
	assert.Equal(t, policy.ModeManual, h.svc.Mode(ctx))

	mode, err = h.svc.ToggleMode(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, policy.ModeHybrid, mode)

	action := store.AuditToggleMode
	entries, err := h.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(777), entries[0].ActorID)
	assert.Equal(t, "hybrid", entries[0].Detail["mode"])
}

func TestSetMode(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()

	require.NoError(t, h.svc.SetMode(ctx, policy.ModeManual, 888))
	assert.Equal(t, policy.ModeManual, h.svc.Mode(ctx))

	err := h.svc.SetMode(ctx, policy.Mode("strict"), 888)
	assert.ErrorIs(t, err, policy.ErrInvalidMode)
	assert.Equal(t, policy.ModeManual, h.svc.Mode(ctx))
}
