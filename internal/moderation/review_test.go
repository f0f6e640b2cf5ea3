// ABOUTME: Tests for the manual review flow
// ABOUTME: Covers both verdicts, stale targets, gate failure and racing reviewers

package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/joinguard/internal/risk"
	"github.com/2389/joinguard/internal/store"
)

// submitForReview routes one applicant into pending_admin
func submitForReview(t *testing.T, h *serviceHarness, userID int64) *JoinOutcome {
	t.Helper()

	h.svc.scorer = stubAssessor{out: risk.Assessment{AgeDays: 5, Score: 10, Reasons: []string{"estimated_age=5d", "account_bot"}}}
	outcome, err := h.svc.SubmitJoinRequest(context.Background(), testEvent(userID))
	require.NoError(t, err)
	require.Equal(t, RouteAdminReview, outcome.Route)
	return outcome
}

func TestSubmitReview_Approve(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()
	outcome := submitForReview(t, h, 301)

	result, err := h.svc.SubmitReview(ctx, outcome.RequestID, 777, true)
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, store.StatusApproved, result.Request.Status)

	assert.Equal(t, 1, h.gate.admitCount())
	assert.Zero(t, h.gate.rejectCount())

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, rec.Status)
	require.NotNil(t, rec.DecidedBy)
	assert.Equal(t, int64(777), *rec.DecidedBy)
	assert.Equal(t, "manual_approve", rec.DecisionNote)

	action := store.AuditApproveRequest
	entries, err := h.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(777), entries[0].ActorID)
}

func TestSubmitReview_Decline(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()
	outcome := submitForReview(t, h, 302)

	result, err := h.svc.SubmitReview(ctx, outcome.RequestID, 777, false)
	require.NoError(t, err)
	assert.False(t, result.Approved)

	assert.Equal(t, 1, h.gate.rejectCount())
	assert.Zero(t, h.gate.admitCount())

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDeclined, rec.Status)
	assert.Equal(t, "manual_decline", rec.DecisionNote)
}

func TestSubmitReview_NotAwaitingReview(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()
	outcome := submitChallenger(t, h, 303, 0)

	_, err := h.svc.SubmitReview(ctx, outcome.RequestID, 777, true)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Zero(t, h.gate.admitCount())

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingCaptcha, rec.Status)
}

func TestSubmitReview_UnknownRequest(t *testing.T) {
	h := newTestService(t, risk.Assessment{})

	_, err := h.svc.SubmitReview(context.Background(), 9999, 777, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitReview_GateFailureLeavesPending(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()
	outcome := submitForReview(t, h, 304)

	h.gate.rejectErr = errors.New("telegram is down")
	_, err := h.svc.SubmitReview(ctx, outcome.RequestID, 777, false)
	assert.ErrorIs(t, err, ErrGateUnavailable)

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingAdmin, rec.Status)

	h.gate.rejectErr = nil
	result, err := h.svc.SubmitReview(ctx, outcome.RequestID, 777, false)
	require.NoError(t, err)
	assert.False(t, result.Approved)
}

// blockingGate parks every gate call until release is closed, so a test can
// hold two handlers past the status pre-check at the same time
type blockingGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGate) Admit(context.Context, int64, int64) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func (g *blockingGate) Reject(context.Context, int64, int64) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func TestSubmitReview_RacingReviewersFirstCommitterWins(t *testing.T) {
	h := newTestService(t, risk.Assessment{})
	ctx := context.Background()
	outcome := submitForReview(t, h, 305)

	gate := &blockingGate{entered: make(chan struct{}, 2), release: make(chan struct{})}
	h.svc.gate = gate

	results := make(chan error, 2)
	go func() {
		_, err := h.svc.SubmitReview(ctx, outcome.RequestID, 111, true)
		results <- err
	}()
	go func() {
		_, err := h.svc.SubmitReview(ctx, outcome.RequestID, 222, false)
		results <- err
	}()

	// Both reviewers have passed the pending_admin check and sit inside the
	// gate call; releasing them makes both try to commit
	<-gate.entered
	<-gate.entered
	close(gate.release)

	committed, conflicted := 0, 0
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			committed++
		case errors.Is(err, ErrAlreadyDecided):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicted)

	rec, err := h.store.GetJoinRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	require.True(t, rec.Status.Terminal())
	require.NotNil(t, rec.DecidedBy)
	if rec.Status == store.StatusApproved {
		assert.Equal(t, int64(111), *rec.DecidedBy)
		assert.Equal(t, "manual_approve", rec.DecisionNote)
	} else {
		assert.Equal(t, int64(222), *rec.DecidedBy)
		assert.Equal(t, "manual_decline", rec.DecisionNote)
	}
}
