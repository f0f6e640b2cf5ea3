// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on transition guards, upsert resets and concurrent decisions

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockSeed(t *testing.T, m *MockStore, userID int64) *JoinRequest {
	t.Helper()
	req, err := m.UpsertJoinRequest(context.Background(), &JoinRequest{
		ChatID:      -100500,
		UserID:      userID,
		FirstName:   "Test",
		SubmittedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return req
}

func TestMockStore_Upsert_ResetsExisting(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	first := mockSeed(t, store, 5000)
	require.NoError(t, store.MarkPendingAdmin(ctx, first.ID, "route=manual_mode"))
	reviewer := int64(77)
	require.NoError(t, store.CompleteJoinRequest(ctx, first.ID, StatusPendingAdmin, StatusDeclined, &reviewer, "manual_decline"))

	second, err := store.UpsertJoinRequest(ctx, &JoinRequest{
		ChatID:      -100500,
		UserID:      5000,
		Username:    "back_again",
		FirstName:   "Test",
		SubmittedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// Same row, fully reset
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusNew, second.Status)
	assert.Equal(t, "back_again", second.Username)
	assert.Nil(t, second.DecidedBy)
	assert.Empty(t, second.DecisionNote)
}

func TestMockStore_GuardedTransitions(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	req := mockSeed(t, store, 1)

	// Route to captcha, then every new-state transition must conflict
	require.NoError(t, store.MarkPendingCaptcha(ctx, req.ID, "3 + 4 = ?", 7, 3, DifficultyNormal, false))

	assert.ErrorIs(t, store.MarkPendingAdmin(ctx, req.ID, "route=manual_mode"), ErrStateConflict)
	assert.ErrorIs(t, store.SetRiskProfile(ctx, req.ID, nil, 0, nil), ErrStateConflict)
	assert.ErrorIs(t, store.MarkPendingCaptcha(ctx, req.ID, "x", 1, 3, DifficultyNormal, false), ErrStateConflict)

	// Unknown rows are reported as missing, not conflicting
	assert.ErrorIs(t, store.MarkPendingAdmin(ctx, 404, "route=manual_mode"), ErrNotFound)
}

func TestMockStore_ConsumeAttempt_Clamps(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	req := mockSeed(t, store, 1)

	require.NoError(t, store.MarkPendingCaptcha(ctx, req.ID, "3 + 4 = ?", 7, 2, DifficultyHard, true))

	for i := 0; i < 4; i++ {
		used, allowed, err := store.ConsumeAttempt(ctx, req.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, used, allowed)
	}

	got, err := store.GetJoinRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CaptchaAttempts)
}

func TestMockStore_Complete_FirstCommitterWins(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	req := mockSeed(t, store, 1)
	require.NoError(t, store.MarkPendingAdmin(ctx, req.ID, "route=manual_mode"))

	// Many racing reviewers; exactly one decision may land
	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(reviewer int64) {
			defer wg.Done()
			to := StatusApproved
			if reviewer%2 == 0 {
				to = StatusDeclined
			}
			results <- store.CompleteJoinRequest(ctx, req.ID, StatusPendingAdmin, to, &reviewer, "manual")
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case err == ErrStateConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	got, err := store.GetJoinRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	req := mockSeed(t, store, 1)

	age := 10
	require.NoError(t, store.SetRiskProfile(ctx, req.ID, &age, 3, []string{"no_handle"}))

	got, err := store.GetJoinRequest(ctx, req.ID)
	require.NoError(t, err)

	// Mutating the returned value must not leak back into the store
	got.FirstName = "Mutated"
	*got.AgeDays = 99
	got.RiskReasons[0] = "mutated"

	fresh, err := store.GetJoinRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", fresh.FirstName)
	assert.Equal(t, 10, *fresh.AgeDays)
	assert.Equal(t, []string{"no_handle"}, fresh.RiskReasons)
}

func TestMockStore_Queues(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	older, err := store.UpsertJoinRequest(ctx, &JoinRequest{ChatID: -1, UserID: 1, FirstName: "A", SubmittedAt: base})
	require.NoError(t, err)
	newer, err := store.UpsertJoinRequest(ctx, &JoinRequest{ChatID: -1, UserID: 2, FirstName: "B", SubmittedAt: base.Add(10 * time.Minute)})
	require.NoError(t, err)

	require.NoError(t, store.MarkPendingAdmin(ctx, older.ID, "route=manual_mode"))
	require.NoError(t, store.MarkPendingAdmin(ctx, newer.ID, "route=manual_mode"))

	pending, err := store.ListPendingReview(ctx, 8)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)

	reviewer := int64(77)
	require.NoError(t, store.CompleteJoinRequest(ctx, older.ID, StatusPendingAdmin, StatusApproved, &reviewer, "manual_approve"))

	decisions, err := store.ListRecentDecisions(ctx, 5)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, older.ID, decisions[0].ID)

	counts, err := store.CountByStatusSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatusApproved])
	assert.Equal(t, 1, counts[StatusPendingAdmin])
}

func TestMockStore_AuditFiltering(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	reqID := int64(9)
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: AuditApproveRequest, RequestID: &reqID}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 88, Action: AuditToggleMode}))

	action := AuditToggleMode
	entries, err := store.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(88), entries[0].ActorID)

	entries, err = store.ListAuditLog(ctx, AuditFilter{RequestID: &reqID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditApproveRequest, entries[0].Action)
}
