// ABOUTME: Tests for audit log store operations
// ABOUTME: Covers Append and List with filtering for the audit_log table

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_Append(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	requestID := int64(42)
	entry := &AuditEntry{
		ActorID:   77,
		Action:    AuditApproveRequest,
		RequestID: &requestID,
		Detail:    map[string]any{"note": "manual_approve"},
	}

	err := store.AppendAuditLog(ctx, entry)
	require.NoError(t, err)

	// Should have generated ID and timestamp
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAuditStore_List_NoFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Append multiple entries
	for i, action := range []AuditAction{AuditApproveRequest, AuditDeclineRequest, AuditToggleMode} {
		entry := &AuditEntry{
			ActorID:   77,
			Action:    action,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.AppendAuditLog(ctx, entry))
	}

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// Should be newest first
	assert.Equal(t, AuditToggleMode, entries[0].Action)
}

func TestAuditStore_List_ByAction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, action := range []AuditAction{AuditApproveRequest, AuditDeclineRequest, AuditApproveRequest} {
		require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: action}))
	}

	action := AuditApproveRequest
	entries, err := store.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, AuditApproveRequest, e.Action)
	}
}

func TestAuditStore_List_ByActor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: AuditApproveRequest}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 88, Action: AuditDeclineRequest}))

	actor := int64(88)
	entries, err := store.ListAuditLog(ctx, AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(88), entries[0].ActorID)
}

func TestAuditStore_List_ByRequest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	reqA, reqB := int64(1), int64(2)
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: AuditApproveRequest, RequestID: &reqA}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: AuditDeclineRequest, RequestID: &reqB}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{ActorID: 77, Action: AuditToggleMode}))

	entries, err := store.ListAuditLog(ctx, AuditFilter{RequestID: &reqB})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditDeclineRequest, entries[0].Action)
}

func TestAuditStore_List_BySince(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorID: 77, Action: AuditApproveRequest, Timestamp: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorID: 77, Action: AuditDeclineRequest, Timestamp: now.Add(-10 * time.Minute),
	}))

	since := now.Add(-time.Hour)
	entries, err := store.ListAuditLog(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditDeclineRequest, entries[0].Action)
}

func TestAuditStore_List_DetailRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorID: 0,
		Action:  AuditPurgeRecords,
		Detail:  map[string]any{"removed": float64(12)},
	}))

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"removed": float64(12)}, entries[0].Detail)
	assert.Nil(t, entries[0].RequestID)
}

func TestAuditStore_List_LimitNormalization(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
			ActorID:   77,
			Action:    AuditApproveRequest,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	// Zero limit falls back to the default of 100
	entries, err := store.ListAuditLog(ctx, AuditFilter{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	entries, err = store.ListAuditLog(ctx, AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAuditStore_List_Empty(t *testing.T) {
	store := setupTestStore(t)

	entries, err := store.ListAuditLog(context.Background(), AuditFilter{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
