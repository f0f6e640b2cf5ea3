package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := t.TempDir() + "/test.db"

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusDeclined.Terminal())
	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusPendingAdmin.Terminal())
	assert.False(t, StatusPendingCaptcha.Terminal())
}

func TestStatus_Pending(t *testing.T) {
	assert.True(t, StatusPendingAdmin.Pending())
	assert.True(t, StatusPendingCaptcha.Pending())
	assert.False(t, StatusNew.Pending())
	assert.False(t, StatusApproved.Pending())
	assert.False(t, StatusDeclined.Pending())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusPendingAdmin, StatusPendingCaptcha, StatusApproved, StatusDeclined} {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}
	assert.False(t, Status("banned").Valid())
	assert.False(t, Status("").Valid())
}

func TestJoinRequest_AttemptsLeft(t *testing.T) {
	req := &JoinRequest{CaptchaAttempts: 1, CaptchaMaxAttempts: 3}
	assert.Equal(t, 2, req.AttemptsLeft())

	req.CaptchaAttempts = 3
	assert.Equal(t, 0, req.AttemptsLeft())

	// Never negative, even when counters are inconsistent
	req.CaptchaAttempts = 5
	assert.Equal(t, 0, req.AttemptsLeft())
}

func TestJoinRequest_DisplayName(t *testing.T) {
	req := &JoinRequest{FirstName: "Nora"}
	assert.Equal(t, "Nora", req.DisplayName())

	req.LastName = "Jensen"
	assert.Equal(t, "Nora Jensen", req.DisplayName())
}

func TestStatusCounts_Total(t *testing.T) {
	counts := StatusCounts{
		StatusApproved:       3,
		StatusDeclined:       2,
		StatusPendingCaptcha: 1,
	}
	assert.Equal(t, 6, counts.Total())
	assert.Equal(t, 0, StatusCounts{}.Total())
}

func TestStatusCounts_Window(t *testing.T) {
	// Sanity: a zero time window includes everything
	store := setupTestStore(t)
	counts, err := store.CountByStatusSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total())
}
