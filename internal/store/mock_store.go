// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// State transitions carry the same guards as the SQLite store so service
// tests exercise identical conflict behavior.
type MockStore struct {
	mu       sync.RWMutex
	nextID   int64
	requests map[int64]*JoinRequest // keyed by request ID
	byUser   map[[2]int64]int64     // keyed by {chatID, userID} -> request ID
	settings map[string]string      // keyed by setting key
	audit    []AuditEntry           // append order
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		requests: make(map[int64]*JoinRequest),
		byUser:   make(map[[2]int64]int64),
		settings: make(map[string]string),
	}
}

// cloneRequest copies a request so callers cannot mutate stored state
func cloneRequest(r *JoinRequest) *JoinRequest {
	c := *r
	if r.AgeDays != nil {
		v := *r.AgeDays
		c.AgeDays = &v
	}
	if r.DecidedBy != nil {
		v := *r.DecidedBy
		c.DecidedBy = &v
	}
	if r.DecidedAt != nil {
		v := *r.DecidedAt
		c.DecidedAt = &v
	}
	if r.RiskReasons != nil {
		c.RiskReasons = append([]string(nil), r.RiskReasons...)
	}
	return &c
}

// UpsertJoinRequest records or resets an application.
func (m *MockStore) UpsertJoinRequest(ctx context.Context, req *JoinRequest) (*JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]int64{req.ChatID, req.UserID}
	if id, ok := m.byUser[key]; ok {
		existing := m.requests[id]
		existing.UserChatID = req.UserChatID
		existing.Username = req.Username
		existing.FirstName = req.FirstName
		existing.LastName = req.LastName
		existing.SubmittedAt = req.SubmittedAt.UTC().Truncate(time.Second)
		existing.Status = StatusNew
		existing.IsFlagged = false
		existing.AgeDays = nil
		existing.RiskScore = 0
		existing.RiskReasons = nil
		existing.CaptchaQuestion = ""
		existing.CaptchaAnswer = 0
		existing.CaptchaAttempts = 0
		existing.CaptchaMaxAttempts = 3
		existing.CaptchaDifficulty = DifficultyNormal
		existing.DecidedBy = nil
		existing.DecidedAt = nil
		existing.DecisionNote = ""
		return cloneRequest(existing), nil
	}

	m.nextID++
	r := cloneRequest(req)
	r.ID = m.nextID
	r.SubmittedAt = req.SubmittedAt.UTC().Truncate(time.Second)
	r.Status = StatusNew
	r.CaptchaMaxAttempts = 3
	r.CaptchaDifficulty = DifficultyNormal
	m.requests[r.ID] = r
	m.byUser[key] = r.ID
	return cloneRequest(r), nil
}

// GetJoinRequest retrieves a request by ID.
func (m *MockStore) GetJoinRequest(ctx context.Context, id int64) (*JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(r), nil
}

// guarded looks up a request and checks its status, mirroring the SQLite
// guarded UPDATE behavior
func (m *MockStore) guarded(id int64, want ...Status) (*JoinRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, s := range want {
		if r.Status == s {
			return r, nil
		}
	}
	return nil, ErrStateConflict
}

// SetRiskProfile stores an assessment on an unrouted request.
func (m *MockStore) SetRiskProfile(ctx context.Context, id int64, ageDays *int, score int, reasons []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, StatusNew)
	if err != nil {
		return err
	}
	if ageDays != nil {
		v := *ageDays
		r.AgeDays = &v
	} else {
		r.AgeDays = nil
	}
	r.RiskScore = score
	r.RiskReasons = append([]string(nil), reasons...)
	return nil
}

// MarkPendingAdmin routes an unrouted request to human review.
func (m *MockStore) MarkPendingAdmin(ctx context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, StatusNew)
	if err != nil {
		return err
	}
	r.Status = StatusPendingAdmin
	r.IsFlagged = true
	r.DecisionNote = note
	return nil
}

// MarkPendingCaptcha routes an unrouted request to the arithmetic challenge.
func (m *MockStore) MarkPendingCaptcha(ctx context.Context, id int64, question string, answer int64, maxAttempts int, difficulty string, flagged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, StatusNew)
	if err != nil {
		return err
	}
	r.Status = StatusPendingCaptcha
	r.IsFlagged = flagged
	r.CaptchaQuestion = question
	r.CaptchaAnswer = answer
	r.CaptchaAttempts = 0
	r.CaptchaMaxAttempts = maxAttempts
	r.CaptchaDifficulty = difficulty
	r.DecisionNote = ""
	return nil
}

// ReplaceChallenge swaps in a fresh question.
func (m *MockStore) ReplaceChallenge(ctx context.Context, id int64, question string, answer int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, StatusPendingCaptcha)
	if err != nil {
		return err
	}
	r.CaptchaQuestion = question
	r.CaptchaAnswer = answer
	return nil
}

// ConsumeAttempt burns one challenge attempt.
func (m *MockStore) ConsumeAttempt(ctx context.Context, id int64) (used, allowed int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, StatusPendingCaptcha)
	if err != nil {
		return 0, 0, err
	}
	if r.CaptchaAttempts < r.CaptchaMaxAttempts {
		r.CaptchaAttempts++
	}
	return r.CaptchaAttempts, r.CaptchaMaxAttempts, nil
}

// CompleteJoinRequest finalizes a request if it is still in the expected state.
func (m *MockStore) CompleteJoinRequest(ctx context.Context, id int64, from, to Status, decidedBy *int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.guarded(id, from)
	if err != nil {
		return err
	}
	r.Status = to
	if decidedBy != nil {
		v := *decidedBy
		r.DecidedBy = &v
	} else {
		r.DecidedBy = nil
	}
	now := time.Now().UTC().Truncate(time.Second)
	r.DecidedAt = &now
	r.DecisionNote = note
	return nil
}

// ListPendingReview returns requests awaiting a human decision, oldest first.
func (m *MockStore) ListPendingReview(ctx context.Context, limit int) ([]*JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*JoinRequest
	for _, r := range m.requests {
		if r.Status == StatusPendingAdmin {
			result = append(result, cloneRequest(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecentDecisions returns finalized requests, newest decision first.
func (m *MockStore) ListRecentDecisions(ctx context.Context, limit int) ([]*JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*JoinRequest
	for _, r := range m.requests {
		if r.Status.Terminal() {
			result = append(result, cloneRequest(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].DecidedAt, result[j].DecidedAt
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountByStatusSince tallies requests submitted at or after the given time.
func (m *MockStore) CountByStatusSince(ctx context.Context, since time.Time) (StatusCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := StatusCounts{}
	for _, r := range m.requests {
		if !r.SubmittedAt.Before(since) {
			counts[r.Status]++
		}
	}
	return counts, nil
}

// ListStalePending returns pending requests submitted before the cutoff.
func (m *MockStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*JoinRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*JoinRequest
	for _, r := range m.requests {
		if r.Status.Pending() && r.SubmittedAt.Before(cutoff) {
			result = append(result, cloneRequest(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteDecidedBefore removes finalized requests decided before the cutoff.
func (m *MockStore) DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, r := range m.requests {
		if r.Status.Terminal() && r.DecidedAt != nil && r.DecidedAt.Before(cutoff) {
			delete(m.requests, id)
			delete(m.byUser, [2]int64{r.ChatID, r.UserID})
			removed++
		}
	}
	return removed, nil
}

// GetSetting retrieves a setting value by key.
func (m *MockStore) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetSetting stores a setting value.
func (m *MockStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// AppendAuditLog appends a new audit entry.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeAuditLimit(f.Limit)

	var entries []AuditEntry
	for _, e := range m.audit {
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && e.Timestamp.After(*f.Until) {
			continue
		}
		if f.ActorID != nil && e.ActorID != *f.ActorID {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.RequestID != nil && (e.RequestID == nil || *e.RequestID != *f.RequestID) {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
