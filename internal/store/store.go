// ABOUTME: Store interface and data types for joinguard persistence
// ABOUTME: Defines JoinRequest, Status and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStateConflict is returned when a guarded update finds the row in a
// different lifecycle state than the caller expected. The caller lost a race
// and must re-read the record before deciding what to do next.
var ErrStateConflict = errors.New("state conflict")

// Status is the lifecycle state of a join request
type Status string

// Lifecycle states. A request starts as StatusNew, is routed to exactly one
// of the pending states, and ends in exactly one of the terminal states.
const (
	StatusNew            Status = "new"
	StatusPendingAdmin   Status = "pending_admin"
	StatusPendingCaptcha Status = "pending_captcha"
	StatusApproved       Status = "approved"
	StatusDeclined       Status = "declined"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// Pending reports whether the request is waiting on a reviewer or the applicant
func (s Status) Pending() bool {
	return s == StatusPendingAdmin || s == StatusPendingCaptcha
}

// Valid reports whether s is a known lifecycle state
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPendingAdmin, StatusPendingCaptcha, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Challenge difficulty levels stored in captcha_difficulty
const (
	DifficultyNormal = "normal"
	DifficultyHard   = "hard"
)

// JoinRequest is one applicant's attempt to enter a guarded chat.
// There is at most one row per (chat_id, user_id) pair; a repeat application
// resets the existing row back to StatusNew.
type JoinRequest struct {
	ID         int64
	ChatID     int64
	UserID     int64
	UserChatID int64 // private chat for notifying the applicant, 0 when unknown

	Username  string // empty when the applicant has no handle
	FirstName string
	LastName  string

	SubmittedAt time.Time
	Status      Status

	// Risk assessment, populated during routing
	IsFlagged   bool
	AgeDays     *int
	RiskScore   int
	RiskReasons []string

	// Challenge state, meaningful while Status is StatusPendingCaptcha
	CaptchaQuestion    string
	CaptchaAnswer      int64
	CaptchaAttempts    int
	CaptchaMaxAttempts int
	CaptchaDifficulty  string

	// Decision record, populated once terminal. DecisionNote also carries the
	// routing summary while the request is pending admin review.
	DecidedBy    *int64
	DecidedAt    *time.Time
	DecisionNote string
}

// AttemptsLeft returns how many challenge attempts the applicant still has
func (r *JoinRequest) AttemptsLeft() int {
	left := r.CaptchaMaxAttempts - r.CaptchaAttempts
	if left < 0 {
		return 0
	}
	return left
}

// DisplayName returns the applicant's name as shown to reviewers
func (r *JoinRequest) DisplayName() string {
	name := r.FirstName
	if r.LastName != "" {
		name += " " + r.LastName
	}
	return name
}

// StatusCounts maps lifecycle states to row counts within a stats window
type StatusCounts map[Status]int

// Total sums counts across every state
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Keys stored in guard_settings
const (
	// SettingModerationMode holds "hybrid" or "manual"
	SettingModerationMode = "moderation_mode"
)

// Store defines the interface for join request persistence
type Store interface {
	// Join request lifecycle
	UpsertJoinRequest(ctx context.Context, req *JoinRequest) (*JoinRequest, error)
	GetJoinRequest(ctx context.Context, id int64) (*JoinRequest, error)
	SetRiskProfile(ctx context.Context, id int64, ageDays *int, score int, reasons []string) error
	MarkPendingAdmin(ctx context.Context, id int64, note string) error
	MarkPendingCaptcha(ctx context.Context, id int64, question string, answer int64, maxAttempts int, difficulty string, flagged bool) error
	ReplaceChallenge(ctx context.Context, id int64, question string, answer int64) error
	ConsumeAttempt(ctx context.Context, id int64) (used, allowed int, err error)
	CompleteJoinRequest(ctx context.Context, id int64, from, to Status, decidedBy *int64, note string) error

	// Review queues and stats
	ListPendingReview(ctx context.Context, limit int) ([]*JoinRequest, error)
	ListRecentDecisions(ctx context.Context, limit int) ([]*JoinRequest, error)
	CountByStatusSince(ctx context.Context, since time.Time) (StatusCounts, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*JoinRequest, error)
	DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Guard settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Audit log
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}
