// ABOUTME: Moderation service: submits join requests through scoring and routing
// ABOUTME: Owns the lifecycle guarantees; adapters stay thin on both sides

package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/joinguard/internal/captcha"
	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/risk"
	"github.com/2389/joinguard/internal/store"
)

// ErrAlreadyDecided is returned when an action targets a record that another
// handler has already moved past the expected state. The caller should tell
// the actor the request was already processed.
var ErrAlreadyDecided = errors.New("request already processed")

// ErrNotChallenger is returned when someone other than the applicant answers
// a challenge.
var ErrNotChallenger = errors.New("challenge belongs to another applicant")

// ErrGateUnavailable is returned when the decision gate could not complete an
// admit or reject. The record is left untouched and the action can be retried.
var ErrGateUnavailable = errors.New("decision gate unavailable")

// DecisionGate asks the platform to actually admit or reject an applicant.
// A non-nil error means the decision did not take effect and the lifecycle
// must not record it.
type DecisionGate interface {
	Admit(ctx context.Context, chatID, userID int64) error
	Reject(ctx context.Context, chatID, userID int64) error
}

// Assessor produces a risk assessment for an applicant
type Assessor interface {
	Assess(ctx context.Context, a risk.Applicant) risk.Assessment
}

// Service drives join requests through scoring, routing, challenges and
// decisions. All state transitions go through the store's guarded updates,
// so concurrent handlers resolve to first-committer-wins.
type Service struct {
	store  store.Store
	policy *policy.Manager
	scorer Assessor
	gate   DecisionGate
	logger *slog.Logger

	// test seams
	newChallenge func(captcha.Difficulty) *captcha.Challenge
	now          func() time.Time
}

// NewService creates the moderation service
func NewService(st store.Store, pol *policy.Manager, scorer Assessor, gate DecisionGate) *Service {
	return &Service{
		store:        st,
		policy:       pol,
		scorer:       scorer,
		gate:         gate,
		logger:       slog.Default().With("component", "moderation"),
		newChallenge: captcha.New,
		now:          time.Now,
	}
}

// JoinEvent is an inbound join request from the transport
type JoinEvent struct {
	ChatID      int64
	UserID      int64
	UserChatID  int64
	Username    string
	FirstName   string
	LastName    string
	IsBot       bool
	SubmittedAt time.Time
}

// Route says where a fresh request was sent
type Route string

const (
	RouteAdminReview   Route = "admin_review"
	RouteCaptchaNormal Route = "captcha_normal"
	RouteCaptchaHard   Route = "captcha_hard"
)

// Challenge reports whether the route leads to an arithmetic challenge
func (r Route) Challenge() bool {
	return r == RouteCaptchaNormal || r == RouteCaptchaHard
}

// ChallengePrompt is what the applicant gets to see: the question and the
// candidate answers. The expected answer stays inside the service.
type ChallengePrompt struct {
	Question string
	Options  []int64
}

// JoinOutcome describes how a submitted request was routed
type JoinOutcome struct {
	RequestID int64
	Route     Route
	RouteTag  string // manual_mode or risk_threshold_admin, admin routes only
	Score     int
	Reasons   []string
	AgeDays   int

	// Challenge routes only
	Prompt          *ChallengePrompt
	AttemptsAllowed int
}

// SubmitJoinRequest records a fresh application, scores it and routes it.
// A repeat submission resets the existing record first, so moderation always
// restarts from scratch.
func (s *Service) SubmitJoinRequest(ctx context.Context, event JoinEvent) (*JoinOutcome, error) {
	rec, err := s.store.UpsertJoinRequest(ctx, &store.JoinRequest{
		ChatID:      event.ChatID,
		UserID:      event.UserID,
		UserChatID:  event.UserChatID,
		Username:    event.Username,
		FirstName:   event.FirstName,
		LastName:    event.LastName,
		SubmittedAt: event.SubmittedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("recording join request: %w", err)
	}

	assessment := s.scorer.Assess(ctx, risk.Applicant{
		ID:        event.UserID,
		IsBot:     event.IsBot,
		Username:  event.Username,
		FirstName: event.FirstName,
		LastName:  event.LastName,
	})

	ageDays := assessment.AgeDays
	if err := s.store.SetRiskProfile(ctx, rec.ID, &ageDays, assessment.Score, assessment.Reasons); err != nil {
		return nil, s.mapConflict(err, "storing risk profile")
	}

	mode := s.policy.Mode(ctx)
	s.logger.Info("join request received",
		"request_id", rec.ID,
		"user_id", event.UserID,
		"chat_id", event.ChatID,
		"mode", mode,
		"risk", risk.Summary(assessment.Score, assessment.Reasons),
	)

	outcome := &JoinOutcome{
		RequestID: rec.ID,
		Score:     assessment.Score,
		Reasons:   assessment.Reasons,
		AgeDays:   assessment.AgeDays,
	}

	th := s.policy.Thresholds()
	if mode == policy.ModeManual || assessment.Score >= th.AdminReview {
		tag := "risk_threshold_admin"
		if mode == policy.ModeManual {
			tag = "manual_mode"
		}
		note := fmt.Sprintf("route=%s; %s", tag, risk.Summary(assessment.Score, assessment.Reasons))
		if err := s.store.MarkPendingAdmin(ctx, rec.ID, note); err != nil {
			return nil, s.mapConflict(err, "routing to admin review")
		}
		outcome.Route = RouteAdminReview
		outcome.RouteTag = tag
		return outcome, nil
	}

	difficulty := captcha.Normal
	attempts := th.NormalAttempts
	flagged := false
	outcome.Route = RouteCaptchaNormal
	if assessment.Score >= th.HardCaptcha {
		difficulty = captcha.Hard
		attempts = min(th.NormalAttempts, th.HardAttempts)
		flagged = true
		outcome.Route = RouteCaptchaHard
	}

	ch := s.newChallenge(difficulty)
	err = s.store.MarkPendingCaptcha(ctx, rec.ID, ch.Question, ch.Answer, attempts, string(difficulty), flagged)
	if err != nil {
		return nil, s.mapConflict(err, "routing to captcha")
	}

	outcome.Prompt = &ChallengePrompt{Question: ch.Question, Options: ch.Options}
	outcome.AttemptsAllowed = attempts
	return outcome, nil
}

// mapConflict converts store state conflicts into ErrAlreadyDecided
func (s *Service) mapConflict(err error, op string) error {
	if errors.Is(err, store.ErrStateConflict) {
		return fmt.Errorf("%s: %w", op, ErrAlreadyDecided)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// audit writes an audit entry, logging instead of failing the caller
func (s *Service) audit(ctx context.Context, entry *store.AuditEntry) {
	if err := s.store.AppendAuditLog(ctx, entry); err != nil {
		s.logger.Warn("writing audit entry", "action", entry.Action, "error", err)
	}
}
