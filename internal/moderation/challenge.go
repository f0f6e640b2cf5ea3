// ABOUTME: Challenge answer flow: check the tapped option, admit or burn an attempt
// ABOUTME: Gate calls happen before any terminal write so failures leave state intact

package moderation

import (
	"context"
	"fmt"

	"github.com/2389/joinguard/internal/captcha"
	"github.com/2389/joinguard/internal/store"
)

// AnswerResult classifies what happened to a challenge answer
type AnswerResult int

const (
	// AnswerApproved means the answer was correct and the applicant is in
	AnswerApproved AnswerResult = iota
	// AnswerRetry means the answer was wrong but attempts remain
	AnswerRetry
	// AnswerDeclined means the answer was wrong and the allowance is spent
	AnswerDeclined
)

// AnswerOutcome describes the state after a challenge answer
type AnswerOutcome struct {
	Result       AnswerResult
	AttemptsLeft int

	// Prompt carries the fresh challenge on AnswerRetry, nil otherwise
	Prompt *ChallengePrompt
}

// SubmitChallengeAnswer validates and applies one tapped challenge option.
//
// The actor must be the applicant the challenge was issued to, and the record
// must still be awaiting an answer; anything else is rejected without state
// change. A correct answer admits through the gate before the record turns
// terminal. A wrong answer burns an attempt and either issues a fresh
// challenge or, once the allowance is spent, rejects through the gate and
// declines the record.
func (s *Service) SubmitChallengeAnswer(ctx context.Context, requestID, actorID, answer int64) (*AnswerOutcome, error) {
	rec, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("loading join request: %w", err)
	}

	if rec.UserID != actorID {
		return nil, ErrNotChallenger
	}
	if rec.Status != store.StatusPendingCaptcha {
		return nil, ErrAlreadyDecided
	}

	difficulty := rec.CaptchaDifficulty
	if answer == rec.CaptchaAnswer {
		if err := s.gate.Admit(ctx, rec.ChatID, rec.UserID); err != nil {
			s.logger.Warn("admit failed after correct answer",
				"request_id", requestID, "user_id", rec.UserID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrGateUnavailable, err)
		}

		note := "captcha_passed:" + difficulty
		if err := s.store.CompleteJoinRequest(ctx, requestID, store.StatusPendingCaptcha, store.StatusApproved, nil, note); err != nil {
			return nil, s.mapConflict(err, "completing approval")
		}

		s.logger.Info("challenge passed",
			"request_id", requestID, "user_id", rec.UserID, "difficulty", difficulty)
		s.audit(ctx, &store.AuditEntry{
			Action:    store.AuditApproveRequest,
			RequestID: &requestID,
			Detail:    map[string]any{"note": note, "user_id": rec.UserID},
		})
		return &AnswerOutcome{Result: AnswerApproved}, nil
	}

	used, allowed, err := s.store.ConsumeAttempt(ctx, requestID)
	if err != nil {
		return nil, s.mapConflict(err, "consuming attempt")
	}

	if used >= allowed {
		if err := s.gate.Reject(ctx, rec.ChatID, rec.UserID); err != nil {
			s.logger.Warn("reject failed after exhausted attempts",
				"request_id", requestID, "user_id", rec.UserID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrGateUnavailable, err)
		}

		note := "captcha_failed:" + difficulty
		if err := s.store.CompleteJoinRequest(ctx, requestID, store.StatusPendingCaptcha, store.StatusDeclined, nil, note); err != nil {
			return nil, s.mapConflict(err, "completing decline")
		}

		s.logger.Info("challenge failed, attempts exhausted",
			"request_id", requestID, "user_id", rec.UserID, "difficulty", difficulty)
		s.audit(ctx, &store.AuditEntry{
			Action:    store.AuditDeclineRequest,
			RequestID: &requestID,
			Detail:    map[string]any{"note": note, "user_id": rec.UserID},
		})
		return &AnswerOutcome{Result: AnswerDeclined}, nil
	}

	// Wrong but attempts remain: swap in a fresh question so the applicant
	// can't brute-force the option row
	ch := s.newChallenge(captcha.Difficulty(difficulty))
	if err := s.store.ReplaceChallenge(ctx, requestID, ch.Question, ch.Answer); err != nil {
		return nil, s.mapConflict(err, "replacing challenge")
	}

	s.logger.Debug("challenge retry issued",
		"request_id", requestID, "user_id", rec.UserID, "attempts_left", allowed-used)
	return &AnswerOutcome{
		Result:       AnswerRetry,
		AttemptsLeft: allowed - used,
		Prompt:       &ChallengePrompt{Question: ch.Question, Options: ch.Options},
	}, nil
}
