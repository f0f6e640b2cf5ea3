// ABOUTME: Additive risk scoring for join applicants
// ABOUTME: Combines account-age estimation with profile signals into a score and ordered reasons

package risk

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389/joinguard/internal/idage"
)

// Rule weights. Scores are sums of the triggered weights; the reason tags
// keep the order the rules are listed in here.
const (
	pointsBot            = 10
	pointsYoungAccount   = 5
	pointsNoHandle       = 3
	pointsSuspiciousName = 2
	pointsNoPhoto        = 2
	pointsSpamBio        = 3
)

// Signal is the three-valued result of an external profile lookup. Unknown
// means the lookup failed; scoring skips the rule instead of penalizing.
type Signal int

const (
	SignalUnknown Signal = iota
	SignalPresent
	SignalAbsent
)

func (s Signal) String() string {
	switch s {
	case SignalPresent:
		return "present"
	case SignalAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// ProfileSignals provides the external lookups consulted during scoring.
// Implementations must degrade to SignalUnknown on lookup failure rather
// than returning an error.
type ProfileSignals interface {
	// PhotoPresence reports whether the user has any profile photo.
	PhotoPresence(ctx context.Context, userID int64) Signal

	// Biography returns the user's bio text when obtainable. The text is
	// only meaningful when the signal is SignalPresent.
	Biography(ctx context.Context, userID int64) (string, Signal)
}

// Applicant is the profile snapshot scoring works from.
type Applicant struct {
	ID        int64
	IsBot     bool
	Username  string
	FirstName string
	LastName  string
}

// Assessment is the outcome of scoring one applicant.
type Assessment struct {
	AgeDays int
	Score   int
	Reasons []string
}

// Scorer evaluates applicants against the fixed rule set.
type Scorer struct {
	estimator         *idage.Estimator
	signals           ProfileSignals
	minAccountAgeDays int
	logger            *slog.Logger
	now               func() time.Time
}

// NewScorer builds a scorer. The estimator and signals are required; the
// minimum account age comes from moderation config.
func NewScorer(estimator *idage.Estimator, signals ProfileSignals, minAccountAgeDays int, logger *slog.Logger) *Scorer {
	return &Scorer{
		estimator:         estimator,
		signals:           signals,
		minAccountAgeDays: minAccountAgeDays,
		logger:            logger.With("component", "risk"),
		now:               time.Now,
	}
}

var spamBioPattern = regexp.MustCompile(
	`(?i)(t\.me/|telegram\.me/|https?://|airdrop|crypto|profit|casino|betting|pump|payout)`,
)

var digitRunPattern = regexp.MustCompile(`[0-9]{4,}`)

// Assess scores one applicant. The first reason is always the informational
// age estimate; rule reasons follow in rule order. External signal failures
// skip their rule, so Assess never fails.
func (s *Scorer) Assess(ctx context.Context, a Applicant) Assessment {
	ageDays := s.estimator.AgeDays(a.ID, s.now())

	score := 0
	reasons := []string{fmt.Sprintf("estimated_age=%dd", ageDays)}

	if a.IsBot {
		score += pointsBot
		reasons = append(reasons, "account_bot")
	}
	if ageDays < s.minAccountAgeDays {
		score += pointsYoungAccount
		reasons = append(reasons, fmt.Sprintf("age_below_min(%d<%d)", ageDays, s.minAccountAgeDays))
	}
	if a.Username == "" {
		score += pointsNoHandle
		reasons = append(reasons, "no_handle")
	}
	if nameLooksSuspicious(a.FirstName, a.LastName) {
		score += pointsSuspiciousName
		reasons = append(reasons, "suspicious_name")
	}

	switch s.signals.PhotoPresence(ctx, a.ID) {
	case SignalAbsent:
		score += pointsNoPhoto
		reasons = append(reasons, "no_photo")
	case SignalUnknown:
		s.logger.Info("photo signal unavailable, rule skipped", "user_id", a.ID)
	}

	bio, sig := s.signals.Biography(ctx, a.ID)
	switch {
	case sig == SignalPresent && spamBioPattern.MatchString(bio):
		score += pointsSpamBio
		reasons = append(reasons, "spam_bio_pattern")
	case sig == SignalUnknown:
		s.logger.Info("bio signal unavailable, rule skipped", "user_id", a.ID)
	}

	return Assessment{AgeDays: ageDays, Score: score, Reasons: reasons}
}

// nameLooksSuspicious flags display names that are very short once spaces
// are stripped, contain a run of 4+ digits, or repeat any character 4+
// times in a row.
func nameLooksSuspicious(firstName, lastName string) bool {
	fullName := strings.ToLower(strings.TrimSpace(firstName + " " + lastName))
	compact := strings.ReplaceAll(fullName, " ", "")

	if utf8.RuneCountInString(compact) < 4 {
		return true
	}
	if digitRunPattern.MatchString(compact) {
		return true
	}
	return hasRepeatedRun(compact, 4)
}

// hasRepeatedRun reports whether any rune repeats at least n times
// consecutively. Backreferences are unavailable in RE2, so this is a scan.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// Summary renders a score and its reasons as a single log- and
// note-friendly line.
func Summary(score int, reasons []string) string {
	if len(reasons) == 0 {
		return fmt.Sprintf("risk_score=%d; reasons=none", score)
	}
	return fmt.Sprintf("risk_score=%d; reasons=%s", score, strings.Join(reasons, "; "))
}
