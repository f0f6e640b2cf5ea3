// Package moderation implements the join-request lifecycle: intake and risk
// routing, captcha challenges, manual review, panel read models, and
// background expiry.
//
// # Lifecycle
//
// Every applicant enters through SubmitJoinRequest, which upserts a fresh
// record (re-applying wipes any previous run), scores the applicant, and
// routes by policy: manual mode or a high risk score parks the request for
// admin review; otherwise a captcha challenge is issued, hard variant for
// borderline scores. From there exactly one path decides the request:
// SubmitChallengeAnswer, SubmitReview, or ExpireStalePending.
//
// # Decision safety
//
// Terminal transitions follow gate-before-commit: the Telegram-side approve
// or decline happens first, and only then does the record flip via a
// compare-and-swap on its current status. A failed gate call leaves the
// record pending so the operation can be retried; a lost CAS surfaces as
// ErrAlreadyDecided and the first committer's decision stands. No locks are
// held across gate calls.
//
// # Callbacks
//
// Inline keyboard callback data uses compact colon-joined forms ("cap:",
// "adm:", "panel:") parsed by ParseCallback into typed commands. Builders
// and parser live in commands.go so the grammar has a single home.
//
// # Dependencies
//
// The service depends on store.Store for persistence, policy.Manager for
// mode and thresholds, a risk Assessor for scoring, and a DecisionGate for
// the Telegram approve/decline calls. All are interfaces or small structs
// so tests run against mocks.
package moderation
