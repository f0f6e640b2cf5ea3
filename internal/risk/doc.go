// Package risk scores join applicants with a fixed set of additive rules.
//
// Each rule contributes points and a short reason tag; the score is the sum
// of triggered rules and the reasons keep rule order, so a score can always
// be explained back to a reviewer. External profile signals (photo, bio)
// are three-valued: a failed lookup reads as unknown and skips the rule
// rather than penalizing the applicant.
package risk
