// Package auth provides authentication for the joinguard ops API.
//
// # Tokens
//
// Callers authenticate with JWT bearer tokens signed HS256 with the
// configured jwt_secret. The subject claim carries the reviewer's Telegram
// user id as a decimal string:
//
//	verifier := auth.NewJWTVerifier([]byte(secret))
//	token, err := verifier.Generate(reviewerID, 24*time.Hour)
//	reviewerID, err := verifier.Verify(token)
//
// Tokens are minted offline with the token subcommand; there is no login
// endpoint and no refresh flow.
//
// # Middleware
//
// Middleware wraps API handlers, rejects missing or invalid tokens with 401
// and tokens whose subject is not a configured reviewer with 403, and
// attaches the authenticated Identity to the request context:
//
//	protected := auth.Middleware(verifier, cfg.Telegram.ReviewerIDs)(mux)
//	...
//	id := auth.FromContext(r.Context()) // inside handlers
//
// Reviewer identity doubles as the audit actor for mutations made through
// the API.
package auth
