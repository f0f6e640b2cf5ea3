// ABOUTME: HTTP middleware for JWT authentication on ops API endpoints
// ABOUTME: Extracts the bearer token and requires a configured reviewer subject

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware creates an HTTP middleware that extracts and validates JWT
// tokens. The token subject must be one of the configured reviewers; the
// authenticated Identity is added to the request context for handlers.
func Middleware(verifier TokenVerifier, reviewerIDs []int64) func(http.Handler) http.Handler {
	allowed := make(map[int64]struct{}, len(reviewerIDs))
	for _, id := range reviewerIDs {
		allowed[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			reviewerID, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			if _, ok := allowed[reviewerID]; !ok {
				http.Error(w, `{"error":"not a reviewer"}`, http.StatusForbidden)
				return
			}

			identity := &Identity{ReviewerID: reviewerID}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
