// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation and the reviewer allow-list

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var httpTestSecret = []byte("http-middleware-test-secret-32b!")

var httpTestReviewers = []int64{111, 222}

func TestMiddleware_ValidToken(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)
	token, _ := verifier.Generate(111, time.Hour)

	middleware := Middleware(verifier, httpTestReviewers)

	var gotIdentity *Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotIdentity == nil {
		t.Fatal("expected Identity in context")
	}
	if gotIdentity.ReviewerID != 111 {
		t.Errorf("expected reviewer 111, got %d", gotIdentity.ReviewerID)
	}
}

func TestMiddleware_MissingAuthHeader(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)

	middleware := Middleware(verifier, httpTestReviewers)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestMiddleware_MalformedAuthHeader(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)
	token, _ := verifier.Generate(111, time.Hour)

	middleware := Middleware(verifier, httpTestReviewers)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	for _, header := range []string{"Token " + token, "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		middleware(handler).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status 401, got %d", header, rec.Code)
		}
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)

	middleware := Middleware(verifier, httpTestReviewers)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestMiddleware_UnknownReviewer(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)
	// Validly signed, but 999 is not on the reviewer list
	token, _ := verifier.Generate(999, time.Hour)

	middleware := Middleware(verifier, httpTestReviewers)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}
}

func TestMiddleware_SecondConfiguredReviewer(t *testing.T) {
	verifier := NewJWTVerifier(httpTestSecret)
	token, _ := verifier.Generate(222, time.Hour)

	middleware := Middleware(verifier, httpTestReviewers)

	var gotIdentity *Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotIdentity == nil || gotIdentity.ReviewerID != 222 {
		t.Errorf("expected reviewer 222 in context, got %+v", gotIdentity)
	}
}
