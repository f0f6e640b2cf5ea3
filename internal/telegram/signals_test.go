// ABOUTME: Tests for profile signal lookups feeding the risk scorer.
// ABOUTME: API failures must degrade to unknown, never to a score change.

package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/joinguard/internal/risk"
)

func newSignals(stub *stubAPI) *Signals {
	return &Signals{api: stub, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSignals_PhotoPresence(t *testing.T) {
	ctx := context.Background()

	s := newSignals(&stubAPI{photos: tgbotapi.UserProfilePhotos{TotalCount: 2}})
	assert.Equal(t, risk.SignalPresent, s.PhotoPresence(ctx, applicantID))

	s = newSignals(&stubAPI{})
	assert.Equal(t, risk.SignalAbsent, s.PhotoPresence(ctx, applicantID))

	s = newSignals(&stubAPI{photosErr: errors.New("flood limit")})
	assert.Equal(t, risk.SignalUnknown, s.PhotoPresence(ctx, applicantID))
}

func TestSignals_Biography(t *testing.T) {
	ctx := context.Background()

	s := newSignals(&stubAPI{chat: tgbotapi.Chat{ID: applicantID, Bio: "deals at t.me/promos"}})
	bio, sig := s.Biography(ctx, applicantID)
	assert.Equal(t, "deals at t.me/promos", bio)
	assert.Equal(t, risk.SignalPresent, sig)

	s = newSignals(&stubAPI{})
	bio, sig = s.Biography(ctx, applicantID)
	assert.Empty(t, bio)
	assert.Equal(t, risk.SignalAbsent, sig)

	s = newSignals(&stubAPI{chatErr: errors.New("chat not found")})
	bio, sig = s.Biography(ctx, applicantID)
	assert.Empty(t, bio)
	assert.Equal(t, risk.SignalUnknown, sig)
}
