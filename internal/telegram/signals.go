// ABOUTME: Risk profile signals looked up through the Telegram Bot API
// ABOUTME: Lookup failures degrade to SignalUnknown so scoring skips the rule

package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/joinguard/internal/risk"
)

// Signals answers the scorer's profile lookups. Telegram hides both photos
// and bios behind privacy settings, so an error or an invisible field is a
// skipped rule, never a penalty.
type Signals struct {
	api    api
	logger *slog.Logger
}

// NewSignals wraps an authenticated client.
func NewSignals(client *tgbotapi.BotAPI) *Signals {
	return &Signals{
		api:    client,
		logger: slog.Default().With("component", "telegram"),
	}
}

// PhotoPresence reports whether the user has any profile photo.
func (s *Signals) PhotoPresence(ctx context.Context, userID int64) risk.Signal {
	photos, err := s.api.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	if err != nil {
		s.logger.Info("photo lookup unavailable", "user_id", userID, "error", err)
		return risk.SignalUnknown
	}
	if photos.TotalCount > 0 {
		return risk.SignalPresent
	}
	return risk.SignalAbsent
}

// Biography returns the bio from the user's private chat, when visible.
func (s *Signals) Biography(ctx context.Context, userID int64) (string, risk.Signal) {
	chat, err := s.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		s.logger.Info("bio lookup unavailable", "user_id", userID, "error", err)
		return "", risk.SignalUnknown
	}
	if chat.Bio == "" {
		return "", risk.SignalAbsent
	}
	return chat.Bio, risk.SignalPresent
}
