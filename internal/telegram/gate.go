// ABOUTME: DecisionGate over the Telegram Bot API
// ABOUTME: Applies approve/decline verdicts to pending chat join requests

package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Gate admits or rejects applicants through the chat join request API.
// A returned error means the verdict did not take effect on Telegram's side
// and the moderation service leaves the record pending.
type Gate struct {
	api api
}

// NewGate wraps an authenticated client.
func NewGate(client *tgbotapi.BotAPI) *Gate {
	return &Gate{api: client}
}

// Admit approves the pending join request of userID in chatID.
func (g *Gate) Admit(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		UserID:     userID,
	}
	if _, err := g.api.Request(cfg); err != nil {
		return fmt.Errorf("approveChatJoinRequest: %w", err)
	}
	return nil
}

// Reject declines the pending join request of userID in chatID.
func (g *Gate) Reject(ctx context.Context, chatID, userID int64) error {
	// The library names the decline config without the usual Config suffix.
	cfg := tgbotapi.DeclineChatJoinRequest{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		UserID:     userID,
	}
	if _, err := g.api.Request(cfg); err != nil {
		return fmt.Errorf("declineChatJoinRequest: %w", err)
	}
	return nil
}
