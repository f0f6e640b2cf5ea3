// ABOUTME: Telegram long-poll adapter: routes updates into the moderation service
// ABOUTME: Thin I/O layer; all lifecycle decisions live behind the service

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/joinguard/internal/config"
	"github.com/2389/joinguard/internal/dedupe"
	"github.com/2389/joinguard/internal/moderation"
	"github.com/2389/joinguard/internal/store"
)

// Dedupe window for redelivered updates.
const (
	seenTTL = 5 * time.Minute
	seenCap = 100_000
)

// pendingPageSize is how many queued requests one /pending screen shows.
const pendingPageSize = 8

// api is the slice of the Telegram client the handlers use. The concrete
// *tgbotapi.BotAPI satisfies it; tests substitute a recorder.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUserProfilePhotos(config tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error)
}

// Bot receives Telegram updates over long polling and translates them into
// service calls. It owns the applicant and reviewer conversations; the
// moderation service owns every state transition.
type Bot struct {
	client    *tgbotapi.BotAPI
	api       api
	service   *moderation.Service
	cfg       config.TelegramConfig
	reviewers map[int64]struct{}
	seen      *dedupe.Cache
	logger    *slog.Logger
}

// New creates the adapter around an authenticated client.
func New(client *tgbotapi.BotAPI, svc *moderation.Service, cfg config.TelegramConfig) *Bot {
	reviewers := make(map[int64]struct{}, len(cfg.ReviewerIDs))
	for _, id := range cfg.ReviewerIDs {
		reviewers[id] = struct{}{}
	}

	return &Bot{
		client:    client,
		api:       client,
		service:   svc,
		cfg:       cfg,
		reviewers: reviewers,
		seen:      dedupe.New(seenTTL, seenCap),
		logger:    slog.Default().With("component", "telegram"),
	}
}

// Run deletes any webhook and consumes updates until the context is
// cancelled. Returns nil on a clean shutdown.
func (b *Bot) Run(ctx context.Context) error {
	// The bot works in long polling mode, so drop any webhook on startup.
	if _, err := b.client.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	u.AllowedUpdates = []string{"message", "callback_query", "chat_join_request"}

	updates := b.client.GetUpdatesChan(u)
	b.logger.Info("telegram long-poll started",
		"community_id", b.cfg.CommunityID, "timeout", b.cfg.PollTimeout)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.seen.Close()
			b.logger.Info("telegram long-poll stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.seen.Close()
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if b.seen.Seen(update.UpdateID) {
		b.logger.Debug("duplicate update skipped", "update_id", update.UpdateID)
		return
	}

	switch {
	case update.ChatJoinRequest != nil:
		b.handleJoinRequest(ctx, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

// joinEvent maps an incoming chat_join_request to a service event. The
// library predates user_chat_id on join requests, and Telegram lets the bot
// message anyone with an open join request, so the private chat id falls
// back to the applicant's user id.
func joinEvent(req *tgbotapi.ChatJoinRequest) moderation.JoinEvent {
	return moderation.JoinEvent{
		ChatID:      req.Chat.ID,
		UserID:      req.From.ID,
		UserChatID:  req.From.ID,
		Username:    req.From.UserName,
		FirstName:   req.From.FirstName,
		LastName:    req.From.LastName,
		IsBot:       req.From.IsBot,
		SubmittedAt: time.Unix(int64(req.Date), 0).UTC(),
	}
}

func (b *Bot) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) {
	if req.Chat.ID != b.cfg.CommunityID {
		return
	}

	event := joinEvent(req)
	b.notifyApplicant(event.UserChatID, msgRequestReceived, nil)

	outcome, err := b.service.SubmitJoinRequest(ctx, event)
	if err != nil {
		b.logger.Error("submitting join request", "user_id", event.UserID, "error", err)
		return
	}

	switch outcome.Route {
	case moderation.RouteAdminReview:
		b.notifyReviewers(req, outcome)
		b.notifyApplicant(event.UserChatID, msgSentToReview, nil)
	case moderation.RouteCaptchaHard:
		kb := captchaKeyboard(outcome.RequestID, outcome.Prompt.Options)
		b.notifyApplicant(event.UserChatID, hardChallengeText(outcome.AttemptsAllowed, outcome.Prompt.Question), &kb)
	case moderation.RouteCaptchaNormal:
		kb := captchaKeyboard(outcome.RequestID, outcome.Prompt.Options)
		b.notifyApplicant(event.UserChatID, normalChallengeText(outcome.Prompt.Question), &kb)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}

	cmd, err := moderation.ParseCallback(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, msgInvalidAction, true)
		return
	}

	switch c := cmd.(type) {
	case moderation.AnswerCommand:
		b.handleAnswer(ctx, cb, c)
	case moderation.ReviewCommand:
		b.handleReview(ctx, cb, c)
	case moderation.PanelCommand:
		b.handlePanel(ctx, cb, c)
	}
}

func (b *Bot) handleAnswer(ctx context.Context, cb *tgbotapi.CallbackQuery, cmd moderation.AnswerCommand) {
	outcome, err := b.service.SubmitChallengeAnswer(ctx, cmd.RequestID, cb.From.ID, cmd.Answer)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.answerCallback(cb.ID, msgRequestNotFound, true)
		return
	case errors.Is(err, moderation.ErrNotChallenger):
		b.answerCallback(cb.ID, msgNotYourChallenge, true)
		return
	case errors.Is(err, moderation.ErrAlreadyDecided):
		b.answerCallback(cb.ID, msgAlreadyProcessed, true)
		return
	case errors.Is(err, moderation.ErrGateUnavailable):
		b.answerCallback(cb.ID, msgTryLater, true)
		return
	case err != nil:
		b.logger.Error("challenge answer failed", "request_id", cmd.RequestID, "error", err)
		b.answerCallback(cb.ID, msgTryLater, true)
		return
	}

	switch outcome.Result {
	case moderation.AnswerApproved:
		b.editMessage(cb, msgChallengePassed, nil)
		b.answerCallback(cb.ID, msgApprovedToast, false)
	case moderation.AnswerDeclined:
		b.editMessage(cb, msgChallengeFailed, nil)
		b.answerCallback(cb.ID, msgWrongAnswerToast, false)
	case moderation.AnswerRetry:
		kb := captchaKeyboard(cmd.RequestID, outcome.Prompt.Options)
		b.editMessage(cb, retryChallengeText(outcome.AttemptsLeft, outcome.Prompt.Question), &kb)
		b.answerCallback(cb.ID, msgWrongRetryToast, false)
	}
}

func (b *Bot) handleReview(ctx context.Context, cb *tgbotapi.CallbackQuery, cmd moderation.ReviewCommand) {
	if !b.isReviewer(cb.From.ID) {
		b.answerCallback(cb.ID, msgNotAllowed, true)
		return
	}

	outcome, err := b.service.SubmitReview(ctx, cmd.RequestID, cb.From.ID, cmd.Approve)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.answerCallback(cb.ID, msgRequestNotFound, true)
		return
	case errors.Is(err, moderation.ErrAlreadyDecided):
		b.answerCallback(cb.ID, msgAlreadyProcessed, true)
		return
	case errors.Is(err, moderation.ErrGateUnavailable):
		b.answerCallback(cb.ID, msgGateFailed, true)
		return
	case err != nil:
		b.logger.Error("review failed",
			"request_id", cmd.RequestID, "reviewer_id", cb.From.ID, "error", err)
		b.answerCallback(cb.ID, msgGateFailed, true)
		return
	}

	rec := outcome.Request
	if outcome.Approved {
		b.notifyApplicant(rec.UserChatID, msgApprovedByReviewer, nil)
		b.answerCallback(cb.ID, msgApprovedToast, false)
	} else {
		b.notifyApplicant(rec.UserChatID, msgDeclinedByReviewer, nil)
		b.answerCallback(cb.ID, msgDeclinedToast, false)
	}
	b.editMessage(cb, reviewResultText(rec, outcome.Approved, cb.From.ID), nil)
}

func (b *Bot) handlePanel(ctx context.Context, cb *tgbotapi.CallbackQuery, cmd moderation.PanelCommand) {
	if !b.isReviewer(cb.From.ID) {
		b.answerCallback(cb.ID, msgNotAllowed, true)
		return
	}

	action := cmd.Action
	if action == moderation.PanelToggleMode {
		mode, err := b.service.ToggleMode(ctx, cb.From.ID)
		if err != nil {
			b.logger.Error("toggling moderation mode", "reviewer_id", cb.From.ID, "error", err)
			b.answerCallback(cb.ID, msgTryLater, true)
			return
		}
		b.answerCallback(cb.ID, "Mode set: "+string(mode), false)
		action = moderation.PanelDashboard
	} else {
		b.answerCallback(cb.ID, "", false)
	}

	if cb.Message == nil {
		return
	}

	text, kb, err := b.renderPanel(ctx, action)
	if err != nil {
		b.logger.Error("rendering panel", "action", string(action), "error", err)
		return
	}
	b.editMessage(cb, text, &kb)
}

// renderPanel builds the text and keyboard for one panel section.
func (b *Bot) renderPanel(ctx context.Context, action moderation.PanelAction) (string, tgbotapi.InlineKeyboardMarkup, error) {
	switch action {
	case moderation.PanelPending:
		pending, err := b.service.PendingReview(ctx, pendingPageSize)
		if err != nil {
			return "", tgbotapi.InlineKeyboardMarkup{}, err
		}
		return pendingText(pending), pendingKeyboard(pending, b.service.Mode(ctx)), nil

	case moderation.PanelChannel:
		mode := b.service.Mode(ctx)
		return b.channelText(mode), menuKeyboard(mode), nil

	default:
		data, err := b.service.Dashboard(ctx)
		if err != nil {
			return "", tgbotapi.InlineKeyboardMarkup{}, err
		}
		return dashboardText(data), menuKeyboard(data.Mode), nil
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	command := msg.Command()
	if command == "start" {
		if b.isReviewer(msg.From.ID) {
			b.reply(msg.Chat.ID, msgStartReviewer, nil)
		} else {
			b.reply(msg.Chat.ID, msgStartApplicant, nil)
		}
		return
	}

	if !b.isReviewer(msg.From.ID) {
		b.reply(msg.Chat.ID, msgNotAllowed, nil)
		return
	}

	switch command {
	case "admin", "stats":
		data, err := b.service.Dashboard(ctx)
		if err != nil {
			b.logger.Error("building dashboard", "error", err)
			b.reply(msg.Chat.ID, msgTryLater, nil)
			return
		}
		kb := menuKeyboard(data.Mode)
		b.reply(msg.Chat.ID, dashboardText(data), &kb)

	case "pending":
		pending, err := b.service.PendingReview(ctx, pendingPageSize)
		if err != nil {
			b.logger.Error("listing pending review", "error", err)
			b.reply(msg.Chat.ID, msgTryLater, nil)
			return
		}
		kb := pendingKeyboard(pending, b.service.Mode(ctx))
		b.reply(msg.Chat.ID, pendingText(pending), &kb)

	case "channel":
		mode := b.service.Mode(ctx)
		kb := menuKeyboard(mode)
		b.reply(msg.Chat.ID, b.channelText(mode), &kb)
	}
}

func (b *Bot) isReviewer(userID int64) bool {
	_, ok := b.reviewers[userID]
	return ok
}

// notifyReviewers sends the review notification to every configured
// reviewer. Reviewers who blocked the bot or never started it are logged
// and skipped.
func (b *Bot) notifyReviewers(req *tgbotapi.ChatJoinRequest, outcome *moderation.JoinOutcome) {
	text := reviewRequestText(req, outcome)
	kb := reviewKeyboard(outcome.RequestID)

	for _, reviewerID := range b.cfg.ReviewerIDs {
		msg := tgbotapi.NewMessage(reviewerID, text)
		msg.ReplyMarkup = kb
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Warn("cannot notify reviewer", "reviewer_id", reviewerID, "error", err)
		}
	}
}

// notifyApplicant sends to the applicant's private chat. Failures are logged
// and swallowed: a blocked bot must never stall moderation.
func (b *Bot) notifyApplicant(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if chatID == 0 {
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("cannot message applicant", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("sending reply", "chat_id", chatID, "error", err)
	}
}

// editMessage rewrites the message a callback button was attached to.
// Telegram rejects edits that change nothing; that error is expected when a
// reviewer taps the same panel button twice and is silently dropped.
func (b *Bot) editMessage(cb *tgbotapi.CallbackQuery, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}

	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	}

	if _, err := b.api.Send(edit); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			return
		}
		b.logger.Warn("editing message", "chat_id", cb.Message.Chat.ID, "error", err)
	}
}

func (b *Bot) answerCallback(id, text string, alert bool) {
	answer := tgbotapi.NewCallback(id, text)
	if alert {
		answer = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := b.api.Request(answer); err != nil {
		b.logger.Warn("answering callback query", "error", err)
	}
}
