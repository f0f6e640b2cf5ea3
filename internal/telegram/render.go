// ABOUTME: Outbound texts and inline keyboards for applicant and reviewer chats
// ABOUTME: Pure rendering; no Telegram calls except the channel info screen

package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/joinguard/internal/moderation"
	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/store"
)

// Applicant-facing messages.
const (
	msgRequestReceived = "Your request has been received. The bot will now check the account and send you the next step."
	msgSentToReview    = "Your request was sent to an administrator for manual review. We will update you in this chat."
	msgChallengePassed = "Challenge passed. Your request was approved, the channel is open."
	msgChallengeFailed = "Attempt limit reached. Your request was declined. You can send a new request to the channel."

	msgApprovedByReviewer = "An administrator approved your request. Welcome to the channel."
	msgDeclinedByReviewer = "An administrator declined your request to join the channel."
)

// Toasts and alerts on callback queries.
const (
	msgInvalidAction    = "Invalid action."
	msgRequestNotFound  = "Request not found."
	msgNotYourChallenge = "This challenge is not yours."
	msgAlreadyProcessed = "The request was already processed."
	msgNotAllowed       = "You do not have reviewer permissions."
	msgTryLater         = "Could not process the request, try again later."
	msgGateFailed       = "Could not apply the decision, try again later."
	msgApprovedToast    = "Request approved."
	msgDeclinedToast    = "Request declined."
	msgWrongAnswerToast = "Wrong answer."
	msgWrongRetryToast  = "Wrong, try again."
)

// Replies to /start.
const (
	msgStartReviewer  = "Reviewer panel available.\nCommands: /admin, /stats, /pending, /channel."
	msgStartApplicant = "The bot is active. If you sent a join request to the channel, follow the instructions in this chat."
)

func normalChallengeText(question string) string {
	return "Account check complete.\nSolve the challenge to enter the channel:\n" + question
}

func hardChallengeText(attempts int, question string) string {
	return fmt.Sprintf("Advanced check enabled.\nAttempts available: %d\nSolve the challenge:\n%s", attempts, question)
}

func retryChallengeText(attemptsLeft int, question string) string {
	return fmt.Sprintf("Wrong answer.\nAttempts left: %d\nNew challenge:\n%s", attemptsLeft, question)
}

// reviewRequestText is the notification a reviewer receives when a request
// lands in their queue.
func reviewRequestText(req *tgbotapi.ChatJoinRequest, outcome *moderation.JoinOutcome) string {
	name := strings.TrimSpace(req.From.FirstName + " " + req.From.LastName)

	var details strings.Builder
	if len(outcome.Reasons) == 0 {
		details.WriteString("- none")
	} else {
		for i, reason := range outcome.Reasons {
			if i > 0 {
				details.WriteByte('\n')
			}
			details.WriteString("- ")
			details.WriteString(reason)
		}
	}

	return fmt.Sprintf(
		"Join request routed to admin review\n"+
			"Chat: %s (%d)\n"+
			"Applicant: %s\n"+
			"ID: %d\n"+
			"Username: %s\n"+
			"Estimated account age: %d days\n"+
			"Route: %s\n"+
			"Risk score: %d\n"+
			"Risk details:\n%s\n"+
			"request_id: %d",
		req.Chat.Title, req.Chat.ID, name, req.From.ID, handleOrPlaceholder(req.From.UserName),
		outcome.AgeDays, outcome.RouteTag, outcome.Score, details.String(), outcome.RequestID,
	)
}

// reviewResultText replaces the notification once a verdict is committed.
func reviewResultText(rec *store.JoinRequest, approved bool, reviewerID int64) string {
	details := "none"
	if len(rec.RiskReasons) > 0 {
		details = strings.Join(rec.RiskReasons, "; ")
	}

	verdict := "declined"
	if approved {
		verdict = "approved"
	}

	return fmt.Sprintf(
		"Request processed\n"+
			"Applicant: %s\n"+
			"ID: %d\n"+
			"Username: %s\n"+
			"Risk score: %d\n"+
			"Risk details: %s\n"+
			"Outcome: %s\n"+
			"Reviewer: %d",
		rec.DisplayName(), rec.UserID, handleOrPlaceholder(rec.Username),
		rec.RiskScore, details, verdict, reviewerID,
	)
}

// dashboardText is the moderation overview screen.
func dashboardText(data *moderation.DashboardData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "JoinGuard control center (%dh)\n", int(data.Window.Hours()))
	fmt.Fprintf(&sb, "Moderation mode: %s\n", data.Mode)
	fmt.Fprintf(&sb, "Total requests: %d\n", data.Counts.Total())
	for _, status := range []store.Status{
		store.StatusNew, store.StatusPendingAdmin, store.StatusPendingCaptcha,
		store.StatusApproved, store.StatusDeclined,
	} {
		fmt.Fprintf(&sb, "- %s: %d\n", status, data.Counts[status])
	}

	sb.WriteString("\nRisk policy:\n")
	fmt.Fprintf(&sb, "- admin threshold: >= %d\n", data.Thresholds.AdminReview)
	fmt.Fprintf(&sb, "- hard challenge threshold: >= %d\n", data.Thresholds.HardCaptcha)
	fmt.Fprintf(&sb, "- hard challenge attempts: %d", data.Thresholds.HardAttempts)

	if len(data.Recent) > 0 {
		sb.WriteString("\n\nRecent decisions:")
		for _, rec := range data.Recent {
			stamp := "n/a"
			if rec.DecidedAt != nil {
				stamp = rec.DecidedAt.UTC().Format("2006-01-02 15:04 UTC")
			}
			fmt.Fprintf(&sb, "\n#%d %s user=%d risk=%d at=%s",
				rec.ID, rec.Status, rec.UserID, rec.RiskScore, stamp)
		}
	}
	return sb.String()
}

// pendingText lists the queue waiting on a reviewer.
func pendingText(pending []*store.JoinRequest) string {
	if len(pending) == 0 {
		return "No requests waiting for review."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pending review: %d", len(pending))
	for _, rec := range pending {
		age := "n/a"
		if rec.AgeDays != nil {
			age = fmt.Sprintf("%dd", *rec.AgeDays)
		}

		// Show at most the first two reasons; the rest are in the audit trail
		reason := "none"
		if len(rec.RiskReasons) > 0 {
			short := rec.RiskReasons
			if len(short) > 2 {
				short = short[:2]
			}
			reason = strings.Join(short, ", ")
		}

		fmt.Fprintf(&sb, "\n#%d user=%d %s risk=%d age=%s\nreason: %s",
			rec.ID, rec.UserID, handleOrPlaceholder(rec.Username), rec.RiskScore, age, reason)
	}
	return sb.String()
}

// channelText is the channel control screen. Lookup failures degrade to a
// short form instead of hiding the panel.
func (b *Bot) channelText(mode policy.Mode) string {
	text, err := b.channelInfo(mode)
	if err != nil {
		return fmt.Sprintf("Channel control\nID: %d\nModeration mode: %s\nTelegram error: %v",
			b.cfg.CommunityID, mode, err)
	}
	return text
}

func (b *Bot) channelInfo(mode policy.Mode) (string, error) {
	chatCfg := tgbotapi.ChatConfig{ChatID: b.cfg.CommunityID}

	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: chatCfg})
	if err != nil {
		return "", err
	}
	members, err := b.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{ChatConfig: chatCfg})
	if err != nil {
		return "", err
	}
	me, err := b.api.GetMe()
	if err != nil {
		return "", err
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: b.cfg.CommunityID, UserID: me.ID},
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Channel control\n"+
			"Title: %s\n"+
			"ID: %d\n"+
			"Members: %d\n"+
			"Bot can_invite_users: %t\n"+
			"Bot can_manage_chat: %t\n"+
			"Moderation mode: %s",
		chat.Title, chat.ID, members, member.CanInviteUsers, member.CanManageChat, mode,
	), nil
}

func handleOrPlaceholder(username string) string {
	if username == "" {
		return "not set"
	}
	return "@" + username
}

func modeLabel(mode policy.Mode) string {
	if mode == policy.ModeManual {
		return "Manual"
	}
	return "Hybrid"
}

// captchaKeyboard lays the answer options out two per row.
func captchaKeyboard(requestID int64, options []int64) tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
			strconv.FormatInt(opt, 10), moderation.AnswerCallback(requestID, opt)))
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(buttons)+1)/2)
	for i := 0; i < len(buttons); i += 2 {
		end := i + 2
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons[i:end]...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// reviewKeyboard is the approve/decline row under a review notification.
func reviewKeyboard(requestID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", moderation.ReviewCallback(requestID, true)),
			tgbotapi.NewInlineKeyboardButtonData("Decline", moderation.ReviewCallback(requestID, false)),
		),
	)
}

// menuKeyboard is the admin panel entry menu.
func menuKeyboard(mode policy.Mode) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Dashboard", moderation.PanelCallback(moderation.PanelDashboard)),
			tgbotapi.NewInlineKeyboardButtonData("Pending", moderation.PanelCallback(moderation.PanelPending)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Channel", moderation.PanelCallback(moderation.PanelChannel)),
			tgbotapi.NewInlineKeyboardButtonData("Mode: "+modeLabel(mode), moderation.PanelCallback(moderation.PanelToggleMode)),
		),
	)
}

// pendingKeyboard pairs approve/decline buttons per queued request, then
// navigation.
func pendingKeyboard(pending []*store.JoinRequest, mode policy.Mode) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(pending)+2)
	for _, rec := range pending {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Approve #%d", rec.ID), moderation.ReviewCallback(rec.ID, true)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Decline #%d", rec.ID), moderation.ReviewCallback(rec.ID, false)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Refresh", moderation.PanelCallback(moderation.PanelPending)),
		tgbotapi.NewInlineKeyboardButtonData("Dashboard", moderation.PanelCallback(moderation.PanelDashboard)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Mode: "+modeLabel(mode), moderation.PanelCallback(moderation.PanelToggleMode)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
