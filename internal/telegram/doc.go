// Package telegram adapts the moderation service to the Telegram Bot API.
//
// The adapter long-polls for three update kinds: chat_join_request for the
// guarded community, callback_query for inline buttons, and command
// messages. Every update id passes a dedupe cache first, so redelivered
// updates are handled at most once per window. Join requests for other
// chats are ignored.
//
// The package also provides the two outward capabilities the service and
// scorer depend on: Gate applies approve/decline verdicts through
// approveChatJoinRequest and declineChatJoinRequest, and Signals answers
// profile photo and bio lookups, degrading to unknown when Telegram hides
// them.
//
// All applicant-facing sends are best-effort. An applicant who blocked the
// bot still moves through the lifecycle; they just stop receiving updates
// about it.
package telegram
