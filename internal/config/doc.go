// Package config handles configuration loading for joinguard.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, defaults applied, and validation performed before the process
// starts. Validation failures are fatal at startup so threshold or
// credential mistakes never surface mid-operation.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${JOINGUARD_BOT_TOKEN}"
//
// # Configuration Sections
//
// Telegram credentials and the protected community:
//
//	telegram:
//	  token: "${JOINGUARD_BOT_TOKEN}"
//	  community_id: -1001234567890
//	  reviewer_ids: [186675, 2234098]
//
// Database:
//
//	database:
//	  path: "/var/lib/joinguard/joinguard.db"
//
// Moderation thresholds (the runtime hybrid/manual toggle is stored in the
// database, not here):
//
//	moderation:
//	  min_account_age_days: 30
//	  max_captcha_attempts: 3
//	  hard_captcha_attempts: 1
//	  risk_score_to_admin: 7
//	  risk_score_to_hard_captcha: 4
//
// Retention sweeps and the local ops API:
//
//	retention:
//	  pending_ttl: "48h"
//	  decided_ttl: "720h"
//	  schedule: "@hourly"
//
//	api:
//	  enabled: true
//	  addr: "127.0.0.1:8484"
//	  jwt_secret: "${JOINGUARD_JWT_SECRET}"
//
// # Validation
//
// Load() enforces: bot token, community id, and at least one reviewer;
// attempt counts of at least one; risk_score_to_admin strictly greater than
// risk_score_to_hard_captcha; a JWT secret whenever the API is enabled.
package config
