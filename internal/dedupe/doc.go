// Package dedupe provides update deduplication using a time-based cache
// so redelivered Telegram updates are processed at most once per window.
package dedupe
