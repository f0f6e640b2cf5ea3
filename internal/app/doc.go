// Package app assembles the moderation engine from configuration and runs
// its components until shutdown: the Telegram long-poll adapter, the
// retention sweeper and the optional ops API, all over one SQLite store.
package app
