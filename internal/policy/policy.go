// ABOUTME: Moderation policy: runtime mode toggle and routing thresholds
// ABOUTME: The mode is persisted in guard settings and re-read per decision

// Package policy holds the knobs that decide how strict moderation is.
//
// The moderation mode is stored in the settings table and read back on every
// routing decision, so a toggle from the admin panel or the ops API takes
// effect immediately without restarting. Score thresholds are fixed at
// startup from configuration.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/joinguard/internal/store"
)

// ErrInvalidMode is returned when a caller tries to set an unknown mode
var ErrInvalidMode = errors.New("invalid moderation mode")

// Mode selects how new join requests are routed
type Mode string

const (
	// ModeHybrid routes by risk score: low risk gets a challenge, high risk
	// goes to a human
	ModeHybrid Mode = "hybrid"
	// ModeManual sends every request to a human reviewer
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeHybrid || m == ModeManual
}

// Thresholds are the score cut-offs and attempt allowances used when routing.
// Read-only after startup.
type Thresholds struct {
	// AdminReview routes requests scoring at or above it to a human
	AdminReview int
	// HardCaptcha hardens the challenge for scores at or above it
	HardCaptcha int
	// NormalAttempts is the challenge allowance for low-risk applicants
	NormalAttempts int
	// HardAttempts is the challenge allowance for elevated-risk applicants
	HardAttempts int
}

// Manager reads and writes the runtime moderation policy
type Manager struct {
	store      store.Store
	thresholds Thresholds
	logger     *slog.Logger
}

// NewManager creates a policy manager backed by the given store
func NewManager(st store.Store, thresholds Thresholds) *Manager {
	return &Manager{
		store:      st,
		thresholds: thresholds,
		logger:     slog.Default().With("component", "policy"),
	}
}

// Mode returns the current moderation mode. Unset or unreadable settings
// fall back to hybrid so a fresh database behaves sensibly.
func (m *Manager) Mode(ctx context.Context) Mode {
	raw, err := m.store.GetSetting(ctx, store.SettingModerationMode)
	if errors.Is(err, store.ErrNotFound) {
		return ModeHybrid
	}
	if err != nil {
		m.logger.Warn("reading moderation mode, falling back to hybrid", "error", err)
		return ModeHybrid
	}

	mode := Mode(raw)
	if !mode.Valid() {
		m.logger.Warn("stored moderation mode is invalid, falling back to hybrid", "value", raw)
		return ModeHybrid
	}
	return mode
}

// SetMode persists a new moderation mode
func (m *Manager) SetMode(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if err := m.store.SetSetting(ctx, store.SettingModerationMode, string(mode)); err != nil {
		return fmt.Errorf("persisting moderation mode: %w", err)
	}

	m.logger.Info("moderation mode changed", "mode", mode)
	return nil
}

// Toggle flips between hybrid and manual and returns the new mode
func (m *Manager) Toggle(ctx context.Context) (Mode, error) {
	next := ModeManual
	if m.Mode(ctx) == ModeManual {
		next = ModeHybrid
	}
	if err := m.SetMode(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// Thresholds returns the routing thresholds fixed at startup
func (m *Manager) Thresholds() Thresholds {
	return m.thresholds
}
