// ABOUTME: Application orchestrator that wires store, policy, bot and ops API
// ABOUTME: Manages component lifecycle and graceful shutdown

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/joinguard/internal/api"
	"github.com/2389/joinguard/internal/config"
	"github.com/2389/joinguard/internal/idage"
	"github.com/2389/joinguard/internal/moderation"
	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/risk"
	"github.com/2389/joinguard/internal/store"
	"github.com/2389/joinguard/internal/sweep"
	"github.com/2389/joinguard/internal/telegram"
)

// App owns the assembled moderation engine: the Telegram adapter, the
// moderation service over SQLite, the retention sweeper and the optional
// ops API.
type App struct {
	cfg     *config.Config
	store   store.Store
	service *moderation.Service
	bot     *telegram.Bot
	sweeper *sweep.Sweeper
	api     *api.Server
	logger  *slog.Logger
}

// initStore opens the SQLite store from config, honoring the
// JOINGUARD_DB_PATH override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("JOINGUARD_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildEstimator loads the account-age anchor table, using the override file
// when one is configured.
func buildEstimator(cfg *config.Config) (*idage.Estimator, error) {
	if cfg.Moderation.AnchorsFile == "" {
		return idage.NewEstimator(), nil
	}
	est, err := idage.NewEstimatorFromFile(cfg.Moderation.AnchorsFile)
	if err != nil {
		return nil, fmt.Errorf("loading id age anchors: %w", err)
	}
	return est, nil
}

// New assembles the application from configuration. The Telegram client
// authenticates immediately; a bad token fails here, not in Run.
func New(cfg *config.Config) (*App, error) {
	logger := slog.Default().With("component", "app")

	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	client, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	logger.Info("telegram client authorized", "bot", client.Self.UserName)

	estimator, err := buildEstimator(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pol := policy.NewManager(st, policy.Thresholds{
		AdminReview:    cfg.Moderation.RiskScoreToAdmin,
		HardCaptcha:    cfg.Moderation.RiskScoreToHardCaptcha,
		NormalAttempts: cfg.Moderation.MaxCaptchaAttempts,
		HardAttempts:   cfg.Moderation.HardCaptchaAttempts,
	})

	scorer := risk.NewScorer(estimator, telegram.NewSignals(client),
		cfg.Moderation.MinAccountAgeDays, slog.Default().With("component", "risk"))

	svc := moderation.NewService(st, pol, scorer, telegram.NewGate(client))

	sweeper, err := sweep.New(svc, cfg.Retention)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating retention sweeper: %w", err)
	}

	a := &App{
		cfg:     cfg,
		store:   st,
		service: svc,
		bot:     telegram.New(client, svc, cfg.Telegram),
		sweeper: sweeper,
		logger:  logger,
	}

	if cfg.API.Enabled {
		a.api = api.New(api.Config{
			Addr:        cfg.API.Addr,
			JWTSecret:   cfg.API.JWTSecret,
			ReviewerIDs: cfg.Telegram.ReviewerIDs,
		}, svc, st)
	}

	return a, nil
}

// Run starts every component and blocks until the context is canceled or a
// component fails. Either way the remaining components are wound down before
// returning; nil means a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("joinguard starting",
		"community_id", a.cfg.Telegram.CommunityID,
		"reviewers", len(a.cfg.Telegram.ReviewerIDs),
		"api_enabled", a.cfg.API.Enabled,
	)

	a.sweeper.Start()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.bot.Run(ctx); err != nil {
			errCh <- fmt.Errorf("telegram bot: %w", err)
		}
	}()

	if a.api != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.api.Run(ctx); err != nil {
				errCh <- fmt.Errorf("ops API: %w", err)
			}
		}()
	}

	runErr := a.waitForShutdownSignal(ctx, errCh)

	// Stop the surviving components and wait for them to unwind before
	// releasing shared resources.
	cancel()
	wg.Wait()
	a.drainErrors(errCh)

	closeErr := a.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// waitForShutdownSignal blocks until the context is canceled or a component
// reports a fatal error.
func (a *App) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
		return nil
	case err := <-errCh:
		a.logger.Error("component failed, shutting down", "error", err)
		return err
	}
}

// drainErrors logs errors from components that failed while unwinding.
func (a *App) drainErrors(errCh chan error) {
	select {
	case err := <-errCh:
		a.logger.Warn("additional component error", "error", err)
	default:
	}
}

// Close stops the sweeper and releases the store.
func (a *App) Close() error {
	a.sweeper.Stop()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
