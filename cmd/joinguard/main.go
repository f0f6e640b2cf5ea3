// ABOUTME: Entry point for the joinguard moderation bot
// ABOUTME: Guards a Telegram community by screening chat join requests

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/joinguard/internal/app"
	"github.com/2389/joinguard/internal/auth"
	"github.com/2389/joinguard/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
   _       _                                 _
  (_) ___ (_)_ __   __ _ _   _  __ _ _ __ __| |
  | |/ _ \| | '_ \ / _' | | | |/ _' | '__/ _' |
  | | (_) | | | | | (_| | |_| | (_| | | | (_| |
 _/ |\___/|_|_| |_|\__, |\__,_|\__,_|_|  \__,_|
|__/               |___/
`

// getConfigPath returns the path to the joinguard config file.
// Priority: JOINGUARD_CONFIG env var > XDG_CONFIG_HOME/joinguard/joinguard.yaml > ~/.config/joinguard/joinguard.yaml
func getConfigPath() string {
	if envPath := os.Getenv("JOINGUARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "joinguard.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "joinguard", "joinguard.yaml")
}

// getDataPath returns the path to the joinguard data directory.
// Priority: XDG_DATA_HOME/joinguard > ~/.local/share/joinguard
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "joinguard")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: joinguard <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the moderation bot")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  token --reviewer ID      Issue an ops API token for a reviewer")
		fmt.Println("  health                   Check the ops API health endpoint")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger; components derive theirs from the default
	slog.SetDefault(setupLogger(cfg.Logging))

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Community: %d\n", cfg.Telegram.CommunityID)
	green.Print("    ▶ ")
	fmt.Printf("Reviewers: %d\n", len(cfg.Telegram.ReviewerIDs))
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.API.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Ops API:   ")
		cyan.Println(cfg.API.Addr)
	}

	fmt.Println()

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	return a.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.API.Enabled {
		return fmt.Errorf("ops API is disabled; set api.enabled in %s to use health checks", configPath)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/healthz", cfg.API.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runToken issues a bearer token for the ops API.
// Supports both "--reviewer value" and "--reviewer=value" formats.
func runToken() error {
	var reviewerArg, ttlArg string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--reviewer" || arg == "-r":
			if i+1 >= len(args) {
				return fmt.Errorf("--reviewer requires a value")
			}
			reviewerArg = args[i+1]
			i++
		case strings.HasPrefix(arg, "--reviewer="):
			reviewerArg = strings.TrimPrefix(arg, "--reviewer=")
		case arg == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			ttlArg = args[i+1]
			i++
		case strings.HasPrefix(arg, "--ttl="):
			ttlArg = strings.TrimPrefix(arg, "--ttl=")
		default:
			return fmt.Errorf("unknown argument: %s", arg)
		}
	}

	if reviewerArg == "" {
		return fmt.Errorf("--reviewer flag is required")
	}
	reviewerID, err := strconv.ParseInt(reviewerArg, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing reviewer id %q: %w", reviewerArg, err)
	}

	ttl := 30 * 24 * time.Hour
	if ttlArg != "" {
		ttl, err = time.ParseDuration(ttlArg)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", ttlArg, err)
		}
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is not configured")
	}
	if !cfg.IsReviewer(reviewerID) {
		return fmt.Errorf("user %d is not in telegram.reviewer_ids", reviewerID)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.API.JWTSecret))
	token, err := verifier.Generate(reviewerID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().Add(ttl).UTC()
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("Jan 02, 2006"))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("joinguard configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "joinguard.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Telegram configuration
	fmt.Println("\n--- Telegram Configuration ---")
	botToken := prompt(reader, "Bot token (from @BotFather)", "")
	communityID := prompt(reader, "Community chat id (negative for channels)", "")
	reviewerIDs := prompt(reader, "Reviewer user ids (comma separated)", "")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Ops API
	fmt.Println("\n--- Ops API Configuration ---")
	enableAPI := prompt(reader, "Enable local ops API?", "no")
	apiEnabled := strings.ToLower(enableAPI) == "yes" || strings.ToLower(enableAPI) == "y"

	var apiAddr, jwtSecret string
	if apiEnabled {
		apiAddr = prompt(reader, "Ops API address", "127.0.0.1:8484")

		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	// Retention
	fmt.Println("\n--- Retention Configuration ---")
	pendingTTL := prompt(reader, "Expire pending requests after (empty disables)", "48h")
	decidedTTL := prompt(reader, "Purge decided requests after (empty disables)", "720h")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# joinguard configuration\n")
	cfg.WriteString("# Generated by joinguard init\n\n")

	cfg.WriteString("telegram:\n")
	cfg.WriteString(fmt.Sprintf("  token: \"%s\"\n", botToken))
	cfg.WriteString(fmt.Sprintf("  community_id: %s\n", communityID))
	cfg.WriteString("  reviewer_ids:\n")
	for _, id := range strings.Split(reviewerIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.WriteString(fmt.Sprintf("    - %s\n", id))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("moderation:\n")
	cfg.WriteString("  min_account_age_days: 30\n")
	cfg.WriteString("  max_captcha_attempts: 3\n")
	cfg.WriteString("  hard_captcha_attempts: 1\n")
	cfg.WriteString("  risk_score_to_admin: 7\n")
	cfg.WriteString("  risk_score_to_hard_captcha: 4\n")
	cfg.WriteString("\n")

	cfg.WriteString("retention:\n")
	if pendingTTL != "" {
		cfg.WriteString(fmt.Sprintf("  pending_ttl: \"%s\"\n", pendingTTL))
	}
	if decidedTTL != "" {
		cfg.WriteString(fmt.Sprintf("  decided_ttl: \"%s\"\n", decidedTTL))
	}
	cfg.WriteString("  schedule: \"@hourly\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("api:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", apiEnabled))
	if apiEnabled {
		cfg.WriteString(fmt.Sprintf("  addr: \"%s\"\n", apiAddr))
		cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Config holds the bot token, keep it private
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the bot:")
	fmt.Printf("  joinguard serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
