// ABOUTME: Admin CLI for the joinguard ops API
// ABOUTME: Inspects moderation stats, queues and audit history over HTTP with JWT auth

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/joinguard/internal/api"
)

const banner = `
   _       _                                 _                 _           _
  (_) ___ (_)_ __   __ _ _   _  __ _ _ __ __| |       __ _  __| |_ __ ___ (_)_ __
  | |/ _ \| | '_ \ / _' | | | |/ _' | '__/ _' |_____ / _' |/ _' | '_ ' _ \| | '_ \
  | | (_) | | | | | (_| | |_| | (_| | | | (_| |_____| (_| | (_| | | | | | | | | | |
 _/ |\___/|_|_| |_|\__, |\__,_|\__,_|_|  \__,_|      \__,_|\__,_|_| |_| |_|_|_| |_|
|__/               |___/
`

// statusOrder fixes the display order of request counts.
var statusOrder = []string{"new", "pending_admin", "pending_captcha", "approved", "declined"}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Base URL from environment, token from env or token file
	baseURL := strings.TrimSuffix(getEnv("JOINGUARD_API", "http://127.0.0.1:8484"), "/")
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(baseURL, token)
	case "stats":
		err = cmdStats(baseURL, token)
	case "pending":
		err = cmdPending(baseURL, token, args)
	case "mode":
		err = cmdMode(baseURL, token, args)
	case "audit":
		err = cmdAudit(baseURL, token, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: joinguard-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                  Show ops API health and moderation stats")
	fmt.Println("  stats                   Show request counts and the active mode")
	fmt.Println("  pending                 List join requests waiting for manual review")
	fmt.Println("  mode                    Show the moderation mode")
	fmt.Println("  mode set <mode>         Switch the mode (hybrid or manual)")
	fmt.Println("  audit                   Show recent audit entries")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  JOINGUARD_API           Ops API base URL (default: http://127.0.0.1:8484)")
	fmt.Println("  JOINGUARD_TOKEN         JWT authentication token (required)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export JOINGUARD_TOKEN=\"$(joinguard token --reviewer 1111)\"")
	fmt.Println("  joinguard-admin pending")
	fmt.Println("  joinguard-admin mode set manual")
	fmt.Println("  joinguard-admin audit --action toggle_mode --limit 10")
	fmt.Println()
}

// getJSON performs an authenticated GET and decodes the JSON response.
func getJSON(baseURL, token, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// putJSON performs an authenticated PUT with a JSON body.
func putJSON(baseURL, token, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse surfaces the API's error message on non-200 responses.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// cmdStatus shows ops API health and, with a token, the moderation stats.
func cmdStatus(baseURL, token string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	// Health probe needs no auth
	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		yellow.Printf("  Ops API:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		green.Printf("  Ops API:  ")
		fmt.Printf("healthy at %s\n", baseURL)
	} else {
		yellow.Printf("  Ops API:  ")
		color.Red("ERROR (status %d)\n", resp.StatusCode)
		return nil
	}

	if token == "" {
		yellow.Printf("  Stats:    ")
		fmt.Println("(no token - set JOINGUARD_TOKEN)")
		fmt.Println()
		return nil
	}

	var stats api.StatsResponse
	if err := getJSON(baseURL, token, "/api/v1/stats", &stats); err != nil {
		yellow.Printf("  Stats:    ")
		color.Red("auth failed (%v)\n", err)
		fmt.Println()
		return nil
	}

	green.Printf("  Mode:     ")
	fmt.Println(stats.Mode)
	green.Printf("  Requests: ")
	fmt.Printf("%d in the last %dh\n", stats.Total, stats.WindowHours)
	fmt.Println()

	return nil
}

// cmdStats prints the request counts by status.
func cmdStats(baseURL, token string) error {
	if token == "" {
		return fmt.Errorf("JOINGUARD_TOKEN environment variable is required")
	}

	var stats api.StatsResponse
	if err := getJSON(baseURL, token, "/api/v1/stats", &stats); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Moderation Stats (%dh)\n", stats.WindowHours)
	cyan.Println("  ----------------------")
	fmt.Printf("  Mode:   %s\n", stats.Mode)
	fmt.Printf("  Total:  %d\n", stats.Total)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STATUS\tCOUNT")
	fmt.Fprintln(w, "  ------\t-----")
	for _, status := range statusOrder {
		fmt.Fprintf(w, "  %s\t%d\n", status, stats.Counts[status])
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdPending lists requests waiting for manual review.
func cmdPending(baseURL, token string, args []string) error {
	if token == "" {
		return fmt.Errorf("JOINGUARD_TOKEN environment variable is required")
	}

	limit := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "-n":
			if i+1 < len(args) {
				limit = args[i+1]
				i++
			}
		}
	}

	path := "/api/v1/pending"
	if limit != "" {
		path += "?limit=" + limit
	}

	var pending api.PendingResponse
	if err := getJSON(baseURL, token, path, &pending); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Pending Review")
	cyan.Println("  --------------")

	if len(pending.Pending) == 0 {
		fmt.Println("  (queue is empty)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tUSER\tUSERNAME\tRISK\tAGE\tFLAGS\tSUBMITTED")
	fmt.Fprintln(w, "  --\t----\t--------\t----\t---\t-----\t---------")
	for _, rec := range pending.Pending {
		username := "-"
		if rec.Username != "" {
			username = "@" + rec.Username
		}
		age := "n/a"
		if rec.AgeDays != nil {
			age = fmt.Sprintf("%dd", *rec.AgeDays)
		}
		flags := ""
		if rec.IsFlagged {
			flags = "flagged"
		}
		submitted := rec.SubmittedAt
		if t, err := time.Parse(time.RFC3339, rec.SubmittedAt); err == nil {
			submitted = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.ID, truncate(rec.DisplayName, 20), truncate(username, 20), rec.RiskScore, age, flags, submitted)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdMode shows or switches the moderation mode.
func cmdMode(baseURL, token string, args []string) error {
	if token == "" {
		return fmt.Errorf("JOINGUARD_TOKEN environment variable is required")
	}

	if len(args) == 0 || args[0] == "get" {
		var mode api.ModeResponse
		if err := getJSON(baseURL, token, "/api/v1/mode", &mode); err != nil {
			return err
		}
		fmt.Println(mode.Mode)
		return nil
	}

	if args[0] != "set" || len(args) < 2 {
		return fmt.Errorf("usage: mode set <hybrid|manual>")
	}

	var mode api.ModeResponse
	if err := putJSON(baseURL, token, "/api/v1/mode", map[string]string{"mode": args[1]}, &mode); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Mode set: %s\n", mode.Mode)
	return nil
}

// cmdAudit lists recent audit entries, newest first.
func cmdAudit(baseURL, token string, args []string) error {
	if token == "" {
		return fmt.Errorf("JOINGUARD_TOKEN environment variable is required")
	}

	params := []string{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit", "-n":
			if i+1 < len(args) {
				params = append(params, "limit="+args[i+1])
				i++
			}
		case "--action", "-a":
			if i+1 < len(args) {
				params = append(params, "action="+args[i+1])
				i++
			}
		case "--actor":
			if i+1 < len(args) {
				params = append(params, "actor_id="+args[i+1])
				i++
			}
		case "--request", "-r":
			if i+1 < len(args) {
				params = append(params, "request_id="+args[i+1])
				i++
			}
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	path := "/api/v1/audit"
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	var audit api.AuditResponse
	if err := getJSON(baseURL, token, path, &audit); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Audit Log")
	cyan.Println("  ---------")

	if len(audit.Entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tACTOR\tACTION\tREQUEST\tDETAIL")
	fmt.Fprintln(w, "  ----\t-----\t------\t-------\t------")
	for _, e := range audit.Entries {
		ts := e.Timestamp
		if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
			ts = t.Format("Jan 02 15:04")
		}
		request := "-"
		if e.RequestID != nil {
			request = fmt.Sprintf("#%d", *e.RequestID)
		}
		fmt.Fprintf(w, "  %s\t%d\t%s\t%s\t%s\n", ts, e.ActorID, e.Action, request, formatDetail(e.Detail))
	}
	w.Flush()
	fmt.Println()

	return nil
}

// formatDetail renders an audit detail map as stable k=v pairs.
func formatDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return ""
	}

	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return truncate(strings.Join(parts, " "), 48)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func getToken() string {
	// Check env var first
	if token := os.Getenv("JOINGUARD_TOKEN"); token != "" {
		return token
	}

	// Try to read from token file
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "joinguard", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
