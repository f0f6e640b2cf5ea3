// ABOUTME: Audit log entity and store methods for tracking moderation actions
// ABOUTME: Records who decided what about which join request for review and debugging

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditApproveRequest AuditAction = "approve_request"
	AuditDeclineRequest AuditAction = "decline_request"
	AuditToggleMode     AuditAction = "toggle_mode"
	AuditExpireRequest  AuditAction = "expire_request"
	AuditPurgeRecords   AuditAction = "purge_records"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditApproveRequest,
	AuditDeclineRequest,
	AuditToggleMode,
	AuditExpireRequest,
	AuditPurgeRecords,
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         // UUID v4
	ActorID   int64          // reviewer who acted, 0 for the system
	Action    AuditAction    // what action was performed
	RequestID *int64         // join request acted on, nil for settings changes
	Timestamp time.Time      // when it happened
	Detail    map[string]any // additional context (outcome, route, counts)
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since     *time.Time   // entries after this time
	Until     *time.Time   // entries before this time
	ActorID   *int64       // filter by actor
	Action    *AuditAction // filter by action type
	RequestID *int64       // filter by join request
	Limit     int          // max results (default 100, max 1000)
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	// Generate ID if not set
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	// Generate timestamp if not set
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, actor_id, action, request_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.ActorID,
		e.Action,
		nullInt64(e.RequestID),
		e.Timestamp.UTC().Format(time.RFC3339),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.ActorID,
		"action", e.Action,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// auditQueryArgs builds the query arguments from an AuditFilter.
type auditQueryArgs struct {
	sinceStr  *string
	untilStr  *string
	actionStr *string
}

// buildAuditQueryArgs converts filter time/action fields to query args.
func buildAuditQueryArgs(f AuditFilter) auditQueryArgs {
	var args auditQueryArgs
	if f.Since != nil {
		s := f.Since.UTC().Format(time.RFC3339)
		args.sinceStr = &s
	}
	if f.Until != nil {
		s := f.Until.UTC().Format(time.RFC3339)
		args.untilStr = &s
	}
	if f.Action != nil {
		a := string(*f.Action)
		args.actionStr = &a
	}
	return args
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var requestID *int64
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.ActorID,
		&actionStr,
		&requestID,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	e.RequestID = requestID
	var err error
	e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

const auditLogQuery = `
	SELECT audit_id, actor_id, action, request_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR actor_id = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR request_id = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)
	args := buildAuditQueryArgs(f)

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		args.sinceStr, args.sinceStr,
		args.untilStr, args.untilStr,
		f.ActorID, f.ActorID,
		args.actionStr, args.actionStr,
		f.RequestID, f.RequestID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
