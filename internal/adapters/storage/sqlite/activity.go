// Package sqlite keeps the session activity ledger in an in-memory SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/dragboard/internal/domain"
	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ActivityLedger stores change events for one board session. Nothing is written to disk.
type ActivityLedger struct {
	db     *sql.DB
	retain int
}

// OpenActivityLedger opens an empty in-memory ledger. When retain is positive only the
// newest retain events are kept.
func OpenActivityLedger(retain int) (*ActivityLedger, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every connection to :memory: gets its own database.
	db.SetMaxOpenConns(1)

	ledger := &ActivityLedger{db: db, retain: max(retain, 0)}
	if err := ledger.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close releases the database; recorded events are gone afterwards.
func (l *ActivityLedger) Close() error {
	return l.db.Close()
}

func (l *ActivityLedger) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			revision INTEGER NOT NULL,
			entity_kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_entity ON change_events(entity_kind, entity_id);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// RecordChange appends one event.
func (l *ActivityLedger) RecordChange(ctx context.Context, event domain.ChangeEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO change_events(revision, entity_kind, entity_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(event.Revision),
		string(event.EntityKind),
		event.EntityID,
		string(event.Operation),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	if l.retain > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM change_events
			WHERE id NOT IN (SELECT id FROM change_events ORDER BY id DESC LIMIT ?)
		`, l.retain)
		if err != nil {
			return fmt.Errorf("prune change events: %w", err)
		}
	}
	return tx.Commit()
}

// ListChanges returns up to limit events, newest first. A non-positive limit returns all of them.
func (l *ActivityLedger) ListChanges(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, revision, entity_kind, entity_id, operation, metadata_json, created_at
		FROM change_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			revision    int64
			kindRaw     string
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &revision, &kindRaw, &event.EntityID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Revision = uint64(revision)
		event.EntityKind = domain.ParseDragKind(kindRaw)
		event.Operation = domain.ChangeOperation(strings.TrimSpace(opRaw))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CountByOperation tallies recorded events per operation.
func (l *ActivityLedger) CountByOperation(ctx context.Context) (map[domain.ChangeOperation]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT operation, COUNT(*) FROM change_events GROUP BY operation
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.ChangeOperation]int{}
	for rows.Next() {
		var (
			op    string
			count int
		)
		if err := rows.Scan(&op, &count); err != nil {
			return nil, err
		}
		out[domain.ChangeOperation(op)] = count
	}
	return out, rows.Err()
}

func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
