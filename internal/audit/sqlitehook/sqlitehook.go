// Package sqlitehook is an optional audit.DurabilityHook backed by
// mattn/go-sqlite3, giving the in-memory Audit Ledger a durable tail on
// disk without changing the ledger's query semantics (the ledger remains
// the source of truth for live queries; this hook is write-only).
package sqlitehook

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/riftguard/riftguard/internal/audit"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS audit_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	action TEXT NOT NULL,
	policy_id TEXT,
	policy_version TEXT,
	model_version TEXT,
	outcome TEXT NOT NULL,
	reasoning TEXT,
	region TEXT,
	risk_score INTEGER,
	latency_us INTEGER,
	timestamp_unix_nano INTEGER NOT NULL,
	metadata_json TEXT
);`

const insertSQL = `
INSERT INTO audit_records (
	agent_id, action, policy_id, policy_version, model_version,
	outcome, reasoning, region, risk_score, latency_us,
	timestamp_unix_nano, metadata_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

// Hook persists audit.Record values to a SQLite database file.
type Hook struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or reuses) a SQLite database at path and ensures the audit
// table exists.
func Open(path string, logger *slog.Logger) (*Hook, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitehook: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitehook: create table: %w", err)
	}
	return &Hook{db: db, logger: logger.With("component", "audit.sqlitehook.Hook")}, nil
}

// Persist implements audit.DurabilityHook.
func (h *Hook) Persist(rec audit.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var metaJSON string
	if len(rec.Metadata) > 0 {
		if b, err := json.Marshal(rec.Metadata); err == nil {
			metaJSON = string(b)
		}
	}

	_, err := h.db.Exec(insertSQL,
		rec.AgentID, rec.Action, rec.PolicyID, rec.PolicyVersion, rec.ModelVersion,
		string(rec.Outcome), rec.Reasoning, rec.Region, rec.RiskScore, rec.LatencyUs,
		rec.Timestamp.UnixNano(), metaJSON,
	)
	if err != nil {
		h.logger.Error("failed to persist audit record", "error", err)
	}
}

// Close releases the underlying database handle.
func (h *Hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db.Close()
}
