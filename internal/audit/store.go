// Package audit persists a per-request audit trail of categorization
// outcomes to SQLite. Struggle text itself is never stored, only outcome
// metadata.
package audit

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store handles writes and queries to the SQLite audit database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			session_id TEXT,
			text_length INTEGER,
			success INTEGER,
			cache_hit INTEGER,
			fallback_used INTEGER,
			crisis_detected INTEGER,
			primary_category TEXT,
			model_used TEXT,
			processing_ms REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_log (created_at)`)
	return err
}

// Entry is one audit record.
type Entry struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	SessionID       string    `json:"session_id,omitempty"`
	TextLength      int       `json:"text_length"`
	Success         bool      `json:"success"`
	CacheHit        bool      `json:"cache_hit"`
	FallbackUsed    bool      `json:"fallback_used"`
	CrisisDetected  bool      `json:"crisis_detected"`
	PrimaryCategory string    `json:"primary_category"`
	ModelUsed       string    `json:"model_used"`
	ProcessingMs    float64   `json:"processing_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Record inserts an audit entry, assigning an ID when missing.
func (s *Store) Record(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_log (id, request_id, session_id, text_length, success,
			cache_hit, fallback_used, crisis_detected, primary_category,
			model_used, processing_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		entry.ID, entry.RequestID, entry.SessionID, entry.TextLength,
		entry.Success, entry.CacheHit, entry.FallbackUsed, entry.CrisisDetected,
		entry.PrimaryCategory, entry.ModelUsed, entry.ProcessingMs, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// FilterOptions narrows audit queries.
type FilterOptions struct {
	Success      *bool
	FallbackUsed *bool
	Model        string
	Since        time.Time
	Limit        int
}

// Query returns audit entries matching the filters, newest first.
func (s *Store) Query(filters FilterOptions) ([]Entry, error) {
	var conditions []string
	var args []interface{}

	if filters.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filters.Success)
	}
	if filters.FallbackUsed != nil {
		conditions = append(conditions, "fallback_used = ?")
		args = append(args, *filters.FallbackUsed)
	}
	if filters.Model != "" {
		conditions = append(conditions, "model_used = ?")
		args = append(args, filters.Model)
	}
	if !filters.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filters.Since)
	}

	query := `SELECT id, request_id, session_id, text_length, success,
		cache_hit, fallback_used, crisis_detected, primary_category,
		model_used, processing_ms, created_at FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.RequestID, &e.SessionID, &e.TextLength,
			&e.Success, &e.CacheHit, &e.FallbackUsed, &e.CrisisDetected,
			&e.PrimaryCategory, &e.ModelUsed, &e.ProcessingMs, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

// Count returns the total number of audit entries.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// Prune removes entries older than the cutoff and returns how many were
// deleted.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM audit_log WHERE created_at < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return result.RowsAffected()
}
