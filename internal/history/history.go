// Package history records report-job runs in an append-only SQLite store.
// Records form a hash chain so after-the-fact edits are detectable.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const DBFileName = "vaultscope-history.db"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS run_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uuid      TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    kind          TEXT NOT NULL,
    status        TEXT NOT NULL,
    records       INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    output_files  TEXT DEFAULT '',
    error_detail  TEXT DEFAULT '',
    record_hash   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_run ON run_history(run_uuid);
CREATE INDEX IF NOT EXISTS idx_history_kind ON run_history(kind);
`

// Record is one report job outcome.
type Record struct {
	ID          int64
	RunUUID     string
	Timestamp   time.Time
	Kind        string
	Status      string
	Records     int
	Duration    time.Duration
	OutputFiles string
	ErrorDetail string
	RecordHash  string
}

// Store appends and reads run-history records.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	lastHash string
}

// Open opens or creates the history database at path and recovers the hash
// chain tail.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	s := &Store{db: db}

	var lastHash sql.NullString
	err = db.QueryRow("SELECT record_hash FROM run_history ORDER BY id DESC LIMIT 1").Scan(&lastHash)
	if err != nil && err != sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("recovering history chain: %w", err)
	}
	if lastHash.Valid {
		s.lastHash = lastHash.String
	}

	return s, nil
}

// Append writes one record immutably, extending the hash chain.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	hash := chainHash(s.lastHash, ts, rec.Kind, rec.Status, rec.ErrorDetail)

	_, err := s.db.Exec(
		`INSERT INTO run_history (run_uuid, timestamp, kind, status, records, duration_ms, output_files, error_detail, record_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunUUID, ts, rec.Kind, rec.Status, rec.Records,
		rec.Duration.Milliseconds(), rec.OutputFiles, rec.ErrorDetail, hash,
	)
	if err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}

	s.lastHash = hash
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, run_uuid, timestamp, kind, status, records, duration_ms, output_files, error_detail, record_hash
		 FROM run_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		var durMS int64
		if err := rows.Scan(&r.ID, &r.RunUUID, &ts, &r.Kind, &r.Status, &r.Records, &durMS, &r.OutputFiles, &r.ErrorDetail, &r.RecordHash); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		r.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Verify walks the full chain and checks every link.
func (s *Store) Verify() (bool, int, error) {
	rows, err := s.db.Query(
		"SELECT timestamp, kind, status, error_detail, record_hash FROM run_history ORDER BY id ASC")
	if err != nil {
		return false, 0, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var previous string
	count := 0

	for rows.Next() {
		var ts, kind, status, errDetail, recordHash string
		if err := rows.Scan(&ts, &kind, &status, &errDetail, &recordHash); err != nil {
			return false, count, fmt.Errorf("scanning history record: %w", err)
		}

		if chainHash(previous, ts, kind, status, errDetail) != recordHash {
			return false, count, fmt.Errorf("history chain broken at record %d", count+1)
		}
		previous = recordHash
		count++
	}

	return true, count, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func chainHash(previous, ts, kind, status, errDetail string) string {
	h := sha256.Sum256([]byte(previous + ts + kind + status + errDetail))
	return hex.EncodeToString(h[:])
}
