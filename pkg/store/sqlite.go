package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	upload_time TEXT NOT NULL,
	record TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

//SQLiteStore persists records in a SQLite database, one JSON document per match
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

//NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("NewSQLiteStore: empty database path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Put(rec *Record) error {
	if rec == nil || rec.MatchID == "" {
		return errors.New("SQLiteStore.Put: record without match ID")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.MatchID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO analyses (match_id, status, upload_time, record) VALUES (?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET status = excluded.status, upload_time = excluded.upload_time, record = excluded.record`,
		rec.MatchID, rec.Status, rec.UploadTime.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.MatchID, err)
	}

	return nil
}

func (s *SQLiteStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT record FROM analyses WHERE match_id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	return decodeRecord(data)
}

func (s *SQLiteStore) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT record FROM analyses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(data string) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
