package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore is a MemoryStore whose state is written to a single SQLite file
// as JSON buckets before every commit. A failed write discards the
// transaction.
type SQLiteStore struct {
	*MemoryStore
	db   *sql.DB
	path string
}

type sqliteSnapshot struct {
	Templates   []templateRow   `json:"templates"`
	Steps       []stepRow       `json:"steps"`
	Persons     []personRow     `json:"persons"`
	Inspections []inspectionRow `json:"inspections"`
	Results     []resultRow     `json:"results"`
	Seq         int             `json:"seq"`
}

var sqliteBuckets = []string{"templates", "steps", "persons", "inspections", "results", "seq"}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "inspections.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &SQLiteStore{MemoryStore: NewMemoryStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.beforeCommit = s.persist
	return s, nil
}

func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap sqliteSnapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var target any
		switch bucket {
		case "templates":
			target = &snap.Templates
		case "steps":
			target = &snap.Steps
		case "persons":
			target = &snap.Persons
		case "inspections":
			target = &snap.Inspections
		case "results":
			target = &snap.Results
		case "seq":
			target = &snap.Seq
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}

	state := newMemoryState()
	state.seq = snap.Seq
	for _, r := range snap.Templates {
		state.templates[r.ID] = r
	}
	for _, r := range snap.Steps {
		state.steps[r.ID] = r
	}
	for _, r := range snap.Persons {
		state.persons[r.ID] = r
	}
	for _, r := range snap.Inspections {
		state.inspections[r.ID] = r
	}
	for _, r := range snap.Results {
		state.results[r.ID] = r
	}
	s.state = state
	return nil
}

func (s *SQLiteStore) persist(state memoryState) (retErr error) {
	snap := sqliteSnapshot{
		Templates:   mapValues(state.templates),
		Steps:       mapValues(state.steps),
		Persons:     mapValues(state.persons),
		Inspections: mapValues(state.inspections),
		Results:     mapValues(state.results),
		Seq:         state.seq,
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "templates":
			data, err = json.Marshal(snap.Templates)
		case "steps":
			data, err = json.Marshal(snap.Steps)
		case "persons":
			data, err = json.Marshal(snap.Persons)
		case "inspections":
			data, err = json.Marshal(snap.Inspections)
		case "results":
			data, err = json.Marshal(snap.Results)
		case "seq":
			data, err = json.Marshal(snap.Seq)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

func mapValues[T any](m map[uuid.UUID]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }
