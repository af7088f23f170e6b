package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNoStore = errors.New("server: result store not configured")

// ResultStore persists analysis results in Postgres so they survive
// process restarts. A nil store is valid and means in-memory only.
type ResultStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewResultStore(dsn string) (*ResultStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ResultStore{db: db}, nil
}

// NewResultStoreFromEnv returns a Postgres-backed store when dsn is
// set and reachable, nil otherwise.
func NewResultStoreFromEnv(dsn string) *ResultStore {
	if strings.TrimSpace(dsn) == "" {
		return nil
	}
	s, err := NewResultStore(dsn)
	if err != nil {
		return nil
	}
	return s
}

func (s *ResultStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS analysis_results (
    repo_path  TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	})
	return s.schemaErr
}

func (s *ResultStore) Save(ctx context.Context, repoPath string, result *Result) error {
	if s == nil || s.db == nil {
		return ErrNoStore
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO analysis_results (repo_path, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (repo_path) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		repoPath, payload)
	return err
}

func (s *ResultStore) Load(ctx context.Context, repoPath string) (*Result, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_results WHERE repo_path = $1`, repoPath).Scan(&payload)
	if err != nil {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
