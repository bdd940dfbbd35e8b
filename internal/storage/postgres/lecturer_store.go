// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// LecturerStoreConfig controls the Postgres connection pool used for lecturer rows.
type LecturerStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// LecturerStore keeps one JSONB document per lecturer. It expects a table
// shaped like:
//
//	CREATE TABLE lecturers (
//	    profile_url       TEXT PRIMARY KEY,
//	    record            JSONB NOT NULL,
//	    school            TEXT GENERATED ALWAYS AS (record->>'school') STORED,
//	    is_ai             BOOLEAN GENERATED ALWAYS AS ((record->>'is_ai_lecturer')::boolean) STORED,
//	    scholar_processed BOOLEAN GENERATED ALWAYS AS ((record->>'scholar_processed')::boolean) STORED,
//	    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// The document stays authoritative; the generated columns exist for filtering
// and indexing only.
type LecturerStore struct {
	pool  dbPool
	table string
}

// NewLecturerStore creates a Postgres-backed LecturerStore using the provided config.
func NewLecturerStore(ctx context.Context, cfg LecturerStoreConfig) (*LecturerStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "lecturers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LecturerStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewLecturerStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLecturerStoreWithPool(pool dbPool, table string) (*LecturerStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "lecturers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &LecturerStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *LecturerStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Put upserts the record document keyed by its normalized profile URL.
func (s *LecturerStore) Put(ctx context.Context, rec *lecturer.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("lecturer store is not configured")
	}
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (profile_url, record, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (profile_url) DO UPDATE
SET record = EXCLUDED.record, updated_at = now()`, s.table)
	if _, err := s.pool.Exec(ctx, query, rec.ID, doc); err != nil {
		return fmt.Errorf("upsert lecturer: %w", err)
	}
	return nil
}

// Get loads one record by normalized profile URL.
func (s *LecturerStore) Get(ctx context.Context, profileURL string) (*lecturer.Record, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("lecturer store is not configured")
	}
	query := fmt.Sprintf(`SELECT record FROM %s WHERE profile_url = $1`, s.table)
	var doc []byte
	if err := s.pool.QueryRow(ctx, query, profileURL).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select lecturer: %w", err)
	}
	return decodeRecord(doc)
}

// List returns the records matching q, ordered by name.
func (s *LecturerStore) List(ctx context.Context, q store.Query) ([]*lecturer.Record, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("lecturer store is not configured")
	}
	where, args := buildListFilter(q)
	query := fmt.Sprintf(`SELECT record FROM %s%s ORDER BY record->>'name'`, s.table, where)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	defer rows.Close()

	var out []*lecturer.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan lecturer row: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	return out, nil
}

// Names maps the name key of every stored record to its identity.
func (s *LecturerStore) Names(ctx context.Context) (map[string]store.NameRef, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("lecturer store is not configured")
	}
	query := fmt.Sprintf(`SELECT profile_url, record->>'name' FROM %s`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lecturer names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]store.NameRef)
	for rows.Next() {
		var profileURL, name string
		if err := rows.Scan(&profileURL, &name); err != nil {
			return nil, fmt.Errorf("scan name row: %w", err)
		}
		key := lecturer.NameKey(name)
		if key == "" {
			continue
		}
		out[key] = store.NameRef{ProfileURL: profileURL, Name: name}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lecturer names: %w", err)
	}
	return out, nil
}

// Count reports the number of stored records.
func (s *LecturerStore) Count(ctx context.Context) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("lecturer store is not configured")
	}
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)
	var n int64
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lecturers: %w", err)
	}
	return n, nil
}

func decodeRecord(doc []byte) (*lecturer.Record, error) {
	var rec lecturer.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// buildListFilter renders q as a WHERE clause over the generated columns and
// the JSONB document. Skill patterns get \y word boundaries, the POSIX ARE
// spelling Postgres understands.
func buildListFilter(q store.Query) (string, []any) {
	var clauses []string
	var args []any
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.School != "" {
		clauses = append(clauses, fmt.Sprintf("lower(school) = lower(%s)", place(q.School)))
	}
	if q.Name != "" {
		clauses = append(clauses, fmt.Sprintf("strpos(lower(record->>'name'), lower(%s)) > 0", place(q.Name)))
	}
	if q.AIOnly {
		clauses = append(clauses, "is_ai")
	}
	if patterns := q.SkillPatterns(); len(patterns) > 0 {
		op := " OR "
		if q.MatchAll {
			op = " AND "
		}
		skill := make([]string, len(patterns))
		for i, core := range patterns {
			ph := place(`\y(?:` + core + `)\y`)
			skill[i] = fmt.Sprintf(
				"(EXISTS (SELECT 1 FROM jsonb_array_elements_text(record->'ai_skills') skill(v) WHERE skill.v ~* %[1]s)"+
					" OR EXISTS (SELECT 1 FROM jsonb_array_elements(record->'publications') pub(doc) WHERE pub.doc->>'title' ~* %[1]s)"+
					" OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(record->'skills_expertise') item(v) WHERE item.v ~* %[1]s))",
				ph)
		}
		clauses = append(clauses, "("+strings.Join(skill, op)+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
