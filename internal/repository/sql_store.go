package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/ilinovom/feedbot/internal/model"
)

type sqlQueries struct {
	schema string
	keys   string
	get    string
	upsert string
}

var postgresQueries = sqlQueries{
	schema: `
        CREATE TABLE IF NOT EXISTS dialogues (
            chat_key TEXT PRIMARY KEY,
            state BYTEA NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
	keys: `SELECT chat_key FROM dialogues ORDER BY chat_key`,
	get:  `SELECT state FROM dialogues WHERE chat_key=$1`,
	upsert: `
        INSERT INTO dialogues (chat_key, state, updated_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (chat_key) DO UPDATE SET
            state=EXCLUDED.state,
            updated_at=EXCLUDED.updated_at`,
}

var sqliteQueries = sqlQueries{
	schema: `
CREATE TABLE IF NOT EXISTS dialogues (
	chat_key TEXT PRIMARY KEY,
	state BLOB NOT NULL,
	updated_at DATETIME NOT NULL
)`,
	keys: `SELECT chat_key FROM dialogues ORDER BY chat_key`,
	get:  `SELECT state FROM dialogues WHERE chat_key = ?`,
	upsert: `
INSERT INTO dialogues (chat_key, state, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(chat_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
}

// SQLStore stores dialogues in a relational table. It backs both the
// Postgres and the SQLite drivers.
type SQLStore struct {
	db *sql.DB
	q  sqlQueries
}

// NewPostgresStore connects through the pgx database/sql driver.
func NewPostgresStore(connStr string) (*SQLStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	return newSQLStore(db, postgresQueries)
}

// NewSQLiteStore opens (or creates) a SQLite database file.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite behaves best with a single connection for this workload.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return newSQLStore(db, sqliteQueries)
}

func newSQLStore(db *sql.DB, q sqlQueries) (*SQLStore, error) {
	s := &SQLStore{db: db, q: q}
	if _, err := db.Exec(q.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q.keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, key string) (model.Dialogue, error) {
	var raw []byte
	if err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Dialogue{}, ErrNotFound
		}
		return model.Dialogue{}, err
	}
	return decode(key, raw)
}

func (s *SQLStore) Save(ctx context.Context, key string, d model.Dialogue) error {
	b, err := model.Encode(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q.upsert, key, b, time.Now().UTC())
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
