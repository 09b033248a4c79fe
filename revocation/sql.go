package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const createRevocationsTable = `
CREATE TABLE IF NOT EXISTS revocations (
	user_id    TEXT PRIMARY KEY,
	revoked_at BIGINT NOT NULL
)`

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore keeps flags in a single table; it works with SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ Store    = (*SQLStore)(nil)
	_ Consumer = (*SQLStore)(nil)
)

func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newSQLStore(db, DialectSQLite)
}

func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(db, DialectPostgres)
}

// NewSQLStore wraps an already opened database.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	return newSQLStore(db, dialect)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createRevocationsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	query := s.rebind(`INSERT INTO revocations (user_id, revoked_at) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET revoked_at = excluded.revoked_at`)
	if _, err := s.db.ExecContext(ctx, query, userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

func (s *SQLStore) IsRevoked(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM revocations WHERE user_id = ?`), userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query revocation: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Clear(ctx context.Context, userID string) error {
	_, err := s.Consume(ctx, userID)
	return err
}

func (s *SQLStore) Consume(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM revocations WHERE user_id = ?`), userID)
	if err != nil {
		return false, fmt.Errorf("delete revocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete revocation: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
