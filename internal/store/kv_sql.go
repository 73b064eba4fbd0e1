package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect selects the SQL flavour SQLKV speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// serializationRetries bounds how often Update re-runs after a postgres
// serialization failure (SQLSTATE 40001).
const serializationRetries = 3

// SQLKV implements KV on a single `kv` table through database/sql. sqlite is
// the single-node default; postgres is used when several API replicas share
// one store.
type SQLKV struct {
	// pool is the raw connection pool, used for single statements and to
	// begin transactions.
	pool    *sql.DB
	dialect Dialect
}

// NewSQLKV wraps an open pool. It does not create the table; call Migrate
// (or use OpenSQL, which does both).
func NewSQLKV(pool *sql.DB, dialect Dialect) *SQLKV {
	return &SQLKV{pool: pool, dialect: dialect}
}

// OpenSQL opens the pool, verifies it is reachable, and creates the kv table
// if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLKV, error) {
	pool, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// One writer at a time; also keeps ":memory:" databases on a single
		// connection so every query sees the same data.
		pool.SetMaxOpenConns(1)
	default:
		pool.SetMaxOpenConns(25)
		pool.SetMaxIdleConns(10)
		pool.SetConnMaxLifetime(5 * time.Minute)
		pool.SetConnMaxIdleTime(2 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	kv := NewSQLKV(pool, dialect)
	if err := kv.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return kv, nil
}

// Close releases the underlying pool.
func (k *SQLKV) Close() error {
	return k.pool.Close()
}

// Ping reports whether the database is reachable.
func (k *SQLKV) Ping(ctx context.Context) error {
	return k.pool.PingContext(ctx)
}

// Migrate creates the kv table. It is idempotent.
func (k *SQLKV) Migrate(ctx context.Context) error {
	valueType := "BLOB"
	if k.dialect == DialectPostgres {
		valueType = "JSONB"
	}
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      ` + valueType + ` NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := k.pool.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: migrate kv table: %w", err)
	}
	return nil
}

// ─── QUERIES ─────────────────────────────────────────────────────────────────

const (
	selectValueSQL = `SELECT value FROM kv WHERE key = ?`
	upsertValueSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteValueSQL = `DELETE FROM kv WHERE key = ?`
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (k *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	return k.get(ctx, k.pool, key)
}

func (k *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	return k.set(ctx, k.pool, key, value)
}

func (k *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := k.pool.ExecContext(ctx, k.rebind(deleteValueSQL), key); err != nil {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

// Update runs the read-modify-write inside one transaction. On postgres the
// transaction is serializable and retried on serialization failure; sqlite
// transactions are serializable by construction.
func (k *SQLKV) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	var err error
	for attempt := 0; attempt < serializationRetries; attempt++ {
		err = k.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			current, err := k.get(ctx, tx, key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			next, err := fn(current)
			if err != nil {
				return err
			}
			if next == nil {
				if _, err := tx.ExecContext(ctx, k.rebind(deleteValueSQL), key); err != nil {
					return fmt.Errorf("store: delete %q: %w", key, err)
				}
				return nil
			}
			return k.set(ctx, tx, key, next)
		})
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("store: update %q: gave up after %d serialization failures: %w", key, serializationRetries, err)
}

func (k *SQLKV) get(ctx context.Context, q execer, key string) ([]byte, error) {
	var value pqtype.NullRawMessage
	err := q.QueryRowContext(ctx, k.rebind(selectValueSQL), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %q: %w", key, err)
	}
	if !value.Valid {
		return nil, ErrNotFound
	}
	return value.RawMessage, nil
}

func (k *SQLKV) set(ctx context.Context, q execer, key string, value []byte) error {
	arg := pqtype.NullRawMessage{RawMessage: value, Valid: true}
	if _, err := q.ExecContext(ctx, k.rebind(upsertValueSQL), key, arg); err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
func (k *SQLKV) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	var opts *sql.TxOptions
	if k.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	tx, err := k.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to $1, $2, … for postgres.
func (k *SQLKV) rebind(query string) string {
	if k.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
