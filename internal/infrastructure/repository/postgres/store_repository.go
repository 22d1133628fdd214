package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

// schemaLockKey serializes bootstrap DDL across api/worker startups.
const schemaLockKey = int64(2026082601)

// StoreRepository keeps each pattern store as a single JSONB row keyed by
// store name. Writes run in a transaction under an advisory lock on the
// name, so concurrent trainers serialize their read-merge-write cycles
// instead of clobbering each other.
type StoreRepository struct {
	db   *sql.DB
	name string
}

func NewStoreRepository(db *sql.DB, name string) *StoreRepository {
	if name == "" {
		name = "default"
	}
	return &StoreRepository{db: db, name: name}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StoreRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS pattern_stores (
	name TEXT PRIMARY KEY,
	version INTEGER NOT NULL DEFAULT 0,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Load materializes the named store. A missing row is a fresh deployment
// and yields an empty store; an invalid payload is ErrCorruptStore.
func (r *StoreRepository) Load(ctx context.Context) (*domain.PatternStore, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload FROM pattern_stores WHERE name = $1
`, r.name)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewPatternStore(), nil
		}
		return nil, fmt.Errorf("select pattern store %q: %w", r.name, err)
	}
	return domain.DeserializePatternStore(payload)
}

func (r *StoreRepository) Save(ctx context.Context, store *domain.PatternStore) error {
	payload, err := store.Serialize()
	if err != nil {
		return err
	}
	updatedAt := store.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, storeLockKey(r.name)); err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO pattern_stores (name, version, payload, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
	version = EXCLUDED.version,
	payload = EXCLUDED.payload,
	updated_at = EXCLUDED.updated_at
`, r.name, store.Version, payload, updatedAt); err != nil {
		return fmt.Errorf("upsert pattern store %q: %w", r.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func storeLockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("pattern_stores/" + name))
	return int64(h.Sum64())
}
