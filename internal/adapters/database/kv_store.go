package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/larry-a4/bidmore/pkg/database"
	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// PostgresKVStore implements kvstore.Store on a single kv_records table.
// Conditional updates take a row lock (SELECT ... FOR UPDATE) so two
// concurrent updates of the same key never observe the same prior value.
type PostgresKVStore struct {
	pool      *pgxpool.Pool // for non-transactional reads and scans
	txManager pkgdb.TransactionManager
}

var _ kvstore.Store = (*PostgresKVStore)(nil)

// NewPostgresKVStore creates a new PostgreSQL-backed key-value store.
func NewPostgresKVStore(pool *pgxpool.Pool, txManager pkgdb.TransactionManager) *PostgresKVStore {
	return &PostgresKVStore{pool: pool, txManager: txManager}
}

// Get returns the value at key, or kvstore.ErrNotFound.
func (s *PostgresKVStore) Get(ctx context.Context, namespace string, key []byte) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_records
		WHERE namespace = $1 AND key = $2
	`

	var value []byte
	err := s.pool.QueryRow(ctx, query, namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

// Create installs produce()'s result if the key is absent. The producer is
// pure, so it runs before the insert and its result is discarded when the
// key turns out to be taken.
func (s *PostgresKVStore) Create(ctx context.Context, namespace string, key []byte, produce kvstore.ProduceFunc) error {
	value, err := produce()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO kv_records (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO NOTHING
	`

	result, err := s.pool.Exec(ctx, query, namespace, key, value)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return kvstore.ErrExists
	}
	return nil
}

// Update replaces the record at key with transform(existing) inside a
// transaction holding a row lock. A transform error rolls back the write
// and is returned unchanged.
func (s *PostgresKVStore) Update(ctx context.Context, namespace string, key []byte, transform kvstore.TransformFunc) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	selectQuery := `
		SELECT value
		FROM kv_records
		WHERE namespace = $1 AND key = $2
		FOR UPDATE
	`

	var existing []byte
	if scanErr := tx.QueryRow(ctx, selectQuery, namespace, key).Scan(&existing); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return kvstore.ErrNotFound
		}
		return fmt.Errorf("failed to lock record: %w", scanErr)
	}

	next, err := transform(existing)
	if err != nil {
		return err
	}

	updateQuery := `
		UPDATE kv_records
		SET value = $1, updated_at = NOW()
		WHERE namespace = $2 AND key = $3
	`

	if _, execErr := tx.Exec(ctx, updateQuery, next, namespace, key); execErr != nil {
		return fmt.Errorf("failed to update record: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return nil
}

// Keys returns up to limit keys in ascending byte order, strictly after
// startAfter when non-nil. bytea comparison in Postgres is bytewise, which
// matches the ordering contract.
func (s *PostgresKVStore) Keys(ctx context.Context, namespace string, startAfter []byte, limit int) ([][]byte, error) {
	query := `
		SELECT key
		FROM kv_records
		WHERE namespace = $1 AND ($2::bytea IS NULL OR key > $2)
		ORDER BY key ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, namespace, startAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	defer rows.Close()

	var keys [][]byte
	for rows.Next() {
		var key []byte
		if scanErr := rows.Scan(&key); scanErr != nil {
			return nil, fmt.Errorf("failed to scan key: %w", scanErr)
		}
		keys = append(keys, key)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", rowsErr)
	}
	return keys, nil
}
