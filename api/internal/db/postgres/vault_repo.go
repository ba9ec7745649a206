package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS vault_records (
		lookup_key TEXT PRIMARY KEY,
		record_id  UUID NOT NULL,
		salt       BYTEA NOT NULL,
		totp       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type vaultRow struct {
	LookupKey string    `db:"lookup_key"`
	RecordID  uuid.UUID `db:"record_id"`
	Salt      []byte    `db:"salt"`
	Totp      []byte    `db:"totp"`
	CreatedAt time.Time `db:"created_at"`
}

func (r vaultRow) record() domain.VaultRecord {
	return domain.VaultRecord{ID: r.RecordID, Salt: r.Salt, RecoverySecret: r.Totp, CreatedAt: r.CreatedAt}
}

func newRow(lookupID string, rec domain.VaultRecord) vaultRow {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return vaultRow{LookupKey: lookupID, RecordID: rec.ID, Salt: rec.Salt, Totp: rec.RecoverySecret, CreatedAt: created}
}

// VaultRepository stores the vault in Postgres.
// Point lookups go through the pgx pool; whole-state updates run as one sqlx transaction.
type VaultRepository struct {
	pool   *pgxpool.Pool
	db     *sqlx.DB
	logger *slog.Logger
}

// NewVaultRepository wraps pool and makes sure the vault table exists.
func NewVaultRepository(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*VaultRepository, error) {
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ensure vault schema: %w", err)
	}
	return &VaultRepository{pool: pool, db: db, logger: logger}, nil
}

func (r *VaultRepository) Load(ctx context.Context) (domain.VaultState, error) {
	var rows []vaultRow
	query := `SELECT lookup_key, record_id, salt, totp, created_at FROM vault_records`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("postgres: load vault: %w", err)
	}
	return toState(rows), nil
}

func (r *VaultRepository) Lookup(ctx context.Context, lookupKey []byte) (domain.VaultRecord, error) {
	query := `SELECT record_id, salt, totp, created_at FROM vault_records WHERE lookup_key = $1`

	var rec domain.VaultRecord
	err := r.pool.QueryRow(ctx, query, domain.LookupID(lookupKey)).
		Scan(&rec.ID, &rec.Salt, &rec.RecoverySecret, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VaultRecord{}, domain.ErrNotFound
		}
		return domain.VaultRecord{}, fmt.Errorf("postgres: lookup: %w", err)
	}
	return rec, nil
}

// UpdateAtomically locks the table against other writers for the duration of the
// transaction, applies fn to a copy of the current rows, and writes back only the diff.
func (r *VaultRepository) UpdateAtomically(ctx context.Context, fn domain.VaultMutation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE vault_records IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("postgres: lock vault: %w", err)
	}

	var rows []vaultRow
	if err := tx.SelectContext(ctx, &rows, `SELECT lookup_key, record_id, salt, totp, created_at FROM vault_records`); err != nil {
		return fmt.Errorf("postgres: read vault: %w", err)
	}

	current := toState(rows)
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}

	upserts, deletes := diffState(current, next)
	for _, row := range upserts {
		query := `
			INSERT INTO vault_records (lookup_key, record_id, salt, totp, created_at)
			VALUES (:lookup_key, :record_id, :salt, :totp, :created_at)
			ON CONFLICT (lookup_key) DO UPDATE
			SET record_id = EXCLUDED.record_id, salt = EXCLUDED.salt,
			    totp = EXCLUDED.totp, created_at = EXCLUDED.created_at
		`
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("postgres: upsert record: %w", err)
		}
	}
	for _, key := range deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vault_records WHERE lookup_key = $1`, key); err != nil {
			return fmt.Errorf("postgres: delete record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	r.logger.Debug("vault updated", slog.Int("upserts", len(upserts)), slog.Int("deletes", len(deletes)))
	return nil
}

func (r *VaultRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *VaultRepository) Close() error {
	err := r.db.Close()
	r.pool.Close()
	return err
}

func toState(rows []vaultRow) domain.VaultState {
	state := make(domain.VaultState, len(rows))
	for _, row := range rows {
		state[row.LookupKey] = row.record()
	}
	return state
}

// diffState lists the rows that must be written and the keys that must be removed
// to turn current into next.
func diffState(current, next domain.VaultState) (upserts []vaultRow, deletes []string) {
	for key, rec := range next {
		if old, ok := current[key]; ok && old.Equal(rec) {
			continue
		}
		upserts = append(upserts, newRow(key, rec))
	}
	for key := range current {
		if _, ok := next[key]; !ok {
			deletes = append(deletes, key)
		}
	}
	return upserts, deletes
}
