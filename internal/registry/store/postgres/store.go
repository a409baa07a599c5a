// Package postgres is the durable registry store.
//
// Every registry transaction takes a transaction-scoped advisory lock before
// touching any ledger, which serializes writers across all processes sharing
// the database. Readers outside a transaction use the pool and see only
// committed rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/sentinel"
	txcontext "provenance/pkg/platform/tx"
)

// registryLockKey is the pg_advisory_xact_lock key every registry write
// transaction holds.
const registryLockKey int64 = 0x70726f76 // "prov"

const defaultTxTimeout = 5 * time.Second

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// PostgresStore persists registry ledgers in PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// New constructs a Postgres-backed registry store.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, timeout: defaultTxTimeout}
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

// RunInTx runs fn inside a database transaction holding the registry lock.
// The transaction travels in the ctx passed to fn.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin registry transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "acquire registry lock")
	}

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit registry transaction")
	}
	return nil
}

// translate maps driver errors onto storage sentinels.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return sentinel.ErrConflict
		case pqForeignKeyViolation:
			return sentinel.ErrNotFound
		case pqCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrCapacity, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) NextAssetID(ctx context.Context) (domain.AssetID, error) {
	var next int64
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT next_asset_id FROM registry_state WHERE id`).Scan(&next)
	if err != nil {
		return 0, translate(err, "read next asset id")
	}
	return domain.AssetID(next), nil
}

// CreateAsset writes four rows and must run inside RunInTx.
func (s *PostgresStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	ex := s.exec(ctx)
	id := int64(a.ID)
	_, err := ex.ExecContext(ctx, `
		INSERT INTO assets (asset_id, serial, auth_hash, creator, model, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, a.Serial, a.AuthHash.Bytes(), string(a.Creator), a.Model, a.Description, a.CreatedAt.UTC())
	if err != nil {
		return translate(err, "insert asset")
	}
	if _, err := ex.ExecContext(ctx, `INSERT INTO custodians (asset_id, owner) VALUES ($1, $2)`, id, string(a.Creator)); err != nil {
		return translate(err, "insert custodian")
	}
	if _, err := ex.ExecContext(ctx, `INSERT INTO provenance_counters (asset_id, event_count) VALUES ($1, 0)`, id); err != nil {
		return translate(err, "insert provenance counter")
	}
	if _, err := ex.ExecContext(ctx, `UPDATE registry_state SET next_asset_id = GREATEST(next_asset_id, $1 + 1) WHERE id`, id); err != nil {
		return translate(err, "advance asset id")
	}
	return nil
}

const assetColumns = `a.asset_id, a.serial, a.auth_hash, a.creator, a.model, a.description, a.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		id      int64
		hash    []byte
		creator string
		a       models.Asset
	)
	if err := row.Scan(&id, &a.Serial, &hash, &creator, &a.Model, &a.Description, &a.CreatedAt); err != nil {
		return nil, err
	}
	digest, err := domain.DigestFromBytes(hash)
	if err != nil {
		return nil, fmt.Errorf("stored auth_hash: %w", err)
	}
	a.ID = domain.AssetID(id)
	a.AuthHash = digest
	a.Creator = domain.Identity(creator)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *PostgresStore) FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets a WHERE a.asset_id = $1`, int64(id))
	a, err := scanAsset(row)
	if err != nil {
		return nil, translate(err, "find asset")
	}
	return a, nil
}

func (s *PostgresStore) FindOwner(ctx context.Context, id domain.AssetID) (domain.Identity, error) {
	var owner string
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT owner FROM custodians WHERE asset_id = $1`, int64(id)).Scan(&owner)
	if err != nil {
		return "", translate(err, "find owner")
	}
	return domain.Identity(owner), nil
}

func (s *PostgresStore) UpdateOwner(ctx context.Context, id domain.AssetID, owner domain.Identity) error {
	res, err := s.exec(ctx).ExecContext(ctx, `UPDATE custodians SET owner = $2 WHERE asset_id = $1`, int64(id), string(owner))
	if err != nil {
		return translate(err, "update owner")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "update owner")
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAssetsByOwner(ctx context.Context, owner domain.Identity) ([]*models.Asset, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		JOIN custodians c ON c.asset_id = a.asset_id
		WHERE c.owner = $1
		ORDER BY a.asset_id
	`, string(owner))
	if err != nil {
		return nil, translate(err, "list assets by owner")
	}
	defer rows.Close()

	out := []*models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, translate(err, "scan asset")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list assets by owner")
	}
	return out, nil
}
