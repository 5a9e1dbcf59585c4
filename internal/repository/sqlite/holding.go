package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.HoldingRepository = (*DB)(nil)

// Create inserts a new holding and fills in its ID and timestamps.
//
// The store assigns the numeric ID (INTEGER PRIMARY KEY AUTOINCREMENT), so we
// read it back from the sql.Result instead of generating one in Go.
func (db *DB) Create(ctx context.Context, holding *model.Holding) error {
	now := time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO holdings (user_id, symbol, quantity, purchase_price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		holding.UserID,
		holding.Symbol,
		holding.Quantity,
		holding.PurchasePrice,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("holding", holding.Symbol)
		}
		return fmt.Errorf("sqlite: creating holding %s: %w", holding.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading holding id: %w", err)
	}

	holding.ID = id
	holding.CreatedAt = now
	holding.UpdatedAt = now
	return nil
}

// UpsertBatch writes every holding inside a single transaction.
//
// TRANSACTIONS:
// db.conn.BeginTx returns a *sql.Tx. Every statement run through tx is part of the
// same unit of work: either Commit makes all of them visible, or Rollback throws all
// of them away. The deferred Rollback is a no-op after a successful Commit, so it is
// safe to always defer it.
//
// ON CONFLICT(user_id, symbol) DO UPDATE:
// An existing row for the symbol keeps its id and created_at (so list order is
// unchanged) and only has quantity, purchase_price and updated_at overwritten.
func (db *DB) UpsertBatch(ctx context.Context, userID string, holdings []model.Holding) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning holdings batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO holdings (user_id, symbol, quantity, purchase_price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			purchase_price = excluded.purchase_price,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: preparing holdings upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, h := range holdings {
		if _, err = stmt.ExecContext(ctx, userID, h.Symbol, h.Quantity, h.PurchasePrice, now, now); err != nil {
			return fmt.Errorf("sqlite: upserting holding %s: %w", h.Symbol, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing holdings batch: %w", err)
	}
	return nil
}

// ListByUser returns all holdings owned by userID in insertion order.
//
// defer rows.Close() is critical: sql.Rows holds a pooled connection until closed.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Holding, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, symbol, quantity, purchase_price, created_at, updated_at
		 FROM holdings
		 WHERE user_id = ?
		 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing holdings for %s: %w", userID, err)
	}
	defer rows.Close()

	holdings := make([]model.Holding, 0)
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.Symbol, &h.Quantity, &h.PurchasePrice,
			&h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning holding row: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating holdings: %w", err)
	}

	return holdings, nil
}

// DeleteForUser removes a holding owned by userID.
//
// OWNERSHIP IN THE WHERE CLAUSE:
// Filtering on both id AND user_id means a row owned by someone else simply does not
// match. The caller gets the same NotFound as for an id that never existed, so the API
// never reveals whether another user's holding exists.
//
// RETURNING gives us the deleted row in the same statement (SQLite 3.35+).
func (db *DB) DeleteForUser(ctx context.Context, userID string, id int64) (*model.Holding, error) {
	var h model.Holding

	err := db.conn.QueryRowContext(ctx,
		`DELETE FROM holdings
		 WHERE id = ? AND user_id = ?
		 RETURNING id, user_id, symbol, quantity, purchase_price`,
		id,
		userID,
	).Scan(&h.ID, &h.UserID, &h.Symbol, &h.Quantity, &h.PurchasePrice)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("holding", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: deleting holding %d: %w", id, err)
	}

	return &h, nil
}
