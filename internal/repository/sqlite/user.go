package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// FindOrCreate inserts the user on first login and returns the stored row.
//
// ON CONFLICT(id) DO NOTHING:
// The subject from the identity provider is our primary key. If the row already
// exists we keep it exactly as it was (users are never updated in this app), so
// the INSERT simply becomes a no-op. We then SELECT to return the canonical row.
//
// A different subject with an email that already belongs to someone else trips
// the UNIQUE(email) constraint, which we surface as a Conflict.
func (db *DB) FindOrCreate(ctx context.Context, user *model.User) (*model.User, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		user.ID,
		user.Name,
		user.Email,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user email", user.Email)
		}
		return nil, fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}

	return db.GetUserByID(ctx, user.ID)
}

// GetUserByID retrieves a user by their subject ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, created_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}
