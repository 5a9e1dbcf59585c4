package repository

import (
	"context"

	"github.com/sakif/portfolio-tracker/internal/model"
)

type UserRepository interface {
	// FindOrCreate returns the stored user with user.ID, inserting it first
	// if it does not exist. Existing rows are never modified.
	FindOrCreate(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type HoldingRepository interface {
	// Create inserts a new holding and sets its ID. Returns a Conflict error
	// when the user already holds the symbol.
	Create(ctx context.Context, holding *model.Holding) error
	// UpsertBatch applies all holdings for userID in one transaction, keyed by
	// (user, symbol). Either every row is written or none is.
	UpsertBatch(ctx context.Context, userID string, holdings []model.Holding) error
	ListByUser(ctx context.Context, userID string) ([]model.Holding, error)
	// DeleteForUser removes the holding only if userID owns it and returns the
	// deleted row. A holding owned by someone else is reported as NotFound.
	DeleteForUser(ctx context.Context, userID string, id int64) (*model.Holding, error)
}
