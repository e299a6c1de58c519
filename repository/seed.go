package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"inphora/database"
	"inphora/models"
)

// EnsureAdminUser creates the bootstrap admin account when no user holds
// the address yet. The existence check and the insert share a transaction
// so concurrent instances starting against the same database cannot both
// create the account. Returns true when the user was created.
func EnsureAdminUser(ctx context.Context, db *database.DB, admin *models.User) (bool, error) {
	created := false
	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		repo := newUserRepositoryWithTx(tx)

		existing, err := repo.GetByEmail(ctx, admin.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		if err := repo.Create(ctx, admin); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
