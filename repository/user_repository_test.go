package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphora/models"
	"inphora/repository/testutil"
)

func TestEnsureAdminUser(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser("admin@example.com", models.RoleAdmin)

	created, err := EnsureAdminUser(ctx, testDB.DB, admin)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, admin.ID)

	t.Run("second run is a no-op", func(t *testing.T) {
		again := testutil.CreateTestUser("admin@example.com", models.RoleAdmin)
		created, err := EnsureAdminUser(ctx, testDB.DB, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Zero(t, again.ID)
	})

	t.Run("seeded account is readable", func(t *testing.T) {
		got, err := NewUserRepository(testDB.DB).GetByEmail(ctx, "admin@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.RoleAdmin, got.Role)
		assert.True(t, got.IsActive)
	})
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	boom := errors.New("insert refused")
	err := testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		user := testutil.CreateTestUser("rollback@example.com", models.RoleViewer)
		if err := newUserRepositoryWithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := NewUserRepository(testDB.DB).GetByEmail(ctx, "rollback@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}
