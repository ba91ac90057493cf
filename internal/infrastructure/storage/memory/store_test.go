package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/core/apperror"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
)

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Materials()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, material.NewMaterial("A", "A", "kg")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByCode(ctx, "A")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRunInTransaction_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Materials()

	assert.Panics(t, func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			_ = repo.Create(ctx, material.NewMaterial("A", "A", "kg"))
			panic("boom")
		})
	})

	_, err := repo.GetByCode(ctx, "A")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRunInSavepoint(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Materials()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, material.NewMaterial("KEEP", "Keep", "kg")))

		spErr := s.RunInSavepoint(ctx, func(ctx context.Context) error {
			require.NoError(t, repo.Create(ctx, material.NewMaterial("DROP", "Drop", "kg")))
			return errors.New("undo")
		})
		assert.Error(t, spErr)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.GetByCode(ctx, "KEEP")
	assert.NoError(t, err)
	_, err = repo.GetByCode(ctx, "DROP")
	assert.True(t, apperror.IsNotFound(err))
}

func TestMaterialRepo_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := New().Materials()

	require.NoError(t, repo.Create(ctx, material.NewMaterial("A", "A", "kg")))
	err := repo.Create(ctx, material.NewMaterial("A", "Other", "kg"))
	assert.True(t, apperror.IsAppError(err))
}

func TestMaterialRepo_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := New().Materials()
	m := material.NewMaterial("A", "A", "kg")
	require.NoError(t, repo.Create(ctx, m))

	require.NoError(t, repo.UpdateStock(ctx, m.ID, types.MustQuantity("3")))
	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Version+1, got.Version)
	assert.Equal(t, types.MustQuantity("3"), got.StockQty)
}
