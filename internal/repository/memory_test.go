package repository

import (
	"context"
	"errors"
	"testing"

	"plant_inspection/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) domain.Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreCommitHookFailureDiscardsChanges(t *testing.T) {
	store := NewMemoryStore()
	f := seedFixture(t, store)
	store.beforeCommit = func(memoryState) error { return errors.New("disk full") }

	in := newInspection(f, f.createdAt)
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Inspections().Create(ctx, in)
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	store.beforeCommit = nil
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		exists, err := tx.Inspections().ExistsByID(ctx, in.ID)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	}))
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMemoryStore().WithinTx(ctx, func(context.Context, domain.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	store, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = Open(context.Background(), Options{Driver: "mongo"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Options{Driver: DriverPostgres})
	assert.Error(t, err)
}
