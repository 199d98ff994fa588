package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/types"
)

func sampleTx(id string, submittedAt time.Time) types.PendingTransaction {
	return types.PendingTransaction{
		ID:         id,
		TxHash:     "abc123",
		EntityType: types.EntityModule,
		EntityID:   "101",
		Context: types.TxContext{
			CourseID:        "course-1",
			CourseNftPolicy: "p1",
			ModuleCode:      "101",
		},
		SubmittedAt:     submittedAt,
		PollingInterval: 5 * time.Second,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)

	submitted := time.Date(2025, 3, 10, 9, 15, 30, 0, time.UTC)
	snapshot := []types.PendingTransaction{sampleTx("module-101", submitted)}
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "module-101", loaded[0].ID)
	require.Equal(t, types.EntityModule, loaded[0].EntityType)
	require.Equal(t, "p1", loaded[0].Context.CourseNftPolicy)
	require.Equal(t, 5*time.Second, loaded[0].PollingInterval)
	// Dates round-trip through string serialization.
	require.WithinDuration(t, submitted, loaded[0].SubmittedAt, time.Second)
}

func TestMemoryStoreSaveOverwritesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	now := time.Now().UTC()
	require.NoError(t, store.Save(ctx, []types.PendingTransaction{
		sampleTx("module-101", now),
		sampleTx("module-102", now),
	}))
	require.NoError(t, store.Save(ctx, []types.PendingTransaction{
		sampleTx("module-102", now),
	}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "module-102", loaded[0].ID)
}
