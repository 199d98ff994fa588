package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/types"
)

// go test -run ^TestPostgresStoreRoundTrip$ github.com/learnchain/txwatcher/pkg/db -v -count=1
func TestPostgresStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("txwatcher"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := db.NewPostgresStore(connStr)
	require.NoError(t, err)

	submitted := time.Date(2025, 3, 10, 9, 15, 30, 0, time.UTC)
	snapshot := []types.PendingTransaction{
		sampleTx("module-101", submitted),
		sampleTx("module-102", submitted.Add(time.Minute)),
	}
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "module-101", loaded[0].ID)
	require.Equal(t, types.EntityModule, loaded[0].EntityType)
	require.Equal(t, "101", loaded[0].Context.ModuleCode)
	require.Equal(t, 5*time.Second, loaded[0].PollingInterval)
	require.WithinDuration(t, submitted, loaded[0].SubmittedAt, time.Second)

	// Snapshot save replaces the previous contents.
	require.NoError(t, store.Save(ctx, snapshot[1:]))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "module-102", loaded[0].ID)

	require.NoError(t, store.Save(ctx, nil))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)
}
