package watcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/learnchain/txwatcher/internal/watcher"
	"github.com/learnchain/txwatcher/pkg/clients/backend"
	"github.com/learnchain/txwatcher/pkg/clients/indexer"
	"github.com/learnchain/txwatcher/pkg/types"
)

func TestNewDispatcherRequiresFullCoverage(t *testing.T) {
	fb := newFakeBackend()

	_, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	_, err = watcher.NewDispatcher(fb, watcher.WithHandler(types.EntityTask, nil))
	require.ErrorContains(t, err, "missing completion handler")

	_, err = watcher.NewDispatcher(fb, watcher.AllowPartial(), watcher.WithHandler(types.EntityTask, nil))
	require.NoError(t, err)
}

func TestDispatchUnknownEntityType(t *testing.T) {
	fb := newFakeBackend()
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	tx := types.PendingTransaction{ID: "x", TxHash: "abc", EntityType: types.EntityType("badge")}
	err = dispatcher.Dispatch(context.Background(), tx, &indexer.TxEvents{})
	require.ErrorIs(t, err, watcher.ErrNoHandler)
}

func TestModuleHandlerRequiresModuleCode(t *testing.T) {
	fb := newFakeBackend()
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	tx := moduleTx("module-101", "abc")
	tx.Context.ModuleCode = ""
	err = dispatcher.Dispatch(context.Background(), tx, &indexer.TxEvents{
		Mints: []indexer.MintedAsset{{PolicyID: "p1", AssetName: "modhash123"}},
	})
	require.ErrorContains(t, err, "missing moduleCode")
	require.Zero(t, fb.requestCount())
}

func TestModuleHandlerRequiresMintUnderCoursePolicy(t *testing.T) {
	fb := newFakeBackend()
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	tx := moduleTx("module-101", "abc")
	err = dispatcher.Dispatch(context.Background(), tx, &indexer.TxEvents{
		Mints: []indexer.MintedAsset{{PolicyID: "other-policy", AssetName: "modhash123"}},
	})
	require.ErrorContains(t, err, "no mint found under policy p1")
	require.Zero(t, fb.requestCount())
}

func TestAccessTokenHandlerRegistersMintedToken(t *testing.T) {
	fb := newFakeBackend()
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	tx := types.PendingTransaction{
		ID:         "access-token-alice",
		TxHash:     "def",
		EntityType: types.EntityAccessToken,
		EntityID:   "alice",
		Context:    types.TxContext{Alias: "alice", PolicyID: "pol-7"},
	}
	err = dispatcher.Dispatch(context.Background(), tx, &indexer.TxEvents{
		Mints: []indexer.MintedAsset{{PolicyID: "pol-7", AssetName: "222alice"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, fb.requestCount())
	request := fb.requests[0]
	require.Equal(t, backend.TxTypeAccessTokenMint, request.TxType)
	require.Equal(t, "alice", request.Metadata["alias"])
	require.Equal(t, "222alice", request.Metadata["tokenName"])
}

func TestCommitmentHandlersRequireAlias(t *testing.T) {
	fb := newFakeBackend()
	dispatcher, err := watcher.NewDispatcher(fb)
	require.NoError(t, err)

	for _, entityType := range []types.EntityType{
		types.EntityAssignment,
		types.EntityTask,
		types.EntityAssignmentCommitment,
		types.EntityTaskCommitment,
	} {
		tx := types.PendingTransaction{
			ID:         "no-alias",
			TxHash:     "abc",
			EntityType: entityType,
			EntityID:   "e1",
		}
		err := dispatcher.Dispatch(context.Background(), tx, &indexer.TxEvents{})
		require.ErrorContains(t, err, "missing alias", "entity type %s", entityType)
	}
	require.Zero(t, fb.requestCount())
}
