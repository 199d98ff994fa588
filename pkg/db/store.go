package db

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/learnchain/txwatcher/pkg/types"
)

// Store is the durable home of the watch set. The watcher saves the full
// snapshot after every mutation and reloads it at startup, so the snapshot
// must always be reconstructible from its serialized form.
type Store interface {
	Load(ctx context.Context) ([]types.PendingTransaction, error)
	Save(ctx context.Context, snapshot []types.PendingTransaction) error
}

// MemoryStore keeps the serialized snapshot in memory. Used by tests and by
// runs configured without a database; entries do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]types.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshot) == 0 {
		return nil, nil
	}
	var txs []types.PendingTransaction
	if err := json.Unmarshal(s.snapshot, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *MemoryStore) Save(ctx context.Context, snapshot []types.PendingTransaction) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = payload
	return nil
}
