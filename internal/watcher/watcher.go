package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/clients/indexer"
	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/events"
	"github.com/learnchain/txwatcher/pkg/types"
)

// IndexerClient is the slice of the chain indexer the watcher needs.
type IndexerClient interface {
	GetTxConfirmations(ctx context.Context, txHashes []string) ([]indexer.TxConfirmation, error)
	GetTxEvents(ctx context.Context, txHash string) (*indexer.TxEvents, error)
}

// CompletionRecorder receives terminal outcomes for auditing. Optional.
type CompletionRecorder interface {
	Record(ctx context.Context, event *types.WatcherEvent) error
}

// Watcher owns the watch set of unconfirmed transactions. A sweep batches a
// confirmation lookup for every watched hash, dispatches completion handlers
// for the confirmed ones and retires each transaction exactly once: on
// handler success, on retry exhaustion, or on a missing handler.
type Watcher struct {
	mu       sync.Mutex
	watchSet []types.PendingTransaction
	retries  map[string]int

	sweepMu    sync.Mutex
	isChecking atomic.Bool

	indexerClient IndexerClient
	backendClient BackendClient
	dispatcher    *Dispatcher
	store         db.Store
	eventBus      *events.EventBus
	completionLog CompletionRecorder

	pollInterval time.Duration
	maxRetries   int
	tracer       trace.Tracer
}

func NewWatcher(cfg *config.WatcherConfig, indexerClient IndexerClient, backendClient BackendClient,
	dispatcher *Dispatcher, store db.Store, eventBus *events.EventBus, completionLog CompletionRecorder) *Watcher {
	return &Watcher{
		retries:       make(map[string]int),
		indexerClient: indexerClient,
		backendClient: backendClient,
		dispatcher:    dispatcher,
		store:         store,
		eventBus:      eventBus,
		completionLog: completionLog,
		pollInterval:  cfg.PollInterval(),
		maxRetries:    cfg.MaxRetries,
		tracer:        otel.Tracer("txwatcher"),
	}
}

// LoadWatchSet restores the persisted watch set. Called once at startup,
// before the scheduler starts.
func (w *Watcher) LoadWatchSet(ctx context.Context) error {
	txs, err := w.store.Load(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.watchSet = txs
	w.retries = make(map[string]int, len(txs))
	w.mu.Unlock()
	log.Info().Int("TxCount", len(txs)).Msg("[Watcher] [LoadWatchSet] restored watch set from store")
	return nil
}

// AddPendingTx enqueues a transaction for watching. A transaction whose id
// is already watched is skipped without touching its retry counter. Returns
// true if the transaction was added.
func (w *Watcher) AddPendingTx(tx types.PendingTransaction) bool {
	w.mu.Lock()
	for _, watched := range w.watchSet {
		if watched.ID == tx.ID {
			w.mu.Unlock()
			log.Debug().Str("Id", tx.ID).Msg("[Watcher] [AddPendingTx] tx already watched, skipping")
			return false
		}
	}
	w.watchSet = append(w.watchSet, tx)
	w.retries[tx.ID] = 0
	w.mu.Unlock()
	log.Info().
		Str("Id", tx.ID).
		Str("TxHash", tx.TxHash).
		Str("EntityType", string(tx.EntityType)).
		Msg("[Watcher] [AddPendingTx] watching new transaction")
	w.persist()
	return true
}

// RemovePendingTx drops a transaction and its retry counter. Removing an
// unknown id is a no-op.
func (w *Watcher) RemovePendingTx(id string) {
	w.mu.Lock()
	removed := false
	for i, watched := range w.watchSet {
		if watched.ID == id {
			w.watchSet = append(w.watchSet[:i], w.watchSet[i+1:]...)
			removed = true
			break
		}
	}
	delete(w.retries, id)
	w.mu.Unlock()
	if removed {
		log.Debug().Str("Id", id).Msg("[Watcher] [RemovePendingTx] removed transaction from watch set")
		w.persist()
	}
}

// Snapshot returns a copy of the current watch set.
func (w *Watcher) Snapshot() []types.PendingTransaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	snapshot := make([]types.PendingTransaction, len(w.watchSet))
	copy(snapshot, w.watchSet)
	return snapshot
}

func (w *Watcher) WatchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watchSet)
}

func (w *Watcher) IsChecking() bool {
	return w.isChecking.Load()
}

// EffectiveInterval is the minimum of the global poll interval and every
// per-transaction override currently in the watch set.
func (w *Watcher) EffectiveInterval() time.Duration {
	interval := w.pollInterval
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, tx := range w.watchSet {
		if tx.PollingInterval > 0 && tx.PollingInterval < interval {
			interval = tx.PollingInterval
		}
	}
	return interval
}

// CheckNow runs one confirmation sweep and returns when it completes. All
// failures are handled inside the sweep; CheckNow itself never fails.
// Sweeps are serialized, a concurrent call waits for the running sweep.
func (w *Watcher) CheckNow(ctx context.Context) {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()
	w.isChecking.Store(true)
	defer w.isChecking.Store(false)

	snapshot := w.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	if !w.backendClient.IsAuthenticated() {
		log.Debug().Msg("[Watcher] [CheckNow] backend client unauthenticated, skipping sweep")
		return
	}

	ctx, span := w.tracer.Start(ctx, "watcher.sweep",
		trace.WithAttributes(attribute.Int("watch_set.size", len(snapshot))))
	defer span.End()

	txHashes := make([]string, len(snapshot))
	for i, tx := range snapshot {
		txHashes[i] = tx.TxHash
	}
	confirmations, err := w.indexerClient.GetTxConfirmations(ctx, txHashes)
	if err != nil {
		// Transient indexer failure: no per-transaction penalty, the next
		// scheduled sweep retries the whole batch.
		log.Warn().Err(err).Msg("[Watcher] [CheckNow] batch confirmation check failed, aborting sweep")
		return
	}

	confirmed := 0
	for i, confirmation := range confirmations {
		if !confirmation.Confirmed {
			continue
		}
		confirmed++
		w.processConfirmedTx(ctx, snapshot[i])
	}
	span.SetAttributes(attribute.Int("watch_set.confirmed", confirmed))
	log.Debug().
		Int("TxCount", len(snapshot)).
		Int("Confirmed", confirmed).
		Msg("[Watcher] [CheckNow] sweep finished")
}

// processConfirmedTx fetches the on-chain effects of one confirmed
// transaction and runs its completion handler. Failures here are isolated:
// they count toward this transaction's retry ceiling and never affect the
// rest of the sweep.
func (w *Watcher) processConfirmedTx(ctx context.Context, tx types.PendingTransaction) {
	// The tx may have been removed through the API while this sweep was
	// already running with an older snapshot.
	if !w.isWatched(tx.ID) {
		return
	}
	txEvents, err := w.indexerClient.GetTxEvents(ctx, tx.TxHash)
	if err == nil {
		err = w.dispatcher.Dispatch(ctx, tx, txEvents)
	}

	if err == nil {
		attempts := w.retryCount(tx.ID) + 1
		w.RemovePendingTx(tx.ID)
		w.emit(ctx, types.StatusCompleted, tx, attempts, nil)
		log.Info().
			Str("Id", tx.ID).
			Str("TxHash", tx.TxHash).
			Msg("[Watcher] [processConfirmedTx] completion handler succeeded, transaction retired")
		return
	}

	if errors.Is(err, ErrNoHandler) {
		w.RemovePendingTx(tx.ID)
		w.emit(ctx, types.StatusUnhandled, tx, 0, err)
		log.Warn().
			Str("Id", tx.ID).
			Str("EntityType", string(tx.EntityType)).
			Msg("[Watcher] [processConfirmedTx] no handler for entity type, transaction retired as unhandled")
		return
	}

	attempts := w.incrementRetry(tx.ID)
	if attempts >= w.maxRetries {
		w.RemovePendingTx(tx.ID)
		w.emit(ctx, types.StatusAbandoned, tx, attempts, err)
		log.Error().Err(err).
			Str("Id", tx.ID).
			Int("Attempts", attempts).
			Msg("[Watcher] [processConfirmedTx] retry ceiling reached, abandoning transaction")
		return
	}
	log.Warn().Err(err).
		Str("Id", tx.ID).
		Int("Attempts", attempts).
		Int("MaxRetries", w.maxRetries).
		Msg("[Watcher] [processConfirmedTx] completion handler failed, will retry next sweep")
}

func (w *Watcher) isWatched(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, watched := range w.watchSet {
		if watched.ID == id {
			return true
		}
	}
	return false
}

func (w *Watcher) retryCount(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retries[id]
}

func (w *Watcher) incrementRetry(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.retries[id]++
	return w.retries[id]
}

func (w *Watcher) emit(ctx context.Context, status types.TxStatus, tx types.PendingTransaction, attempts int, cause error) {
	event := &types.WatcherEvent{
		ID:          uuid.NewString(),
		Status:      status,
		Transaction: tx,
		Attempts:    attempts,
		OccurredAt:  time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if w.eventBus != nil {
		w.eventBus.BroadcastEvent(event)
	}
	if w.completionLog != nil {
		if err := w.completionLog.Record(ctx, event); err != nil {
			log.Warn().Err(err).Str("TxHash", tx.TxHash).
				Msg("[Watcher] [emit] failed to record completion audit entry")
		}
	}
}

// persist writes the watch set snapshot after a mutation. Persistence
// failures are logged and do not fail the mutation; the next mutation
// retries the whole snapshot.
func (w *Watcher) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.store.Save(ctx, w.Snapshot()); err != nil {
		log.Error().Err(err).Msg("[Watcher] [persist] failed to persist watch set snapshot")
	}
}
