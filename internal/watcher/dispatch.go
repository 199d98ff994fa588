package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnchain/txwatcher/pkg/clients/backend"
	"github.com/learnchain/txwatcher/pkg/clients/indexer"
	"github.com/learnchain/txwatcher/pkg/types"
)

// ErrNoHandler marks a confirmed transaction whose entity type has no
// completion handler. The watcher treats it as a first-class terminal
// outcome, not as a retryable failure.
var ErrNoHandler = errors.New("no completion handler for entity type")

// CompletionHandler finalizes one entity's server-side state after its
// transaction confirmed. Handlers must be idempotent: the watcher may call
// them again on a later sweep if the previous attempt failed.
type CompletionHandler func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error

// BackendClient is the slice of the registration API the handlers need.
type BackendClient interface {
	IsAuthenticated() bool
	RegisterTx(ctx context.Context, request *backend.RegisterTxRequest) (*backend.RegisterTxResult, error)
}

// Dispatcher routes a confirmed transaction to the handler for its entity
// type. The handler table is closed: NewDispatcher refuses a table that does
// not cover every declared entity type, so a new kind cannot ship without a
// handler unless the caller opts into a partial table explicitly.
type Dispatcher struct {
	handlers     map[types.EntityType]CompletionHandler
	allowPartial bool
}

type DispatcherOption func(*Dispatcher)

// AllowPartial permits construction with missing handlers. Confirmed
// transactions of an uncovered type terminate with StatusUnhandled.
func AllowPartial() DispatcherOption {
	return func(d *Dispatcher) {
		d.allowPartial = true
	}
}

// WithHandler overrides the handler for one entity type. Used by tests and
// by deployments that finalize an entity through a different endpoint.
func WithHandler(entityType types.EntityType, handler CompletionHandler) DispatcherOption {
	return func(d *Dispatcher) {
		if handler == nil {
			delete(d.handlers, entityType)
		} else {
			d.handlers[entityType] = handler
		}
	}
}

func NewDispatcher(backendClient BackendClient, opts ...DispatcherOption) (*Dispatcher, error) {
	handlers := defaultHandlers(backendClient)
	dispatcher := &Dispatcher{handlers: handlers}
	for _, opt := range opts {
		opt(dispatcher)
	}
	if !dispatcher.allowPartial {
		for _, entityType := range types.AllEntityTypes() {
			if _, ok := dispatcher.handlers[entityType]; !ok {
				return nil, fmt.Errorf("missing completion handler for entity type %s", entityType)
			}
		}
	}
	return dispatcher, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
	handler, ok := d.handlers[tx.EntityType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, tx.EntityType)
	}
	return handler(ctx, tx, events)
}

func defaultHandlers(client BackendClient) map[types.EntityType]CompletionHandler {
	return map[types.EntityType]CompletionHandler{
		types.EntityModule:               handleModuleMint(client),
		types.EntityAssignment:           handleAssignmentSubmission(client),
		types.EntityTask:                 handleTaskCompletion(client),
		types.EntityAssignmentCommitment: handleAssignmentCommitment(client),
		types.EntityTaskCommitment:       handleTaskCommitment(client),
		types.EntityCourse:               handleCourseMint(client),
		types.EntityProject:              handleProjectMint(client),
		types.EntityAccessToken:          handleAccessTokenMint(client),
	}
}

// findMint picks the minted asset the handler cares about: the one under the
// given policy id, or the transaction's only mint when no policy is known.
func findMint(events *indexer.TxEvents, policyID string) (*indexer.MintedAsset, error) {
	if events == nil || len(events.Mints) == 0 {
		return nil, fmt.Errorf("transaction has no mints")
	}
	if policyID == "" {
		return &events.Mints[0], nil
	}
	for i := range events.Mints {
		if events.Mints[i].PolicyID == policyID {
			return &events.Mints[i], nil
		}
	}
	return nil, fmt.Errorf("no mint found under policy %s", policyID)
}

func handleModuleMint(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.ModuleCode == "" {
			return fmt.Errorf("module tx %s is missing moduleCode in context", tx.ID)
		}
		mint, err := findMint(events, tx.Context.CourseNftPolicy)
		if err != nil {
			return fmt.Errorf("module tx %s: %w", tx.ID, err)
		}
		_, err = client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeModuleMint,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"courseId":   tx.Context.CourseID,
				"moduleCode": tx.Context.ModuleCode,
				"moduleHash": mint.AssetName,
			},
		})
		return err
	}
}

func handleAssignmentSubmission(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.Alias == "" {
			return fmt.Errorf("assignment tx %s is missing alias in context", tx.ID)
		}
		_, err := client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeAssignmentSubmission,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"courseId":       tx.Context.CourseID,
				"moduleCode":     tx.Context.ModuleCode,
				"assignmentCode": tx.Context.AssignmentCode,
				"alias":          tx.Context.Alias,
			},
		})
		return err
	}
}

func handleTaskCompletion(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.Alias == "" {
			return fmt.Errorf("task tx %s is missing alias in context", tx.ID)
		}
		_, err := client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeTaskCompletion,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"projectId": tx.Context.ProjectID,
				"taskCode":  tx.Context.TaskCode,
				"alias":     tx.Context.Alias,
			},
		})
		return err
	}
}

func handleAssignmentCommitment(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.Alias == "" {
			return fmt.Errorf("assignment commitment tx %s is missing alias in context", tx.ID)
		}
		_, err := client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeAssignmentCommitment,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"courseId":       tx.Context.CourseID,
				"assignmentCode": tx.Context.AssignmentCode,
				"alias":          tx.Context.Alias,
			},
		})
		return err
	}
}

func handleTaskCommitment(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.Alias == "" {
			return fmt.Errorf("task commitment tx %s is missing alias in context", tx.ID)
		}
		_, err := client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeTaskCommitment,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"projectId": tx.Context.ProjectID,
				"taskCode":  tx.Context.TaskCode,
				"alias":     tx.Context.Alias,
			},
		})
		return err
	}
}

func handleCourseMint(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		mint, err := findMint(events, tx.Context.CourseNftPolicy)
		if err != nil {
			return fmt.Errorf("course tx %s: %w", tx.ID, err)
		}
		_, err = client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeCourseMint,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"policyId":  mint.PolicyID,
				"assetName": mint.AssetName,
				"title":     tx.Context.Title,
			},
		})
		return err
	}
}

func handleProjectMint(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		mint, err := findMint(events, tx.Context.ProjectNftPolicy)
		if err != nil {
			return fmt.Errorf("project tx %s: %w", tx.ID, err)
		}
		_, err = client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeProjectMint,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"policyId":  mint.PolicyID,
				"assetName": mint.AssetName,
				"title":     tx.Context.Title,
			},
		})
		return err
	}
}

func handleAccessTokenMint(client BackendClient) CompletionHandler {
	return func(ctx context.Context, tx types.PendingTransaction, events *indexer.TxEvents) error {
		if tx.Context.Alias == "" {
			return fmt.Errorf("access token tx %s is missing alias in context", tx.ID)
		}
		mint, err := findMint(events, tx.Context.PolicyID)
		if err != nil {
			return fmt.Errorf("access token tx %s: %w", tx.ID, err)
		}
		_, err = client.RegisterTx(ctx, &backend.RegisterTxRequest{
			TxHash:     tx.TxHash,
			TxType:     backend.TxTypeAccessTokenMint,
			InstanceID: tx.EntityID,
			Metadata: map[string]string{
				"alias":     tx.Context.Alias,
				"policyId":  mint.PolicyID,
				"tokenName": mint.AssetName,
			},
		})
		return err
	}
}
