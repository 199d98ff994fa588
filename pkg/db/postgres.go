package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/learnchain/txwatcher/pkg/db/models"
	"github.com/learnchain/txwatcher/pkg/types"
)

const insertBatchSize = 100

// PostgresStore persists the watch set to a pending_txes table. Save rewrites
// the whole snapshot in one transaction; watch sets are small, so the
// simplicity wins over incremental updates.
type PostgresStore struct {
	client *gorm.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	client, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := client.AutoMigrate(&models.PendingTx{}); err != nil {
		return nil, fmt.Errorf("failed to migrate pending tx schema: %w", err)
	}
	return &PostgresStore{client: client}, nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]types.PendingTransaction, error) {
	var records []models.PendingTx
	result := s.client.WithContext(ctx).Order("submitted_at asc").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load pending txs: %w", result.Error)
	}
	txs := make([]types.PendingTransaction, 0, len(records))
	for _, record := range records {
		tx, err := recordToTx(record)
		if err != nil {
			log.Warn().Err(err).Str("Id", record.ID).
				Msg("[PostgresStore] [Load] skipping undecodable pending tx record")
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (s *PostgresStore) Save(ctx context.Context, snapshot []types.PendingTransaction) error {
	records := make([]models.PendingTx, 0, len(snapshot))
	for _, tx := range snapshot {
		record, err := txToRecord(tx)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	err := s.client.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if result := dbTx.Where("1 = 1").Delete(&models.PendingTx{}); result.Error != nil {
			return result.Error
		}
		if len(records) == 0 {
			return nil
		}
		if result := dbTx.CreateInBatches(&records, insertBatchSize); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save watch set snapshot: %w", err)
	}
	log.Debug().Int("TxCount", len(records)).Msg("[PostgresStore] [Save] persisted watch set snapshot")
	return nil
}

func txToRecord(tx types.PendingTransaction) (models.PendingTx, error) {
	context, err := json.Marshal(tx.Context)
	if err != nil {
		return models.PendingTx{}, fmt.Errorf("failed to marshal tx context for %s: %w", tx.ID, err)
	}
	return models.PendingTx{
		ID:                tx.ID,
		TxHash:            tx.TxHash,
		EntityType:        string(tx.EntityType),
		EntityID:          tx.EntityID,
		Context:           string(context),
		SubmittedAt:       tx.SubmittedAt.UTC().Truncate(time.Microsecond),
		PollingIntervalMs: tx.PollingInterval.Milliseconds(),
	}, nil
}

func recordToTx(record models.PendingTx) (types.PendingTransaction, error) {
	var txContext types.TxContext
	if record.Context != "" {
		if err := json.Unmarshal([]byte(record.Context), &txContext); err != nil {
			return types.PendingTransaction{}, fmt.Errorf("failed to unmarshal tx context for %s: %w", record.ID, err)
		}
	}
	return types.PendingTransaction{
		ID:              record.ID,
		TxHash:          record.TxHash,
		EntityType:      types.EntityType(record.EntityType),
		EntityID:        record.EntityID,
		Context:         txContext,
		SubmittedAt:     record.SubmittedAt,
		PollingInterval: time.Duration(record.PollingIntervalMs) * time.Millisecond,
	}, nil
}
