package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/pkg/db/models"
	"github.com/learnchain/txwatcher/pkg/types"
)

const completionCollection = "completion_log"

// CompletionLog keeps an append-only audit trail of terminal watcher
// outcomes. The watch set itself never holds terminal entries, so this log
// is the only place an abandoned or unhandled transaction leaves a trace.
type CompletionLog struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewCompletionLog(cfg *config.DatabaseConfig) (*CompletionLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoURI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info().Msg("Connected to MongoDB")

	return &CompletionLog{
		client:   client,
		database: client.Database(cfg.MongoDatabase),
	}, nil
}

func (l *CompletionLog) Record(ctx context.Context, event *types.WatcherEvent) error {
	record := models.CompletionRecord{
		TxHash:      event.Transaction.TxHash,
		WatchID:     event.Transaction.ID,
		EntityType:  string(event.Transaction.EntityType),
		EntityID:    event.Transaction.EntityID,
		Status:      event.Status.String(),
		Attempts:    event.Attempts,
		Error:       event.Error,
		SubmittedAt: event.Transaction.SubmittedAt,
		RecordedAt:  event.OccurredAt,
	}
	_, err := l.database.Collection(completionCollection).InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to record completion for tx %s: %w", record.TxHash, err)
	}
	return nil
}

func (l *CompletionLog) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}
