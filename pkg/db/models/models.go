package models

import (
	"time"
)

// PendingTx is the persisted form of one watch-set entry.
type PendingTx struct {
	ID                string    `gorm:"primaryKey;type:varchar(255)"`
	TxHash            string    `gorm:"type:varchar(255);index"`
	EntityType        string    `gorm:"type:varchar(64)"`
	EntityID          string    `gorm:"type:varchar(255)"`
	Context           string    `gorm:"type:text"` // JSON-encoded TxContext
	SubmittedAt       time.Time `gorm:"type:timestamp(6)"`
	PollingIntervalMs int64     `gorm:"default:0"`
	CreatedAt         time.Time `gorm:"type:timestamp(6);default:current_timestamp(6)"`
	UpdatedAt         time.Time `gorm:"type:timestamp(6);default:current_timestamp(6)"`
}

// CompletionRecord is an audit entry written when a watched transaction
// reaches a terminal state. Stored in Mongo, append only.
type CompletionRecord struct {
	TxHash      string    `bson:"tx_hash"`
	WatchID     string    `bson:"watch_id"`
	EntityType  string    `bson:"entity_type"`
	EntityID    string    `bson:"entity_id"`
	Status      string    `bson:"status"`
	Attempts    int       `bson:"attempts"`
	Error       string    `bson:"error,omitempty"`
	SubmittedAt time.Time `bson:"submitted_at"`
	RecordedAt  time.Time `bson:"recorded_at"`
}
