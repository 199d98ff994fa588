package types

import (
	"time"
)

// EntityType identifies which domain object a watched transaction will
// finalize once the chain confirms it.
type EntityType string

const (
	EntityModule               EntityType = "module"
	EntityAssignment           EntityType = "assignment"
	EntityTask                 EntityType = "task"
	EntityAssignmentCommitment EntityType = "assignment-commitment"
	EntityTaskCommitment       EntityType = "task-commitment"
	EntityCourse               EntityType = "course"
	EntityProject              EntityType = "project"
	EntityAccessToken          EntityType = "access-token"
)

// AllEntityTypes is the closed set of entity kinds. The dispatcher checks its
// handler table against this list, so adding a kind here forces an update at
// the dispatch site.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityModule,
		EntityAssignment,
		EntityTask,
		EntityAssignmentCommitment,
		EntityTaskCommitment,
		EntityCourse,
		EntityProject,
		EntityAccessToken,
	}
}

func (e EntityType) IsValid() bool {
	for _, t := range AllEntityTypes() {
		if t == e {
			return true
		}
	}
	return false
}

// TxContext carries the per-entity metadata a completion handler needs.
// Which fields are required depends on the entity type; handlers validate
// their own slice of it.
type TxContext struct {
	CourseID         string `json:"courseId,omitempty"`
	CourseNftPolicy  string `json:"courseNftPolicyId,omitempty"`
	ProjectID        string `json:"projectId,omitempty"`
	ProjectNftPolicy string `json:"projectNftPolicyId,omitempty"`
	ModuleCode       string `json:"moduleCode,omitempty"`
	AssignmentCode   string `json:"assignmentCode,omitempty"`
	TaskCode         string `json:"taskCode,omitempty"`
	Alias            string `json:"alias,omitempty"`
	Title            string `json:"title,omitempty"`
	PolicyID         string `json:"policyId,omitempty"`
	TokenName        string `json:"tokenName,omitempty"`
}

// PendingTransaction is one entry of the watch set: a submitted, not yet
// confirmed transaction together with everything needed to finalize the
// affected entity on the backend once the indexer reports confirmation.
type PendingTransaction struct {
	ID              string        `json:"id" validate:"required"`
	TxHash          string        `json:"txHash" validate:"required"`
	EntityType      EntityType    `json:"entityType" validate:"required"`
	EntityID        string        `json:"entityId" validate:"required"`
	Context         TxContext     `json:"context"`
	SubmittedAt     time.Time     `json:"submittedAt"`
	PollingInterval time.Duration `json:"pollingInterval,omitempty"`
}

type TxStatus int

const (
	StatusPending TxStatus = iota
	StatusProcessing
	StatusCompleted
	StatusAbandoned
	StatusUnhandled
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusAbandoned:
		return "abandoned"
	case StatusUnhandled:
		return "unhandled"
	default:
		return "unknown"
	}
}

// WatcherEvent is emitted on the event bus whenever a watched transaction
// reaches a terminal state.
type WatcherEvent struct {
	ID          string // envelope id, unique per emission
	Status      TxStatus
	Transaction PendingTransaction
	Attempts    int    // handler attempts consumed, including the final one
	Error       string // last handler error for StatusAbandoned, empty otherwise
	OccurredAt  time.Time
}
