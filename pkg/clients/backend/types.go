package backend

// TxType tags a registration request so the backend knows which state
// transition to apply.
type TxType string

const (
	TxTypeModuleMint           TxType = "module-mint"
	TxTypeAssignmentSubmission TxType = "assignment-submission"
	TxTypeTaskCompletion       TxType = "task-completion"
	TxTypeAssignmentCommitment TxType = "assignment-commitment"
	TxTypeTaskCommitment       TxType = "task-commitment"
	TxTypeCourseMint           TxType = "course-mint"
	TxTypeProjectMint          TxType = "project-mint"
	TxTypeAccessTokenMint      TxType = "access-token-mint"
)

// RegisterTxRequest carries a confirmed transaction to the backend. The
// backend applies the transition exactly once per hash, so re-sending the
// same request is safe.
type RegisterTxRequest struct {
	TxHash     string            `json:"txHash"`
	TxType     TxType            `json:"txType"`
	InstanceID string            `json:"instanceId"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type RegisterTxResult struct {
	TxHash string `json:"txHash"`
	State  string `json:"state"`
}
