package analysis

import "time"

// Failure phases.
const (
	PhaseAIAttempt     = "ai_attempt"
	PhaseOrchestration = "orchestration"
	PhasePersist       = "persist"
)

// Failure represents a persisted failure entry for one analysis
type Failure struct {
	ID          int64     `json:"id"`
	AnalysisID  string    `json:"analysis_id"`
	Phase       string    `json:"phase,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
