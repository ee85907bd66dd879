package analysis

import "time"

// State of an asynchronous analysis.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is the progress view of an asynchronous analysis.
type Status struct {
	AnalysisID ID        `json:"analysis_id"`
	State      State     `json:"state"`
	Progress   int       `json:"progress"`
	Stage      string    `json:"stage"`
	Result     *Record   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// PersistError is set when the completed record could not be saved.
	PersistError string `json:"persist_error,omitempty"`
}
