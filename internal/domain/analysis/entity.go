package analysis

import (
	"time"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	"github.com/bryanwahyu/clause-review/internal/domain/rules"
)

// ID identifier type
type ID string

// InputMethod records how the clause text reached us.
type InputMethod string

const (
	InputFile InputMethod = "file"
	InputJSON InputMethod = "json"
	InputForm InputMethod = "form"
)

// Valid reports whether m is a known input method.
func (m InputMethod) Valid() bool {
	switch m {
	case InputFile, InputJSON, InputForm:
		return true
	}
	return false
}

// Record is the merged, immutable output of one clause submission.
type Record struct {
	ID          ID           `json:"id"`
	Profile     string       `json:"profile"`
	ClauseText  string       `json:"clause_text"`
	InputMethod InputMethod  `json:"input_method"`
	TextLength  int          `json:"text_length"`
	CreatedAt   time.Time    `json:"created_at"`
	Rule        rules.Result `json:"rule_result"`
	AI          ai.Result    `json:"ai_result"`
	AIAttempts  int          `json:"ai_attempts"`

	TotalDurationMS int64 `json:"total_duration_ms"`
	RuleDurationMS  int64 `json:"rule_duration_ms"`
	AIDurationMS    int64 `json:"ai_duration_ms"`
}
