package ai

import "strings"

// RiskLevel as reported by the model.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// ParseRiskLevel maps free-form model output onto the enum.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium", "moderate":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// Result is the AI half of an analysis. When Error is set every other field
// holds its placeholder value.
type Result struct {
	ClauseType      string    `json:"clause_type"`
	KeyTerms        []string  `json:"key_terms"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations"`
	Error           string    `json:"error,omitempty"`
}

// Failed reports whether the result is degraded.
func (r Result) Failed() bool { return r.Error != "" }

const (
	summaryFailed        = "AI analysis failed; only the rule-based assessment is available."
	summaryNotConfigured = "AI analysis not configured; only the rule-based assessment is available."
)

// Degraded builds the placeholder result for a failed call.
func Degraded(err error) Result {
	r := placeholder(summaryFailed)
	r.Error = err.Error()
	return r
}

// NotConfigured is returned without calling out when no credential exists.
func NotConfigured() Result {
	r := placeholder(summaryNotConfigured)
	r.Error = (&Error{Kind: KindConfigurationAbsent, Err: ErrNotConfigured}).Error()
	return r
}

func placeholder(summary string) Result {
	return Result{
		ClauseType:      "Unknown",
		KeyTerms:        []string{},
		RiskLevel:       RiskUnknown,
		Summary:         summary,
		Recommendations: []string{},
	}
}
