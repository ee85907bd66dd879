package rules

import (
	"fmt"
	"strings"
)

// Unknown is the category reported when no keyword matches.
const Unknown = "Unknown"

// MaxScore caps the risk score.
const MaxScore = 10

// Score weights.
const (
	highRiskWeight  = 2
	oneSidedWeight  = 3
	noProtectWeight = 2
)

// Generic flags, emitted in this order before any pattern flags.
const (
	FlagHighRisk     = "Contains high-risk terms"
	FlagOneSided     = "One-sided language detected"
	FlagNoProtective = "Missing protective language"
)

// Tier is the coarse risk band derived from a score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// TierFor maps a score to its band: low <= 3, medium 4-6, high > 6.
func TierFor(score int) Tier {
	switch {
	case score <= 3:
		return TierLow
	case score <= 6:
		return TierMedium
	default:
		return TierHigh
	}
}

// Result is the deterministic rule-based assessment of one clause.
type Result struct {
	ClauseType string   `json:"clause_type"`
	RiskScore  int      `json:"risk_score"`
	Flags      []string `json:"flags"`
	Summary    string   `json:"summary"`
}

// signals are the boolean conditions shared by scoring and flagging.
type signals struct {
	category       string
	highRiskTerms  int
	oneSidedCount  int
	protectiveHits int
}

// Analyze runs the rule engine over already validated text.
func Analyze(text string, lx *Lexicon) Result {
	lower := strings.ToLower(text)
	s := signals{
		category:       detectCategory(lower, lx),
		highRiskTerms:  countDistinct(lower, lx.HighRiskTerms),
		oneSidedCount:  countDistinct(lower, lx.OneSidedIndicators),
		protectiveHits: countDistinct(lower, lx.ProtectiveLanguage),
	}
	score := riskScore(s, lx)
	flags := flagsFor(lower, s, lx)
	return Result{
		ClauseType: s.category,
		RiskScore:  score,
		Flags:      flags,
		Summary:    summarize(s.category, score, flags),
	}
}

func detectCategory(lower string, lx *Lexicon) string {
	for _, c := range lx.Categories {
		if containsAny(lower, c.Keywords) {
			return c.Name
		}
	}
	return Unknown
}

func riskScore(s signals, lx *Lexicon) int {
	score := s.highRiskTerms * highRiskWeight
	if s.oneSidedCount > lx.OneSidedThreshold {
		score += oneSidedWeight
	}
	if s.protectiveHits == 0 {
		score += noProtectWeight
	}
	if s.category == Unknown {
		score += lx.UnknownPenalty
	}
	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

func flagsFor(lower string, s signals, lx *Lexicon) []string {
	flags := []string{}
	if s.highRiskTerms > 0 {
		flags = append(flags, FlagHighRisk)
	}
	if s.oneSidedCount > lx.OneSidedThreshold {
		flags = append(flags, FlagOneSided)
	}
	if s.protectiveHits == 0 {
		flags = append(flags, FlagNoProtective)
	}
	for _, p := range lx.PatternFlags {
		if containsAny(lower, p.Triggers) {
			flags = append(flags, p.Flag)
		}
	}
	return flags
}

func summarize(category string, score int, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clause type: %s. Risk score: %d/%d (%s risk).", category, score, MaxScore, TierFor(score))
	if len(flags) == 0 {
		b.WriteString(" No flags raised.")
	} else {
		fmt.Fprintf(&b, " Flags: %s.", strings.Join(flags, "; "))
	}
	return b.String()
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// countDistinct counts phrases present in lower; duplicates in the list count once.
func countDistinct(lower string, phrases []string) int {
	seen := make(map[string]bool, len(phrases))
	n := 0
	for _, p := range phrases {
		p = strings.ToLower(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}
