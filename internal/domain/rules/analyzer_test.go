package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeGenericClause(t *testing.T) {
	text := "The Supplier shall have unlimited liability and must indemnify the Customer, and will defend all claims."
	res := Analyze(text, Generic())

	assert.Equal(t, "Limitation of Liability", res.ClauseType)
	assert.Equal(t, 7, res.RiskScore)
	assert.Equal(t, []string{FlagHighRisk, FlagOneSided, FlagNoProtective}, res.Flags)
	assert.Equal(t,
		"Clause type: Limitation of Liability. Risk score: 7/10 (high risk). Flags: Contains high-risk terms; One-sided language detected; Missing protective language.",
		res.Summary)
}

func TestAnalyzeProtectedClauseScoresZero(t *testing.T) {
	res := Analyze("Each party keeps a mutual confidentiality obligation.", Generic())

	assert.Equal(t, Unknown, res.ClauseType)
	assert.Equal(t, 0, res.RiskScore)
	assert.Empty(t, res.Flags)
	assert.Contains(t, res.Summary, "No flags raised.")
	assert.Contains(t, res.Summary, "(low risk)")
}

func TestRiskScoreMonotonicInHighRiskTerms(t *testing.T) {
	lx := Generic()
	base := "A mutual clause about liability"
	prev := -1
	for k := 0; k <= len(lx.HighRiskTerms); k++ {
		text := base + " " + strings.Join(lx.HighRiskTerms[:k], " and ")
		res := Analyze(text, lx)
		assert.GreaterOrEqual(t, res.RiskScore, prev, "k=%d", k)
		assert.LessOrEqual(t, res.RiskScore, MaxScore)
		prev = res.RiskScore
	}
	assert.Equal(t, MaxScore, prev)
}

func TestRepeatedHighRiskTermCountsOnce(t *testing.T) {
	res := Analyze("A mutual cap: unlimited, unlimited, unlimited liability.", Generic())
	assert.Equal(t, 2, res.RiskScore)
}

func TestCategoryFirstDeclaredWins(t *testing.T) {
	text := "The vendor shall indemnify and pay damages on termination."
	first := &Lexicon{Categories: []Category{
		{Name: "A", Keywords: []string{"indemnify"}},
		{Name: "B", Keywords: []string{"damages"}},
	}}
	second := &Lexicon{Categories: []Category{
		{Name: "B", Keywords: []string{"damages"}},
		{Name: "A", Keywords: []string{"indemnify"}},
	}}
	for i := 0; i < 5; i++ {
		assert.Equal(t, "A", Analyze(text, first).ClauseType)
		assert.Equal(t, "B", Analyze(text, second).ClauseType)
	}
}

func TestAnalyzeRentalScenario(t *testing.T) {
	text := "The Tenant shall pay a non-refundable deposit with no notice at landlord's sole discretion."
	res := Analyze(text, Rental())

	assert.Equal(t, "Security Deposit", res.ClauseType)
	assert.GreaterOrEqual(t, res.RiskScore, 7)
	assert.Equal(t, MaxScore, res.RiskScore)
	assert.Contains(t, res.Flags, "Non-refundable deposit may be unfair to tenant")
	assert.Contains(t, res.Flags, "Missing or unfair notice period")
	// generic checks come first, pattern flags after
	assert.Equal(t, FlagHighRisk, res.Flags[0])
}

func TestRentalUnknownPenalty(t *testing.T) {
	res := Analyze("The premises are painted blue every spring season.", Rental())
	assert.Equal(t, Unknown, res.ClauseType)
	// no protective language (+2) and unknown category (+1)
	assert.Equal(t, 3, res.RiskScore)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierLow, TierFor(0))
	assert.Equal(t, TierLow, TierFor(3))
	assert.Equal(t, TierMedium, TierFor(4))
	assert.Equal(t, TierMedium, TierFor(6))
	assert.Equal(t, TierHigh, TierFor(7))
	assert.Equal(t, TierHigh, TierFor(10))
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	text := "Landlord may terminate without notice for any reason."
	a := Analyze(text, Rental())
	b := Analyze(text, Rental())
	assert.Equal(t, a, b)
}

func TestForProfile(t *testing.T) {
	lx, err := ForProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileGeneric, lx.Name)

	lx, err = ForProfile("Rental")
	require.NoError(t, err)
	assert.Equal(t, ProfileRental, lx.Name)

	_, err = ForProfile("employment")
	assert.Error(t, err)
}

func TestLoadLexicon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	body := `
name: nda
categories:
  - name: Confidentiality
    keywords: [confidential, non-disclosure]
  - name: Term
    keywords: [years]
high_risk_terms: [perpetual]
one_sided_indicators: [recipient shall]
protective_language: [mutual]
pattern_flags:
  - flag: Perpetual obligation
    triggers: [perpetual]
one_sided_threshold: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	lx, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, "nda", lx.Name)
	require.Len(t, lx.Categories, 2)

	res := Analyze("The recipient shall keep all confidential material secret in perpetual fashion.", lx)
	assert.Equal(t, "Confidentiality", res.ClauseType)
	// perpetual (2) + one-sided above 0 (3) + no protective (2)
	assert.Equal(t, 7, res.RiskScore)
	assert.Equal(t, []string{FlagHighRisk, FlagOneSided, FlagNoProtective, "Perpetual obligation"}, res.Flags)
}

func TestLexiconValidate(t *testing.T) {
	tests := []struct {
		name string
		lx   Lexicon
	}{
		{"no categories", Lexicon{}},
		{"empty name", Lexicon{Categories: []Category{{Name: " ", Keywords: []string{"x"}}}}},
		{"reserved name", Lexicon{Categories: []Category{{Name: Unknown, Keywords: []string{"x"}}}}},
		{"duplicate", Lexicon{Categories: []Category{{Name: "A", Keywords: []string{"x"}}, {Name: "A", Keywords: []string{"y"}}}}},
		{"no keywords", Lexicon{Categories: []Category{{Name: "A"}}}},
		{"negative threshold", Lexicon{Categories: []Category{{Name: "A", Keywords: []string{"x"}}}, OneSidedThreshold: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.lx.Validate())
		})
	}
	assert.NoError(t, Generic().Validate())
	assert.NoError(t, Rental().Validate())
}
