package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one clause category and the phrases that trigger it.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// PatternFlag is a dedicated flag raised whenever any of its triggers occurs,
// regardless of the detected category.
type PatternFlag struct {
	Flag     string   `yaml:"flag" json:"flag"`
	Triggers []string `yaml:"triggers" json:"triggers"`
}

// Lexicon drives the rule-based analyzer. Categories are checked in
// declaration order and the first match wins.
type Lexicon struct {
	Name               string        `yaml:"name" json:"name"`
	Categories         []Category    `yaml:"categories" json:"categories"`
	HighRiskTerms      []string      `yaml:"high_risk_terms" json:"high_risk_terms"`
	OneSidedIndicators []string      `yaml:"one_sided_indicators" json:"one_sided_indicators"`
	ProtectiveLanguage []string      `yaml:"protective_language" json:"protective_language"`
	PatternFlags       []PatternFlag `yaml:"pattern_flags" json:"pattern_flags"`

	// OneSidedThreshold: one-sided language counts when strictly more than
	// this many indicators are present.
	OneSidedThreshold int `yaml:"one_sided_threshold" json:"one_sided_threshold"`

	// UnknownPenalty is added to the score when no category matches.
	UnknownPenalty int `yaml:"unknown_penalty" json:"unknown_penalty"`
}

// Built-in profiles.
const (
	ProfileGeneric = "generic"
	ProfileRental  = "rental"
)

// Generic is the general commercial-contract lexicon.
func Generic() *Lexicon {
	return &Lexicon{
		Name: ProfileGeneric,
		Categories: []Category{
			{Name: "Limitation of Liability", Keywords: []string{"liability", "limit", "damages"}},
			{Name: "Indemnification", Keywords: []string{"indemnify", "hold harmless", "defend"}},
			{Name: "Termination", Keywords: []string{"terminate", "expire", "end"}},
		},
		HighRiskTerms:      []string{"unlimited", "capless", "no limit", "full liability", "gross negligence", "willful misconduct"},
		OneSidedIndicators: []string{"shall", "must", "will", "agrees to", "obligated to"},
		ProtectiveLanguage: []string{"mutual", "reasonable", "fair", "reciprocal", "limited to"},
		OneSidedThreshold:  2,
	}
}

// Rental is tuned for residential lease agreements.
func Rental() *Lexicon {
	return &Lexicon{
		Name: ProfileRental,
		Categories: []Category{
			{Name: "Security Deposit", Keywords: []string{"deposit", "security fee"}},
			{Name: "Termination", Keywords: []string{"terminate", "termination", "evict", "vacate", "end of the lease"}},
			{Name: "Rent Payment", Keywords: []string{"rent", "late fee", "payment"}},
			{Name: "Maintenance and Repairs", Keywords: []string{"repair", "maintenance", "maintain"}},
			{Name: "Entry and Access", Keywords: []string{"enter the premises", "entry", "access", "inspect"}},
			{Name: "Subletting", Keywords: []string{"sublet", "sublease", "assign"}},
			{Name: "Renewal", Keywords: []string{"renew", "renewal", "extension"}},
			{Name: "Pets", Keywords: []string{"pet", "animal"}},
		},
		HighRiskTerms: []string{
			"non-refundable", "nonrefundable", "sole discretion", "no notice", "without notice",
			"forfeit", "waive", "any reason", "penalty", "automatic renewal", "automatically renew",
		},
		OneSidedIndicators: []string{
			"tenant shall", "tenant must", "tenant agrees", "tenant is responsible",
			"landlord may", "landlord's sole", "at landlord's", "at the landlord's", "without liability",
		},
		ProtectiveLanguage: []string{
			"reasonable", "mutual", "written notice", "both parties", "normal wear and tear",
			"return the deposit", "returned within", "applicable law",
		},
		PatternFlags: []PatternFlag{
			{Flag: "Non-refundable deposit may be unfair to tenant", Triggers: []string{"non-refundable", "nonrefundable"}},
			{Flag: "Missing or unfair notice period", Triggers: []string{"no notice", "without notice", "immediately", "at any time"}},
			{Flag: "Automatic renewal clause detected", Triggers: []string{"automatic renewal", "automatically renew"}},
			{Flag: "Tenant waives statutory rights", Triggers: []string{"waive", "waives"}},
		},
		OneSidedThreshold: 1,
		UnknownPenalty:    1,
	}
}

// ForProfile returns the built-in lexicon for a profile name.
func ForProfile(name string) (*Lexicon, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileGeneric:
		return Generic(), nil
	case ProfileRental:
		return Rental(), nil
	default:
		return nil, fmt.Errorf("unknown lexicon profile: %s", name)
	}
}

// LoadLexicon reads a lexicon from a YAML file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	if err := lx.Validate(); err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return &lx, nil
}

// Validate rejects lexicons the analyzer cannot use.
func (l *Lexicon) Validate() error {
	if len(l.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	seen := make(map[string]bool, len(l.Categories))
	for _, c := range l.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("category name cannot be empty")
		}
		if c.Name == Unknown {
			return fmt.Errorf("category name %q is reserved", Unknown)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", c.Name)
		}
	}
	if l.OneSidedThreshold < 0 || l.UnknownPenalty < 0 {
		return fmt.Errorf("thresholds cannot be negative")
	}
	return nil
}
