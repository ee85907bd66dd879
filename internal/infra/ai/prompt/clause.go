package prompt

import (
	"fmt"
	"strings"
)

// Placeholder is replaced by the clause text, verbatim.
const Placeholder = "{clause_text}"

// Template is the fixed instruction pair sent for every clause.
type Template struct {
	System string
	User   string
}

// Render embeds text into the user message. Nothing else is interpolated.
func (t Template) Render(text string) string {
	return strings.Replace(t.User, Placeholder, text, 1)
}

// schema shared by every profile; field names are what the adapter validates.
const schema = `Respond with one JSON object only (no markdown, no commentary, no code fences) with these fields:
- clause_type: the type of clause (e.g. Limitation of Liability, Indemnification, Termination, Confidentiality)
- key_terms: a list of key legal terms or phrases found in the clause
- risk_level: one of "Low", "Medium", "High"
- summary: a brief summary of the clause's purpose and implications
- recommendations: a list of recommendations for improving or mitigating risks in the clause`

// Generic is the default commercial-contract template.
var Generic = Template{
	System: "You are a legal expert analyzing contract clauses.",
	User: "You are a legal expert analyzing contract clauses. For the given clause text, provide a structured JSON analysis.\n\n" +
		schema + "\n\nClause text: " + Placeholder,
}

// Rental frames the same schema from a tenant's point of view.
var Rental = Template{
	System: "You are a tenant-rights legal expert reviewing residential lease agreements.",
	User: "You are reviewing a clause from a residential rental agreement on behalf of the tenant. " +
		"Pay attention to deposits, notice periods, entry rights, renewals and waived statutory protections.\n\n" +
		schema + "\n\nClause text: " + Placeholder,
}

// ForProfile returns the template matching a lexicon profile.
func ForProfile(name string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return Generic, nil
	case "rental":
		return Rental, nil
	default:
		return Template{}, fmt.Errorf("unknown prompt profile: %s", name)
	}
}
