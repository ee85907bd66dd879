package ai

// Credential selects an AI endpoint account. BaseURL and Model are optional
// and fall back to the adapter defaults.
type Credential struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Label is a log-safe identifier for the credential.
func (c Credential) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.APIKey) > 4 {
		return "****" + c.APIKey[len(c.APIKey)-4:]
	}
	return "****"
}

// Usable drops credentials without a key.
func Usable(creds []Credential) []Credential {
	out := make([]Credential, 0, len(creds))
	for _, c := range creds {
		if c.APIKey != "" {
			out = append(out, c)
		}
	}
	return out
}
