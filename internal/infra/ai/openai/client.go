package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	"github.com/bryanwahyu/clause-review/internal/infra/ai/prompt"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 500
	defaultTemperature = 0.2
	defaultTimeout     = 30 * time.Second
)

var requiredFields = []string{"clause_type", "key_terms", "risk_level", "summary", "recommendations"}

// Client is the AI adapter. It is safe for concurrent use.
type Client struct {
	Template    prompt.Template
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func NewClient(tpl prompt.Template, model string) *Client {
	return &Client{
		Template:    tpl,
		Model:       model,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		Timeout:     defaultTimeout,
	}
}

// Analyze makes exactly one call with cred.
func (c *Client) Analyze(ctx context.Context, text string, cred ai.Credential) (ai.Result, error) {
	fail := func(kind ai.Kind, err error) (ai.Result, error) {
		e := &ai.Error{Kind: kind, Credential: cred.Label(), Err: err}
		return ai.Degraded(e), e
	}
	if cred.APIKey == "" {
		return fail(ai.KindConfigurationAbsent, ai.ErrNotConfigured)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.clientFor(cred).CreateChatCompletion(ctx, c.request(text, cred))
	if err != nil {
		return fail(ai.KindTransport, classify(err))
	}
	if len(resp.Choices) == 0 {
		return fail(ai.KindMalformedResponse, errors.New("response has no choices"))
	}

	res, kind, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return fail(kind, err)
	}
	return res, nil
}

func (c *Client) request(text string, cred ai.Credential) openai.ChatCompletionRequest {
	model := cred.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = defaultModel
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.Template.System},
			{Role: openai.ChatMessageRoleUser, Content: c.Template.Render(text)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = c.Temperature
	}
	return req
}

func (c *Client) clientFor(cred ai.Credential) *openai.Client {
	cfg := openai.DefaultConfig(cred.APIKey)
	if cred.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(cred.BaseURL, "/")
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// classify marks provider quota errors so callers can report them distinctly.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
	}
	return err
}

func parseResult(content string) (ai.Result, ai.Kind, error) {
	raw := []byte(stripFences(content))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ai.Result{}, ai.KindMalformedResponse, fmt.Errorf("response is not a JSON object: %w", err)
	}
	var missing []string
	for _, f := range requiredFields {
		// null carries no value and counts as missing
		if v, ok := fields[f]; !ok || strings.TrimSpace(string(v)) == "null" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return ai.Result{}, ai.KindIncompleteResponse, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var payload struct {
		ClauseType      string   `json:"clause_type"`
		KeyTerms        []string `json:"key_terms"`
		RiskLevel       string   `json:"risk_level"`
		Summary         string   `json:"summary"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ai.Result{}, ai.KindMalformedResponse, fmt.Errorf("unexpected field types: %w", err)
	}

	res := ai.Result{
		ClauseType:      strings.TrimSpace(payload.ClauseType),
		KeyTerms:        payload.KeyTerms,
		RiskLevel:       ai.ParseRiskLevel(payload.RiskLevel),
		Summary:         strings.TrimSpace(payload.Summary),
		Recommendations: payload.Recommendations,
	}
	if res.ClauseType == "" {
		res.ClauseType = "Unknown"
	}
	if res.KeyTerms == nil {
		res.KeyTerms = []string{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	return res, "", nil
}

// stripFences removes markdown code fences and any chatter around the object.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
