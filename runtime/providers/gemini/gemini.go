// Package gemini is a client for the Gemini generateContent API, used by
// the generateContent tool for grounded text and code answers.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
	"github.com/AltairaLabs/roboshen/runtime/providers"
)

// DefaultModel answers tool prompts.
const DefaultModel = "gemini-2.5-pro"

const (
	component         = "gemini"
	operation         = "GenerateContent"
	httpClientTimeout = 90 * time.Second
)

// ErrBlocked is returned when the service refuses the prompt.
var ErrBlocked = errors.New("gemini: prompt blocked")

// Compiled extraction paths over the generateContent response.
var (
	textPath    = jmespath.MustCompile("candidates[0].content.parts[].text")
	sourcesPath = jmespath.MustCompile("candidates[0].groundingMetadata.groundingChunks[].web.{uri: uri, title: title}")
	finishPath  = jmespath.MustCompile("candidates[0].finishReason")
	blockPath   = jmespath.MustCompile("promptFeedback.blockReason")
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Model      string
	Credential credentials.Credential
	HTTPClient *http.Client
	Timeout    time.Duration

	// DisableSearch turns off Google Search grounding.
	DisableSearch bool
}

// Client calls generateContent.
type Client struct {
	providers.BaseProvider
	baseURL string
	model   string
	search  bool
}

// NewClient creates a client, filling defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = providers.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httpClientTimeout
	}
	return &Client{
		BaseProvider: providers.NewBaseProvider(component, cfg.Credential, cfg.HTTPClient, cfg.Timeout),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		search:       !cfg.DisableSearch,
	}
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.model
}

type request struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type usage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Source is one web page the answer was grounded on.
type Source struct {
	URI   string
	Title string
}

// Response is the extracted result.
type Response struct {
	// Text joins every text part of the first candidate. Empty when the
	// model produced no text.
	Text         string
	FinishReason string
	Sources      []Source
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// GenerateContent sends prompt as a single user turn.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (*Response, error) {
	start := time.Now()

	req := request{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	if c.search {
		req.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	body, err := c.MakeJSONRequest(ctx, url, operation, req)
	if err != nil {
		return nil, err
	}

	resp, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

func parseResponse(body []byte) (*Response, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, pkgerrors.New(component, operation, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	if reason, _ := blockPath.Search(doc); reason != nil {
		return nil, pkgerrors.New(component, operation, fmt.Errorf("%w: %v", ErrBlocked, reason))
	}

	resp := &Response{}

	texts, err := textPath.Search(doc)
	if err != nil {
		return nil, pkgerrors.New(component, operation, fmt.Errorf("failed to extract text: %w", err))
	}
	resp.Text = joinStrings(texts)

	if reason, _ := finishPath.Search(doc); reason != nil {
		resp.FinishReason, _ = reason.(string)
	}

	if sources, _ := sourcesPath.Search(doc); sources != nil {
		resp.Sources = toSources(sources)
	}

	var meta struct {
		UsageMetadata *usage `json:"usageMetadata"`
	}
	if json.Unmarshal(body, &meta) == nil && meta.UsageMetadata != nil {
		resp.InputTokens = meta.UsageMetadata.PromptTokenCount
		resp.OutputTokens = meta.UsageMetadata.CandidatesTokenCount
	}
	return resp, nil
}

func joinStrings(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, item := range list {
		if s, ok := item.(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func toSources(v any) []Source {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Source, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uri, _ := m["uri"].(string)
		if uri == "" {
			continue
		}
		title, _ := m["title"].(string)
		out = append(out, Source{URI: uri, Title: title})
	}
	return out
}
