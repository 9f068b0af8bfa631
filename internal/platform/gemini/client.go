package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/curation-backend/internal/platform/envutil"
	"github.com/yungbote/curation-backend/internal/platform/httpx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// GroundedRequest is one search-grounded generation call.
type GroundedRequest struct {
	Model         string
	System        string
	Prompt        string
	Temperature   float64
	ThinkingLevel string
}

type Chunk struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// GroundedResponse carries the model text and the search citations the
// provider attached to the first candidate.
type GroundedResponse struct {
	Text    string   `json:"text"`
	Chunks  []Chunk  `json:"chunks"`
	Queries []string `json:"queries,omitempty"`
}

type Client interface {
	GenerateGrounded(ctx context.Context, req GroundedRequest) (*GroundedResponse, error)
	// GenerateJSON asks for an application/json answer and decodes it.
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// JSONModel is used by GenerateJSON.
	JSONModel string
}

func ConfigFromEnv() Config {
	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	return Config{
		APIKey:     key,
		BaseURL:    strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		Timeout:    envutil.Seconds("GEMINI_TIMEOUT_SECONDS", 120),
		MaxRetries: envutil.Int("GEMINI_MAX_RETRIES", 2),
		JSONModel:  envutil.String("GEMINI_JSON_MODEL", "gemini-2.5-flash"),
	}
}

type client struct {
	log        *logger.Logger
	genai      *genai.Client
	timeout    time.Duration
	maxRetries int
	jsonModel  string
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.JSONModel == "" {
		cfg.JSONModel = "gemini-2.5-flash"
	}
	gc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		gc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	g, err := genai.NewClient(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &client{
		log:        log.With("client", "gemini"),
		genai:      g,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		jsonModel:  cfg.JSONModel,
	}, nil
}

// ThinkingBudget maps the stored thinking level onto a token budget. An
// unknown or empty level leaves the model default in place.
func ThinkingBudget(level string) *int32 {
	var n int32
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "none", "off":
		n = 0
	case "low":
		n = 1024
	case "medium":
		n = 8192
	case "high":
		n = 24576
	default:
		return nil
	}
	return &n
}

func (c *client) GenerateGrounded(ctx context.Context, req GroundedRequest) (*GroundedResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("model required")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](float32(req.Temperature)),
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if budget := ThinkingBudget(req.ThinkingLevel); budget != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: budget}
	}

	resp, err := c.generate(ctx, req.Model, req.Prompt, cfg)
	if err != nil {
		return nil, err
	}
	return groundedFromResponse(resp), nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(system) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if schema != nil {
		cfg.ResponseJsonSchema = schema
	}
	resp, err := c.generate(ctx, c.jsonModel, user, cfg)
	if err != nil {
		return nil, err
	}
	text := candidateText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini %s: empty response", schemaName)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, text)
	}
	return obj, nil
}

func (c *client) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	backoff := time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.genai.Models.GenerateContent(callCtx, model, genai.Text(prompt), cfg)
		cancel()
		if err == nil {
			return resp, nil
		}
		err = wrapError(err)
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("Gemini request retrying",
			"model", model,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("unreachable retry loop")
}

type geminiHTTPError struct {
	StatusCode int
	Message    string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Message)
}

func (e *geminiHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &geminiHTTPError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &geminiHTTPError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return err
}

// candidateText joins the non-thought text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func groundedFromResponse(resp *genai.GenerateContentResponse) *GroundedResponse {
	out := &GroundedResponse{Text: candidateText(resp)}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return out
	}
	for _, ch := range meta.GroundingChunks {
		if ch == nil || ch.Web == nil || strings.TrimSpace(ch.Web.URI) == "" {
			continue
		}
		out.Chunks = append(out.Chunks, Chunk{URI: strings.TrimSpace(ch.Web.URI), Title: ch.Web.Title})
	}
	out.Queries = append(out.Queries, meta.WebSearchQueries...)
	return out
}
