package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"codescope/internal/logging"
)

const systemInstruction = "You are codescope, a code-exploration assistant narrated by specialist agents. " +
	"Ground every answer only in the context blocks and conversation provided. " +
	"Respond in GitHub-flavored markdown. Do not claim to browse the filesystem or network; " +
	"only use supplied content."

// Config holds configuration for the completion client.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	RateLimitDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		Timeout:        120 * time.Second,
		MaxRetries:     3,
		RateLimitDelay: 600 * time.Millisecond,
	}
}

// Client talks to an OpenAI-compatible chat-completion endpoint. It
// implements Completer.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	maxRetries     int
	rateLimitDelay time.Duration
	httpClient     *http.Client

	// sem bounds concurrent requests against the provider.
	sem chan struct{}

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client with default config.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(DefaultConfig(apiKey))
}

// NewClientWithConfig creates a client with custom config.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		maxRetries:     cfg.MaxRetries,
		rateLimitDelay: cfg.RateLimitDelay,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		sem:            make(chan struct{}, 5),
	}
}

// chatRequest is the wire request for /chat/completions.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat enforces structured output (JSON schema).
type responseFormat struct {
	Type       string      `json:"type"` // "json_schema"
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

// chatResponse covers both single-shot responses and stream chunks.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta,omitempty"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// StreamCompletion opens a streaming call and forwards content fragments to
// onChunk in arrival order. A failing stream never surfaces as an error:
// one synthesized error fragment is delivered through onChunk and returned
// as the full text, so the caller's state machine always unwinds normally.
func (c *Client) StreamCompletion(ctx context.Context, prompt string, history []Turn, onChunk func(string)) (string, error) {
	full, err := c.streamOnce(ctx, prompt, history, onChunk)
	if err == nil {
		return full, nil
	}

	logging.Get(logging.CategoryAPI).Error("stream failed: %v", err)
	fragment := fmt.Sprintf("%s: %v. Check your API key and network, then try again.", ErrorMarker, err)
	onChunk(fragment)
	return fragment, nil
}

func (c *Client) streamOnce(ctx context.Context, prompt string, history []Turn, onChunk func(string)) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.throttle()

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	for _, t := range history {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: 0.4,
		TopP:        0.9,
		Stream:      true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	logging.APIDebug("stream request: model=%s prompt=%d bytes history=%d turns", c.model, len(prompt), len(history))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: {...}"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		onChunk(content)
		full.WriteString(content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream error: %w", err)
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("stream produced no content")
	}

	logging.APIDebug("stream complete: %d bytes", full.Len())
	return full.String(), nil
}

// repoAnalysisSchema constrains the analysis response. Strict mode: the
// provider may only emit objects matching this shape.
func repoAnalysisSchema() *responseFormat {
	node := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
			"path": map[string]interface{}{"type": "string"},
			"kind": map[string]interface{}{"type": "string", "enum": []string{"file", "directory"}},
			"children": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"$ref": "#/$defs/node"},
			},
		},
		"required": []string{"path"},
	}
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchema{
			Name:   "RepoAnalysis",
			Strict: true,
			Schema: map[string]interface{}{
				"type":  "object",
				"$defs": map[string]interface{}{"node": node},
				"properties": map[string]interface{}{
					"name":    map[string]interface{}{"type": "string"},
					"summary": map[string]interface{}{"type": "string"},
					"stack": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"structure": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"$ref": "#/$defs/node"},
					},
				},
				"required": []string{"name", "summary", "structure"},
			},
		},
	}
}

// AnalyzeRepository asks the model to describe a public repository as a
// schema-constrained JSON document. Unlike the streaming path, failures
// here propagate to the caller; the import flow owns the user-visible
// reporting.
func (c *Client) AnalyzeRepository(ctx context.Context, url string) (*RepoAnalysis, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}
	if err := ValidateRepoURL(url); err != nil {
		return nil, err
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	prompt := fmt.Sprintf(
		"Analyze the public repository %q. Return its display name, a two-sentence summary, "+
			"the primary technology stack, and a representative file structure (directories with "+
			"children, files as leaves, full relative paths).", url)

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      4096,
		Temperature:    0.1, // Low temperature for structured output
		ResponseFormat: repoAnalysisSchema(),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for 429 errors
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		c.throttle()

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var chatResp chatResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if chatResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
		}
		if len(chatResp.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		var analysis RepoAnalysis
		if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &analysis); err != nil {
			return nil, fmt.Errorf("analysis payload is not valid JSON: %w", err)
		}

		logging.Import("analyzed %s: %d root nodes", url, len(analysis.Structure))
		return &analysis, nil
	}

	return nil, fmt.Errorf("all retries exhausted: %w", lastErr)
}

// throttle spaces requests to stay under provider rate limits.
func (c *Client) throttle() {
	if c.rateLimitDelay <= 0 {
		return
	}
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.rateLimitDelay {
		time.Sleep(c.rateLimitDelay - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// SetModel changes the model used for completions.
func (c *Client) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *Client) GetModel() string {
	return c.model
}
