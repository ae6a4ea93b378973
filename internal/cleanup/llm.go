package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/doctree"
)

// LLMClient calls an OpenAI-compatible chat completions endpoint (Ollama by
// default) for text cleanup and TOC extraction.
type LLMClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	stats      *LLMStats
}

func NewLLMClient(baseURL, model, apiKey string, stats *LLMStats) *LLMClient {
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		stats: stats,
	}
}

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.model }

// Stats returns the latency tracker shared by all calls.
func (c *LLMClient) Stats() *LLMStats { return c.stats }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one user prompt and returns the first choice's content.
func (c *LLMClient) complete(ctx context.Context, req chatRequest) (string, error) {
	req.Model = c.model
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.stats.Record(time.Since(start).Milliseconds(), false)
		return "", fmt.Errorf("llm api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	c.stats.Record(time.Since(start).Milliseconds(), err == nil && resp.StatusCode == http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("llm error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

// CleanFragment asks the model to repair one fragment of extracted text.
// The first fragment of a section also has a repeated heading removed.
func (c *LLMClient) CleanFragment(ctx context.Context, frag chunker.Fragment) (string, error) {
	out, err := c.complete(ctx, chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: BuildCleanupPrompt(frag.Text, frag.First)}},
		Temperature: 0,
		MaxTokens:   2*chunker.EstimateTokens(frag.Text) + 256,
	})
	if err != nil {
		return "", err
	}
	out = stripCodeBlock(out)
	if out == "" {
		return "", fmt.Errorf("llm returned empty cleanup")
	}
	return out, nil
}

// ExtractTOC asks the model for the table of contents of the front matter.
// Invalid items are dropped; an empty result means no TOC was found.
func (c *LLMClient) ExtractTOC(ctx context.Context, frontMatter string) ([]doctree.SequenceItem, error) {
	out, err := c.complete(ctx, chatRequest{
		Messages:       []chatMessage{{Role: "user", Content: BuildTOCPrompt(frontMatter)}},
		Temperature:    0.1,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	text := stripCodeBlock(out)
	var parsed tocResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse toc json: %w (raw: %s)", err, truncate(text, 200))
	}

	seq := make([]doctree.SequenceItem, 0, len(parsed.Items))
	for i := range parsed.Items {
		if ValidateTOCItem(&parsed.Items[i]) {
			seq = append(seq, parsed.Items[i].SequenceItem())
		}
	}
	return seq, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|text)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *LLMClient) Close() {
	c.httpClient.CloseIdleConnections()
}
