package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL   = "https://api.perplexity.ai"
	defaultModel     = "sonar"
	defaultMaxTokens = 1024
)

const extractorSystem = `You are a memory extraction specialist for a career mentoring assistant.
Extract the most important, durable facts from a conversation for future sessions.

Focus on: skills and their status, target role, preferences, goals and goal completions.
Ignore: greetings, generic questions, temporary states ("tired today").
Return only truly valuable, lasting facts.`

// Client calls an OpenAI-compatible chat-completions service to extract
// facts from a transcript.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates a new extraction client. Timeout bounds each HTTP call;
// the per-job deadline is enforced by the caller's context on top of it.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("MNEMO_EXTRACTOR_API_KEY")
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: defaultMaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract sends the transcript to the external service and parses the
// structured result out of the model's reply.
func (c *Client) Extract(ctx context.Context, transcript string) (*Result, error) {
	if transcript == "" {
		return &Result{}, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractorSystem},
			{Role: "user", Content: buildPrompt(transcript)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return parseResult(parsed.Choices[0].Message.Content)
}

// buildPrompt asks the model for the exact JSON shape parseResult expects.
func buildPrompt(transcript string) string {
	return fmt.Sprintf(`Extract memory-worthy facts from this session transcript.

Transcript:
%s

Return ONLY this JSON:
{
    "facts": [
        {"subject": "skill:FastAPI", "assertion": {"status": "claimed", "proficiency": "intermediate"}, "confidence": 0.9},
        {"subject": "targetRole", "assertion": {"value": "ML Engineer"}, "confidence": 0.8},
        {"subject": "preference:learning_style", "assertion": {"value": "hands-on"}, "confidence": 0.7},
        {"subject": "goal", "assertion": {"value": "transition to ML within 12 months", "status": "active", "horizon": "12m"}, "confidence": 0.8}
    ],
    "summary": "One sentence summary of this session",
    "note": "One insight about this user worth noting for future sessions"
}

If nothing new was learned, return empty arrays and strings.`, transcript)
}

// parseResult recovers the JSON payload from the model's reply, which may
// wrap it in prose or a fenced code block.
func parseResult(content string) (*Result, error) {
	jsonStr := extractLastJSONBlock(content)
	if jsonStr == "" {
		jsonStr = extractRawJSON(content)
	}
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in model reply")
	}

	var result Result
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("malformed extraction payload: %w", err)
	}
	return &result, nil
}
