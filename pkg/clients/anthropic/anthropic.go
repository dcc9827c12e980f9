package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	model          = "claude-3-haiku-20240307"
	maxTokens      = 256
)

// ErrEmptyResponse is returned when the API answers without text.
var ErrEmptyResponse = errors.New("empty response from ai")

const rewritePrompt = `You clean up short sale notes typed on a phone by a small seller.
Rewrite the note so each fact is explicit: quantity with a unit (g, oz, lb), the customer name,
the strain, the price with a $ sign, and for credit sales either "paid X" or "owes X".
Do not invent facts that are not in the note. Keep it on one line.
Reply with the rewritten note only.`

// Client rewrites free text.
type Client interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

type anthropicClient struct {
	httpClient *resty.Client
}

// NewClient creates a configured Anthropic client. An empty baseURL uses the public API.
func NewClient(apiKey, baseURL string, timeout time.Duration) Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(timeout)

	return &anthropicClient{httpClient: client}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
}

// Message is one turn of the conversation sent to the API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *anthropicClient) Rewrite(ctx context.Context, text string) (string, error) {
	reqBody := messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    rewritePrompt,
		Messages:  []Message{{Role: "user", Content: text}},
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/v1/messages")

	if err != nil {
		return "", fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic api error: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(respBody.Content) == 0 {
		return "", ErrEmptyResponse
	}

	out := strings.TrimSpace(respBody.Content[0].Text)
	out = strings.Trim(out, "`\"")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
