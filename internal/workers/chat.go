package workers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type ChatResponse struct {
	Content      string
	FinishReason string
}

// ChatClient talks to a language model.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// OpenAIChatClient speaks the OpenAI-compatible /chat/completions protocol
// against any base URL.
type OpenAIChatClient struct {
	baseURL string
	model   string
	client  *openai.Client
}

func NewOpenAIChatClient(baseURL, model, apiKey string, timeout time.Duration) *OpenAIChatClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return &OpenAIChatClient{
		baseURL: baseURL,
		model:   model,
		client:  openai.NewClientWithConfig(cfg),
	}
}

func (c *OpenAIChatClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if c == nil {
		return ChatResponse{}, fmt.Errorf("chat client is nil")
	}
	if c.baseURL == "" {
		return ChatResponse{}, fmt.Errorf("chat base URL is not configured")
	}
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("chat requires at least one message")
	}
	if req.Model == "" {
		req.Model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("chat response has no choices")
	}
	return ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}
