package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shankslo8/octo-code-agent/internal/message"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/tool"
)

const (
	minRequestInterval = 500 * time.Millisecond
	maxAttempts         = 6
	baseBackoffMS       = 2000
	maxBackoffMS        = 60_000
)

// Config configures a Client against one OpenAI-compatible endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      model.Model
	MaxTokens  int
	HTTPClient *http.Client
}

// Client is an OpenAI-chat-completions-shaped Provider: a throttled,
// retrying HTTP client with a hand-rolled SSE decoder for the streaming
// path (spec §4.2).
type Client struct {
	cfg Config

	mu          sync.Mutex
	lastRequest time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = cfg.Model.MaxOutputTokens
	}
	return &Client{cfg: cfg}
}

func (c *Client) Model() model.Model { return c.cfg.Model }

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Message struct {
		Content   string         `json:"content"`
		ToolCalls []wireToolCall `json:"tool_calls"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// throttle enforces the minimum inter-request interval under the
// instance-wide mutex (spec §4.2 Throttling).
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := minRequestInterval - time.Since(c.lastRequest)
	c.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
	return nil
}

// doWithRetry issues req, retrying per spec §4.2 Retry on 429/502/503 and
// transport errors, up to maxAttempts. The caller's body-reading closure
// lets streaming and non-streaming paths share the same retry loop while
// handling the response body differently.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), handle func(*http.Response) error) error {
	var lastErr *Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return err
		}

		req, err := build()
		if err != nil {
			return &Error{Kind: ErrTransport, Message: err.Error()}
		}
		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			lastErr = &Error{Kind: ErrTransport, Message: err.Error()}
			if attempt == maxAttempts {
				return lastErr
			}
			if sleepErr := sleepBackoff(ctx, attempt, 0); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode == 502 || resp.StatusCode == 503 {
			retryAfterMS := retryAfterMillis(resp)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &Error{
				Kind: ErrRateLimited, Status: resp.StatusCode,
				Message: fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
				RetryAfterMS: retryAfterMS,
			}
			if attempt == maxAttempts {
				return lastErr
			}
			if sleepErr := sleepBackoff(ctx, attempt, retryAfterMS); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &Error{Kind: ErrAPI, Status: resp.StatusCode, Message: string(body)}
		}

		err = handle(resp)
		resp.Body.Close()
		if err != nil {
			return &Error{Kind: ErrStream, Message: err.Error()}
		}
		return nil
	}
	return lastErr
}

// sleepBackoff waits the computed retry delay, preferring an explicit
// Retry-After value when retryAfterMS > 0.
func sleepBackoff(ctx context.Context, attempt int, retryAfterMS int64) error {
	var wait time.Duration
	if retryAfterMS > 0 {
		wait = time.Duration(retryAfterMS) * time.Millisecond
	} else {
		backoff := baseBackoffMS * (1 << (attempt - 1))
		if backoff > maxBackoffMS {
			backoff = maxBackoffMS
		}
		jitter := time.Duration(rand.Int63n(int64(float64(backoff) * 0.25 * float64(time.Millisecond))))
		wait = time.Duration(backoff)*time.Millisecond + jitter
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryAfterMillis(resp *http.Response) int64 {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int64(secs * 1000)
}

func (c *Client) newRequestBuilder(ctx context.Context, body chatRequest) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

// SendMessages issues a one-shot (non-streaming) chat completion.
func (c *Client) SendMessages(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (Response, error) {
	body := chatRequest{
		Model:     string(c.cfg.Model.ID),
		MaxTokens: c.cfg.MaxTokens,
		Messages:  toWireMessages(systemPrompt, messages),
		Tools:     toWireTools(tools),
	}

	var result Response
	err := c.doWithRetry(ctx, c.newRequestBuilder(ctx, body), func(resp *http.Response) error {
		var decoded chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return err
		}
		if len(decoded.Choices) == 0 {
			return fmt.Errorf("response carried no choices")
		}
		choice := decoded.Choices[0]
		var parts []message.ContentPart
		if choice.Message.Content != "" {
			parts = append(parts, message.NewText(choice.Message.Content))
		}
		for _, tc := range choice.Message.ToolCalls {
			parts = append(parts, message.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
		}
		result = Response{
			Parts:        parts,
			FinishReason: mapFinishReason(choice.FinishReason),
			Usage: message.TokenUsage{
				InputTokens:  decoded.Usage.PromptTokens,
				OutputTokens: decoded.Usage.CompletionTokens,
			},
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return result, nil
}

// StreamResponse issues a streaming chat completion and decodes the SSE
// body into typed events on a background goroutine.
func (c *Client) StreamResponse(ctx context.Context, messages []message.Message, systemPrompt string, tools []tool.Definition) (<-chan Event, error) {
	body := chatRequest{
		Model:     string(c.cfg.Model.ID),
		MaxTokens: c.cfg.MaxTokens,
		Messages:  toWireMessages(systemPrompt, messages),
		Tools:     toWireTools(tools),
		Stream:    true,
	}

	out := make(chan Event, 64)
	started := make(chan error, 1)

	go func() {
		defer close(out)
		err := c.doWithRetry(ctx, c.newRequestBuilder(ctx, body), func(resp *http.Response) error {
			started <- nil
			decodeSSE(ctx, resp.Body, out)
			return nil
		})
		if err != nil {
			select {
			case started <- err:
			default:
				out <- errorEvent(err)
			}
		}
	}()

	if err := <-started; err != nil {
		return nil, err
	}
	return out, nil
}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}
