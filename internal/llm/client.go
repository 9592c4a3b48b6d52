// Package llm streams chat completions from an OpenAI-compatible endpoint
// over SSE and turns the wire chunks into typed stream events.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Impersonated upstream compatibility client. Some gateways reject
// unknown user agents outright.
const userAgent = "openai-node/4.67.3"

const (
	headerSession = "x-wolo-session"
	headerProject = "x-wolo-project"
	headerClient  = "x-wolo-client"
	clientName    = "wolo-core"
)

const defaultMaxAttempts = 3

// Client is the streaming adapter for one endpoint. It is safe for use
// from a single loop goroutine; the usage counter is cumulative across
// calls and retries.
type Client struct {
	endpoint    types.EndpointConfig
	httpClient  *http.Client
	debug       *DebugRecorder
	usage       *Usage
	maxAttempts int

	sessionID string
	projectID string
}

// Option configures a Client.
type Option func(*Client)

// WithDebugRecorder attaches the request/response side channel.
func WithDebugRecorder(d *DebugRecorder) Option {
	return func(c *Client) { c.debug = d }
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithCorrelation sets the session and project correlation headers.
func WithCorrelation(sessionID, projectID string) Option {
	return func(c *Client) {
		c.sessionID = sessionID
		c.projectID = projectID
	}
}

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient builds an adapter for the given endpoint.
func NewClient(endpoint types.EndpointConfig, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 0},
		usage:       &Usage{},
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Usage returns the cumulative token usage observed so far.
func (c *Client) Usage() Usage {
	return *c.usage
}

// Request is one chat-completion call.
type Request struct {
	Messages       []*types.Message
	SystemPrompt   string
	AgentName      string
	Tools          []ToolSchema
	EnableThinking bool
}

// ChatCompletion streams one model turn. The returned channel is closed
// after a finish or error event. Retryable failures that occur before any
// content was delivered are retried internally with backoff; the usage
// counter survives retries.
func (c *Client) ChatCompletion(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return nil, &AdapterError{Kind: KindInvalidRequest, Message: err.Error()}
	}

	events := make(chan StreamEvent, 16)
	go c.run(ctx, body, events)
	return events, nil
}

func (c *Client) buildRequest(req Request) ([]byte, error) {
	wire := chatRequest{
		Model:       c.endpoint.Model,
		Messages:    ProjectMessages(req.Messages, req.SystemPrompt, req.AgentName),
		Temperature: c.endpoint.Temperature,
		MaxTokens:   c.endpoint.MaxTokens,
		Stream:      true,
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, wireTool{Type: "function", Function: t})
	}
	if req.EnableThinking {
		enabled := true
		wire.EnableThinking = &enabled
	}
	return json.Marshal(wire)
}

func (c *Client) run(ctx context.Context, body []byte, events chan<- StreamEvent) {
	defer close(events)

	normal := backoff.NewExponentialBackOff()
	normal.InitialInterval = 500 * time.Millisecond
	normal.MaxInterval = 30 * time.Second
	rateLimited := backoff.NewExponentialBackOff()
	rateLimited.InitialInterval = 5 * time.Second
	rateLimited.MaxInterval = 60 * time.Second

	var lastErr *AdapterError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		delivered, err := c.attempt(ctx, body, events)
		if err == nil {
			return
		}
		lastErr = classifyErr(err)

		// A broken stream after content was delivered cannot be retried
		// transparently; the caller already consumed partial output.
		if delivered || !lastErr.Retryable() || attempt == c.maxAttempts-1 {
			break
		}

		wait := normal.NextBackOff()
		if lastErr.Kind == KindRateLimit {
			wait = rateLimited.NextBackOff()
		}
		logging.Warn().
			Str("kind", string(lastErr.Kind)).
			Dur("backoff", wait).
			Int("attempt", attempt+1).
			Msg("llm request failed, retrying")
		select {
		case <-ctx.Done():
			lastErr = &AdapterError{Kind: KindRetryable, Message: ctx.Err().Error()}
			attempt = c.maxAttempts
		case <-time.After(wait):
		}
	}
	events <- StreamEvent{Type: EventError, Err: lastErr}
}

// attempt performs one HTTP round trip and streams its response.
// delivered reports whether any event reached the caller.
func (c *Client) attempt(ctx context.Context, body []byte, events chan<- StreamEvent) (delivered bool, err error) {
	url := strings.TrimSuffix(c.endpoint.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", userAgent)
	if c.endpoint.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.endpoint.APIKey)
	}
	httpReq.Header.Set(headerSession, c.sessionID)
	httpReq.Header.Set(headerProject, c.projectID)
	httpReq.Header.Set(headerClient, clientName)

	rec := c.debug.begin(body, httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		rec.finish("", err)
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		apiErr := &AdapterError{
			Kind:       classifyStatus(resp.StatusCode),
			Message:    msg,
			StatusCode: resp.StatusCode,
		}
		rec.finish("", apiErr)
		return false, apiErr
	}

	finishReason, delivered, err := c.consumeStream(resp.Body, events, rec)
	rec.finish(finishReason, err)
	return delivered, err
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "unreadable error response"
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// toolCallAccum buffers streaming tool-call arguments keyed by index.
// Backends disagree on whether the call id arrives on the first or a
// later chunk, so the id is filled in whenever it shows up.
type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

func (c *Client) consumeStream(r io.Reader, events chan<- StreamEvent, rec *requestRecord) (string, bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)

	accum := make(map[int]*toolCallAccum)
	finishReason := ""
	delivered := false

	emit := func(ev StreamEvent) {
		events <- ev
		delivered = true
	}

	for scanner.Scan() {
		line := scanner.Text()
		rec.rawLine(line)

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logging.Debug().Err(err).Str("payload", payload).Msg("skipping malformed sse chunk")
			continue
		}

		if chunk.Usage != nil {
			c.usage.add(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens, chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			emit(StreamEvent{Type: EventTextDelta, Text: choice.Delta.Content})
		}
		if choice.Delta.ReasoningContent != "" {
			emit(StreamEvent{Type: EventReasoningDelta, Text: choice.Delta.ReasoningContent})
		}
		for _, tc := range choice.Delta.ToolCalls {
			acc, seen := accum[tc.Index]
			if !seen {
				acc = &toolCallAccum{}
				accum[tc.Index] = acc
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name += tc.Function.Name
			}
			acc.args.WriteString(tc.Function.Arguments)

			if !seen {
				emit(StreamEvent{
					Type:     EventToolCallStreaming,
					ToolID:   acc.id,
					ToolName: acc.name,
					Index:    tc.Index,
					ArgsLen:  acc.args.Len(),
				})
			} else {
				emit(StreamEvent{
					Type:    EventToolCallProgress,
					Index:   tc.Index,
					ArgsLen: acc.args.Len(),
				})
			}
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return finishReason, delivered, err
	}

	// Emit completed tool calls in index order, each exactly once and
	// only when its accumulated arguments parse.
	indexes := make([]int, 0, len(accum))
	for idx := range accum {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		acc := accum[idx]
		input, err := parseArgs(acc.args.String())
		if err != nil {
			logging.Warn().
				Str("tool", acc.name).
				Err(err).
				Msg("discarding tool call with unparseable arguments")
			continue
		}
		id := acc.id
		if id == "" {
			id = fmt.Sprintf("call_%d", idx)
		}
		emit(StreamEvent{
			Type:     EventToolCall,
			ToolID:   id,
			ToolName: acc.name,
			Index:    idx,
			Input:    input,
		})
	}

	if finishReason == "" {
		finishReason = "stop"
	}
	emit(StreamEvent{Type: EventFinish, FinishReason: finishReason})
	return finishReason, delivered, nil
}

func parseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, err
	}
	return input, nil
}
